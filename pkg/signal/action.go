package signal

// Special values for Action.Handler.
const (
	// HandlerDefault is SIG_DFL and selects the default action of a signal.
	HandlerDefault uintptr = 0
	// HandlerIgnore is SIG_IGN and discards the signal on delivery.
	HandlerIgnore uintptr = 1
)

// Action flags.
const (
	FlagNoCldStop = 0x00000001
	FlagNoMask    = 0x40000000
	FlagOneShot   = 0x80000000
)

// Action is the disposition of one signal.
type Action struct {
	// Handler is the user address of the handler, or one of the special values.
	Handler uintptr
	// Mask is or'ed into the blocked set while the handler runs.
	Mask Set
	// Flags holds the Flag* bits.
	Flags uint32
	// Restorer is the user address that unwinds the handler frame.
	Restorer uintptr
}

// IsDefault returns true iff the handler is SIG_DFL.
func (a Action) IsDefault() bool { return a.Handler == HandlerDefault }

// IsIgnore returns true iff the handler is SIG_IGN.
func (a Action) IsIgnore() bool { return a.Handler == HandlerIgnore }

// IsOneShot returns true iff the disposition resets to default once read.
func (a Action) IsOneShot() bool { return a.Flags&FlagOneShot != 0 }

// IsNoMask returns true iff the handler runs without saving the blocked mask.
func (a Action) IsNoMask() bool { return a.Flags&FlagNoMask != 0 }

// Table holds one disposition per signal, indexed by signal-1.
type Table [NSIG]Action

// Get returns the disposition of sig.
func (t *Table) Get(sig Signal) *Action {
	if !sig.Valid() {
		return nil
	}
	return &t[sig-1]
}
