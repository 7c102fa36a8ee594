package process

// State is the scheduling state of a process.
type State int

const (
	// StateRunning indicates the process holds the CPU.
	StateRunning State = iota
	// StateReady indicates the process can run but does not hold the CPU.
	StateReady
	// StateInterruptible indicates a wait that signals can end.
	StateInterruptible
	// StateUninterruptible indicates a wait that only a wake ends.
	StateUninterruptible
	// StateStopped indicates the process was stopped by a controller.
	StateStopped
	// StateZombie indicates the process terminated and awaits its parent.
	StateZombie
)

var stateNames = [...]string{
	StateRunning:         "running",
	StateReady:           "ready",
	StateInterruptible:   "interruptible",
	StateUninterruptible: "uninterruptible",
	StateStopped:         "stopped",
	StateZombie:          "zombie",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsWaiting returns true for both sleep states.
func (s State) IsWaiting() bool {
	return s == StateInterruptible || s == StateUninterruptible
}

// StateTransition represents a valid state transition.
type StateTransition struct {
	From State
	To   State
}

// ValidTransitions defines all valid state transitions.
var ValidTransitions = []StateTransition{
	// Dispatch and preemption
	{From: StateReady, To: StateRunning},
	{From: StateRunning, To: StateReady},
	// Sleep
	{From: StateRunning, To: StateInterruptible},
	{From: StateRunning, To: StateUninterruptible},
	// Wake, or a deliverable signal for interruptible waits
	{From: StateInterruptible, To: StateReady},
	{From: StateUninterruptible, To: StateReady},
	// Stop and continue
	{From: StateRunning, To: StateStopped},
	{From: StateReady, To: StateStopped},
	{From: StateInterruptible, To: StateStopped},
	{From: StateUninterruptible, To: StateStopped},
	{From: StateStopped, To: StateReady},
	// Termination
	{From: StateRunning, To: StateZombie},
}

// IsValidTransition checks if a state transition is valid.
func IsValidTransition(from, to State) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// setState moves p to state. An invalid transition is a kernel panic.
func (p *Process) setState(to State) {
	if p.State == to {
		return
	}
	if !IsValidTransition(p.State, to) {
		p.kernel.panic("pid %d: invalid state transition %v -> %v", p.PID, p.State, to)
	}
	p.State = to
}
