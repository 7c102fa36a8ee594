// Package signal defines signal numbers, the one-bit-per-signal pending and
// blocked sets and the per-signal disposition record used by the process
// core.
package signal

import (
	"errors"
	"math/bits"
	"strconv"
)

// Signal represents a signal number in the range [1, NSIG].
type Signal int

// NSIG is the number of signals a process can hold.
const NSIG = 32

const (
	SIGHUP    Signal = 1
	SIGINT    Signal = 2
	SIGQUIT   Signal = 3
	SIGILL    Signal = 4
	SIGTRAP   Signal = 5
	SIGABRT   Signal = 6
	SIGUNUSED Signal = 7
	SIGFPE    Signal = 8
	SIGKILL   Signal = 9
	SIGUSR1   Signal = 10
	SIGSEGV   Signal = 11
	SIGUSR2   Signal = 12
	SIGPIPE   Signal = 13
	SIGALRM   Signal = 14
	SIGTERM   Signal = 15
	SIGSTKFLT Signal = 16
	SIGCHLD   Signal = 17
	SIGCONT   Signal = 18
	SIGSTOP   Signal = 19
	SIGTSTP   Signal = 20
	SIGTTIN   Signal = 21
	SIGTTOU   Signal = 22
)

// Signal errors.
var (
	ErrInvalidSignal = errors.New("invalid signal")
)

var names = map[Signal]string{
	SIGHUP: "SIGHUP", SIGINT: "SIGINT", SIGQUIT: "SIGQUIT", SIGILL: "SIGILL",
	SIGTRAP: "SIGTRAP", SIGABRT: "SIGABRT", SIGUNUSED: "SIGUNUSED", SIGFPE: "SIGFPE",
	SIGKILL: "SIGKILL", SIGUSR1: "SIGUSR1", SIGSEGV: "SIGSEGV", SIGUSR2: "SIGUSR2",
	SIGPIPE: "SIGPIPE", SIGALRM: "SIGALRM", SIGTERM: "SIGTERM", SIGSTKFLT: "SIGSTKFLT",
	SIGCHLD: "SIGCHLD", SIGCONT: "SIGCONT", SIGSTOP: "SIGSTOP", SIGTSTP: "SIGTSTP",
	SIGTTIN: "SIGTTIN", SIGTTOU: "SIGTTOU",
}

// Valid returns true if s is inside [1, NSIG].
func (s Signal) Valid() bool {
	return s >= 1 && s <= NSIG
}

// String returns the conventional signal name.
func (s Signal) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return "SIG" + strconv.Itoa(int(s))
}

// Bit returns the mask bit of s, or 0 for an invalid signal.
func (s Signal) Bit() Set {
	if !s.Valid() {
		return 0
	}
	return 1 << uint(s-1)
}

// Set is a 32-bit signal mask; bit n-1 stands for signal n.
type Set uint32

// Unblockable holds the signals that can never be blocked.
const Unblockable = Set(1<<(SIGKILL-1) | 1<<(SIGSTOP-1))

// Blockable is the complement of Unblockable.
const Blockable = ^Unblockable

// NewSet creates a new signal set with the given signals.
func NewSet(signals ...Signal) Set {
	var s Set
	for _, sig := range signals {
		s |= sig.Bit()
	}
	return s
}

// Has returns true if the set contains the given signal.
func (s Set) Has(sig Signal) bool {
	return s&sig.Bit() != 0
}

// Add returns s with sig added.
func (s Set) Add(sig Signal) Set {
	return s | sig.Bit()
}

// Remove returns s without sig.
func (s Set) Remove(sig Signal) Set {
	return s &^ sig.Bit()
}

// Union returns the union of two signal sets.
func (s Set) Union(other Set) Set { return s | other }

// Intersection returns the intersection of two signal sets.
func (s Set) Intersection(other Set) Set { return s & other }

// Difference returns the signals of s not present in other.
func (s Set) Difference(other Set) Set { return s &^ other }

// IsEmpty returns true if the set is empty.
func (s Set) IsEmpty() bool { return s == 0 }

// Len returns the number of signals in the set.
func (s Set) Len() int { return bits.OnesCount32(uint32(s)) }

// Lowest returns the lowest numbered signal of the set, or 0 when empty.
func (s Set) Lowest() Signal {
	if s == 0 {
		return 0
	}
	return Signal(bits.TrailingZeros32(uint32(s)) + 1)
}

// Signals lists the members in ascending order.
func (s Set) Signals() []Signal {
	var result []Signal
	for s != 0 {
		sig := s.Lowest()
		result = append(result, sig)
		s = s.Remove(sig)
	}
	return result
}
