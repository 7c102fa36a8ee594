package process

import (
	"kcore/pkg/fs"
	"kcore/pkg/mm"
	"kcore/pkg/signal"
)

// Program is the body of a simulated process. It runs on its own goroutine
// and only while the process holds the CPU. Returning from a Program is
// equivalent to calling Exit(0).
type Program func(p *Process)

// Handler is a signal handler upcall.
type Handler func(p *Process, sig signal.Signal)

// Segment is a base/limit pair of a linear address region.
type Segment struct {
	Base  uint32
	Limit uint32
}

// Context is the saved execution context of a process. Only the context
// switch, fork and signal frames touch it.
type Context struct {
	IP    uint32
	SP    uint32
	AX    uint32
	CX    uint32
	DX    uint32
	Flags uint32
	// FPU is the saved floating point state.
	FPU []byte
}

func (c Context) clone() Context {
	if c.FPU != nil {
		c.FPU = append([]byte(nil), c.FPU...)
	}
	return c
}

// Process is a process control block.
type Process struct {
	// PID is the process identifier.
	PID int
	// Father is the PID of the parent; 0 once the parent is gone.
	Father int
	// Pgrp is the process group.
	Pgrp int
	// Session is the session identifier.
	Session int
	// Leader is set for session leaders.
	Leader bool
	// TTY is the controlling terminal, -1 when none.
	TTY int

	UID  int
	EUID int
	GID  int
	EGID int

	// State is the scheduling state.
	State State
	// Counter is the remaining time slice in ticks.
	Counter int
	// Priority is added back into Counter at replenishment.
	Priority int

	// UTime and STime are user and kernel ticks consumed.
	UTime int64
	STime int64
	// CUTime and CSTime are the totals of reaped children.
	CUTime int64
	CSTime int64
	// StartTime is the tick the process was created at.
	StartTime int64
	// AlarmAt is the tick SIGALRM is due at, 0 when unset.
	AlarmAt int64
	// ExitCode is the wait status stored at termination.
	ExitCode int

	// Pending holds the signals sent and not yet delivered.
	Pending signal.Set
	// Blocked holds the signals that are not delivered while pending.
	Blocked signal.Set
	// Actions holds the disposition of every signal.
	Actions signal.Table

	// Code and Data describe the address space.
	Code Segment
	Data Segment
	// Files are the open file slots; the entries are shared with the file layer.
	Files [fs.NROpen]*fs.File
	// Pwd and Root are referenced directory inodes.
	Pwd  *fs.Inode
	Root *fs.Inode
	// UsedMath is set once the process has touched the FPU.
	UsedMath bool
	// Context is the saved execution context.
	Context Context

	kernel  *Kernel
	slot    int
	page    mm.Page
	run     chan struct{}
	program Program
	frames  []SignalFrame
}

// Kernel returns the kernel the process belongs to.
func (p *Process) Kernel() *Kernel { return p.kernel }

// Slot returns the process table slot.
func (p *Process) Slot() int { return p.slot }

// IsRunnable returns true if the process can be picked by the scheduler.
func (p *Process) IsRunnable() bool {
	return p.State == StateRunning || p.State == StateReady
}

// Frames returns the depth of the signal frame stack.
func (p *Process) Frames() int { return len(p.frames) }

func (p *Process) suser() bool { return p.EUID == 0 }

func (p *Process) mustBeCurrent(op string) {
	if k := p.kernel; k.current != p {
		k.panic("%s: pid %d is not the running process", op, p.PID)
	}
}

// start is the goroutine body of a forked process.
func (p *Process) start() {
	<-p.run
	p.kernel.returnToUser(p)
	if p.program != nil {
		p.program(p)
	}
	p.Exit(0)
}
