package process

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/op/go-logging"

	"kcore/pkg/config"
	"kcore/pkg/fs"
	"kcore/pkg/klog"
	"kcore/pkg/mm"
	"kcore/pkg/signal"
	"kcore/pkg/timer"
	"kcore/pkg/tty"
)

// idleLimit is the size of the idle process image.
const idleLimit = 640 * 1024

// fpuSize is the size of a saved i387 state.
const fpuSize = 108

// Text addresses handed out by RegisterProgram and RegisterHandler. The
// first two handler values are the default and ignore sentinels.
const (
	textBase uintptr = 0x1000
	textStep uintptr = 0x10
)

// mapper is implemented by memory collaborators that can map the idle image.
type mapper interface {
	Map(base, limit uint32) error
}

// Kernel owns the process table and every structure the scheduler touches.
// Exactly one process executes at a time and only the executing process
// mutates kernel state, so the kernel holds no locks.
type Kernel struct {
	cfg    *config.Config
	log    *logging.Logger
	bootID string

	table  *Table
	timers *timer.Queue
	mem    mm.Memory
	files  fs.Layer
	ttys   *tty.Table

	idle    *Process
	current *Process
	jiffies int64

	// lastMath owns the live FPU state held in fpu.
	lastMath *Process
	fpu      []byte

	text     map[uintptr]interface{}
	nextText uintptr

	ctx    context.Context
	booted bool
	stop   error
}

// Option configures a Kernel.
type Option func(k *Kernel)

// WithMemory replaces the default memory arena.
func WithMemory(m mm.Memory) Option {
	return func(k *Kernel) { k.mem = m }
}

// WithFiles replaces the default file table.
func WithFiles(l fs.Layer) Option {
	return func(k *Kernel) { k.files = l }
}

// WithTerminals replaces the default terminal table.
func WithTerminals(t *tty.Table) Option {
	return func(k *Kernel) { k.ttys = t }
}

// New creates a kernel with the idle process installed in slot 0. A nil
// config means config.Default().
func New(cfg *config.Config, opts ...Option) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	k := &Kernel{
		cfg:      cfg,
		log:      klog.New("kernel"),
		bootID:   uuid.New().String(),
		table:    NewTable(cfg.Sched.Tasks),
		timers:   timer.New(cfg.Sched.TimerRequests),
		text:     make(map[uintptr]interface{}),
		nextText: textBase,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.mem == nil {
		k.mem = mm.NewArena(&cfg.Memory)
	}
	if k.files == nil {
		k.files = fs.NewTable(cfg.Files.OpenFiles)
	}
	if k.ttys == nil {
		k.ttys = tty.NewTable(cfg.Files.Terminals)
	}

	idle := &Process{
		TTY:      -1,
		State:    StateRunning,
		Counter:  cfg.Sched.IdlePriority,
		Priority: cfg.Sched.IdlePriority,
		Code:     Segment{Base: 0, Limit: idleLimit},
		Data:     Segment{Base: 0, Limit: idleLimit},
		kernel:   k,
		run:      make(chan struct{}),
	}
	if m, ok := k.mem.(mapper); ok {
		if err := m.Map(0, idleLimit); err != nil {
			return nil, fmt.Errorf("map idle image: %w", err)
		}
	}
	idle.Root = k.files.Namei("/")
	idle.Pwd = k.files.Iget(idle.Root)
	if err := k.table.Register(0, idle); err != nil {
		k.panic("%v", err)
	}
	k.idle, k.current = idle, idle
	return k, nil
}

// Run boots init as the first child of the idle process and runs the idle
// loop until every other process is gone (nil), ctx is done (ctx.Err()) or
// the configured tick limit is reached (ErrStalled). A kernel boots once.
func (k *Kernel) Run(ctx context.Context, init Program) error {
	if k.booted {
		return ErrRunning
	}
	if ctx == nil {
		ctx = context.Background()
	}
	k.booted = true
	k.ctx = ctx
	k.log.Infof("boot %s: %d tasks, HZ=%d", k.bootID, k.table.Len(), k.cfg.Sched.HZ)

	if _, err := k.fork(k.idle, init); err != nil {
		return fmt.Errorf("fork init: %w", err)
	}
	for k.table.Count() > 1 {
		if k.checkStop() {
			break
		}
		k.schedule()
		if k.stop != nil {
			break
		}
		k.doTimer(true)
	}
	if k.stop != nil {
		k.log.Warningf("halted at tick %d: %v", k.jiffies, k.stop)
		return k.stop
	}
	k.log.Infof("all tasks exited at tick %d", k.jiffies)
	return nil
}

// checkStop records the reason Run has to return, if any.
func (k *Kernel) checkStop() bool {
	if k.stop != nil {
		return true
	}
	if k.ctx != nil {
		if err := k.ctx.Err(); err != nil {
			k.stop = err
			return true
		}
	}
	if max := k.cfg.Sched.MaxTicks; max > 0 && k.jiffies >= max {
		k.stop = ErrStalled
		return true
	}
	return false
}

// RegisterProgram places prog in the kernel text and returns its address,
// usable as the argument of the fork system call.
func (k *Kernel) RegisterProgram(prog Program) uintptr {
	return k.place(prog)
}

// RegisterHandler places h in the kernel text and returns its address,
// usable as a signal handler or restorer.
func (k *Kernel) RegisterHandler(h Handler) uintptr {
	return k.place(h)
}

func (k *Kernel) place(v interface{}) uintptr {
	addr := k.nextText
	k.nextText += textStep
	k.text[addr] = v
	return addr
}

func (k *Kernel) handlerAt(addr uintptr) (Handler, bool) {
	h, ok := k.text[addr].(Handler)
	return h, ok
}

func (k *Kernel) programAt(addr uintptr) (Program, bool) {
	prog, ok := k.text[addr].(Program)
	return prog, ok
}

// AddTimer runs fn after ticks clock ticks, on whichever process holds the
// CPU at the time. fn must not block. Running out of timer requests is a
// kernel panic.
func (k *Kernel) AddTimer(ticks int64, fn func()) {
	if err := k.timers.TryAdd(ticks, fn); err != nil {
		k.panic("%v", err)
	}
}

// Config returns the boot configuration.
func (k *Kernel) Config() *config.Config { return k.cfg }

// BootID identifies this kernel instance in logs and traces.
func (k *Kernel) BootID() string { return k.bootID }

// Current returns the process holding the CPU.
func (k *Kernel) Current() *Process { return k.current }

// Idle returns the idle process.
func (k *Kernel) Idle() *Process { return k.idle }

// Jiffies returns the number of clock ticks since boot.
func (k *Kernel) Jiffies() int64 { return k.jiffies }

// Table returns the process table.
func (k *Kernel) Table() *Table { return k.table }

// Lookup returns the process with the given id.
func (k *Kernel) Lookup(pid int) (*Process, bool) {
	p := k.table.FindPID(pid)
	return p, p != nil
}

// Terminals returns the terminal table.
func (k *Kernel) Terminals() *tty.Table { return k.ttys }

// Info is a point in time view of one process.
type Info struct {
	Slot     int
	PID      int
	Father   int
	Pgrp     int
	Session  int
	State    State
	Counter  int
	Priority int
	UTime    int64
	STime    int64
	Pending  signal.Set
}

// Snapshot returns a view of every process in slot order.
func (k *Kernel) Snapshot() []Info {
	infos := make([]Info, 0, k.table.Count())
	for i := 0; i < k.table.Len(); i++ {
		p, ok := k.table.Lookup(i)
		if !ok {
			continue
		}
		infos = append(infos, Info{
			Slot:     i,
			PID:      p.PID,
			Father:   p.Father,
			Pgrp:     p.Pgrp,
			Session:  p.Session,
			State:    p.State,
			Counter:  p.Counter,
			Priority: p.Priority,
			UTime:    p.UTime,
			STime:    p.STime,
			Pending:  p.Pending,
		})
	}
	return infos
}

// ShowStat logs one line per process.
func (k *Kernel) ShowStat() {
	for _, info := range k.Snapshot() {
		k.log.Infof("%d: pid=%d, state=%v, counter=%d, utime=%d, stime=%d",
			info.Slot, info.PID, info.State, info.Counter, info.UTime, info.STime)
	}
}
