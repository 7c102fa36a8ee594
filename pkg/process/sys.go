package process

import (
	"kcore/pkg/signal"
	"kcore/pkg/tracing"
)

// Trap runs fn as the system call name on behalf of p and delivers pending
// signals before returning to the caller.
func (p *Process) Trap(name string, fn func() (int, error)) (int, error) {
	p.mustBeCurrent(name)
	k := p.kernel
	_, span := tracing.StartSpan(k.ctx, name)
	span.WithInt("pid", p.PID)
	res, err := fn()
	if err != nil {
		span.WithAttributes(map[string]string{"errno": ErrnoOf(err).String()})
		k.log.Debugf("pid %d: %s: %v", p.PID, name, err)
	}
	tracing.EndSpan(span, Status(res, err), err)
	k.returnToUser(p)
	return res, err
}

// Getpid returns the process id.
func (p *Process) Getpid() int { return p.PID }

// Getppid returns the parent's process id.
func (p *Process) Getppid() int { return p.Father }

// Getuid returns the real user id.
func (p *Process) Getuid() int { return p.UID }

// Geteuid returns the effective user id.
func (p *Process) Geteuid() int { return p.EUID }

// Getgid returns the real group id.
func (p *Process) Getgid() int { return p.GID }

// Getegid returns the effective group id.
func (p *Process) Getegid() int { return p.EGID }

// Getpgrp returns the process group.
func (p *Process) Getpgrp() int { return p.Pgrp }

// Setpgid moves process pid into process group pgid. Zero means the caller
// for either argument. Session leaders and processes of other sessions
// cannot be moved.
func (p *Process) Setpgid(pid, pgid int) error {
	_, err := p.Trap("setpgid", func() (int, error) {
		if pid == 0 {
			pid = p.PID
		}
		if pgid == 0 {
			pgid = p.PID
		}
		q := p.kernel.table.FindPID(pid)
		if q == nil || q == p.kernel.idle {
			return 0, ErrNoProcess
		}
		if q.Leader || q.Session != p.Session {
			return 0, ErrPermission
		}
		q.Pgrp = pgid
		return 0, nil
	})
	return err
}

// Setsid makes the caller the leader of a new session and process group
// without a controlling terminal, and returns the new group.
func (p *Process) Setsid() (int, error) {
	return p.Trap("setsid", func() (int, error) {
		if p.Leader && !p.suser() {
			return 0, ErrPermission
		}
		p.Leader = true
		p.Session = p.PID
		p.Pgrp = p.PID
		p.TTY = -1
		return p.Pgrp, nil
	})
}

// Setuid sets the real and effective user ids. Only the superuser may pick
// an id other than the current real or effective one.
func (p *Process) Setuid(uid int) error {
	_, err := p.Trap("setuid", func() (int, error) {
		if !p.suser() && uid != p.UID && uid != p.EUID {
			return 0, ErrPermission
		}
		p.UID, p.EUID = uid, uid
		return 0, nil
	})
	return err
}

// Setgid sets the real and effective group ids.
func (p *Process) Setgid(gid int) error {
	_, err := p.Trap("setgid", func() (int, error) {
		if !p.suser() && gid != p.GID && gid != p.EGID {
			return 0, ErrPermission
		}
		p.GID, p.EGID = gid, gid
		return 0, nil
	})
	return err
}

// Suspend stops process pid until Resume. The parent is sent SIGCHLD unless
// it asked for FlagNoCldStop. Suspending the running process reschedules.
func (k *Kernel) Suspend(pid int) error {
	p := k.table.FindPID(pid)
	if p == nil || p == k.idle || p.State == StateZombie {
		return ErrNoProcess
	}
	if p.State == StateStopped {
		return nil
	}
	p.setState(StateStopped)
	k.log.Debugf("pid %d: stopped", p.PID)
	if f := k.table.FindPID(p.Father); f != nil && p.Father != 0 {
		if a := f.Actions.Get(signal.SIGCHLD); a.Flags&signal.FlagNoCldStop == 0 {
			f.Pending = f.Pending.Add(signal.SIGCHLD)
		}
	}
	if p == k.current {
		k.schedule()
	}
	return nil
}

// Resume makes a stopped process runnable again.
func (k *Kernel) Resume(pid int) error {
	p := k.table.FindPID(pid)
	if p == nil || p == k.idle || p.State == StateZombie {
		return ErrNoProcess
	}
	if p.State == StateStopped {
		p.setState(StateReady)
		k.log.Debugf("pid %d: continued", p.PID)
	}
	return nil
}

// Linux 0.11 system call numbers.
const (
	SysExit     = 1
	SysFork     = 2
	SysClose    = 6
	SysGetpid   = 20
	SysSetuid   = 23
	SysGetuid   = 24
	SysAlarm    = 27
	SysPause    = 29
	SysNice     = 34
	SysKill     = 37
	SysDup      = 41
	SysSetgid   = 46
	SysGetgid   = 47
	SysSignal   = 48
	SysGeteuid  = 49
	SysGetegid  = 50
	SysSetpgid  = 57
	SysGetppid  = 64
	SysGetpgrp  = 65
	SysSetsid   = 66
	SysSgetmask = 68
	SysSsetmask = 69
)

// Syscall dispatches system call nr with integer arguments and returns the
// result, or -errno on failure. Missing arguments read as zero. Fork takes
// the address of a registered Program.
func (p *Process) Syscall(nr int, args ...int) int {
	arg := func(i int) int {
		if i < len(args) {
			return args[i]
		}
		return 0
	}
	switch nr {
	case SysExit:
		p.Exit(arg(0))
		return 0
	case SysFork:
		prog, ok := p.kernel.programAt(uintptr(arg(0)))
		if !ok {
			return -int(EINVAL)
		}
		return Status(p.Fork(prog))
	case SysClose:
		return Status(0, p.Close(arg(0)))
	case SysDup:
		return Status(p.Dup(arg(0)))
	case SysGetpid:
		return p.trapInt("getpid", p.Getpid)
	case SysGetppid:
		return p.trapInt("getppid", p.Getppid)
	case SysGetuid:
		return p.trapInt("getuid", p.Getuid)
	case SysGeteuid:
		return p.trapInt("geteuid", p.Geteuid)
	case SysGetgid:
		return p.trapInt("getgid", p.Getgid)
	case SysGetegid:
		return p.trapInt("getegid", p.Getegid)
	case SysGetpgrp:
		return p.trapInt("getpgrp", p.Getpgrp)
	case SysSetuid:
		return Status(0, p.Setuid(arg(0)))
	case SysSetgid:
		return Status(0, p.Setgid(arg(0)))
	case SysSetpgid:
		return Status(0, p.Setpgid(arg(0), arg(1)))
	case SysSetsid:
		return Status(p.Setsid())
	case SysAlarm:
		return p.Alarm(arg(0))
	case SysPause:
		return Status(0, p.Pause())
	case SysNice:
		p.Nice(arg(0))
		return 0
	case SysKill:
		return Status(0, p.Kill(arg(0), signal.Signal(arg(1))))
	case SysSignal:
		old, err := p.Signal(signal.Signal(arg(0)), uintptr(arg(1)), uintptr(arg(2)))
		return Status(int(old), err)
	case SysSgetmask:
		return int(p.SigGetMask())
	case SysSsetmask:
		return int(p.SigSetMask(signal.Set(arg(0))))
	}
	p.kernel.log.Warningf("pid %d: unknown system call %d", p.PID, nr)
	return -int(EINVAL)
}

func (p *Process) trapInt(name string, fn func() int) int {
	res, _ := p.Trap(name, func() (int, error) {
		return fn(), nil
	})
	return res
}
