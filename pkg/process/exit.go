package process

import (
	"kcore/pkg/signal"
	"kcore/pkg/tracing"
)

// Wait options.
const (
	// WNOHANG makes Wait return 0 instead of blocking.
	WNOHANG = 1
	// WUNTRACED makes Wait report stopped children.
	WUNTRACED = 2
)

// WaitStatus is the status word Wait reports.
type WaitStatus int

// Exited returns true if the child called Exit.
func (w WaitStatus) Exited() bool { return w&0x7f == 0 }

// ExitStatus returns the code passed to Exit.
func (w WaitStatus) ExitStatus() int { return int(w>>8) & 0xff }

// Signaled returns true if the child was killed by a signal.
func (w WaitStatus) Signaled() bool { return w&0x7f != 0 && w&0x7f != 0x7f }

// Signal returns the signal that killed the child.
func (w WaitStatus) Signal() signal.Signal { return signal.Signal(w & 0x7f) }

// Stopped returns true for a stopped child.
func (w WaitStatus) Stopped() bool { return w&0xff == 0x7f }

// Exit terminates the process with the given exit code. It does not return.
func (p *Process) Exit(code int) {
	p.mustBeCurrent("exit")
	k := p.kernel
	_, span := tracing.StartSpan(k.ctx, "exit")
	span.WithInt("pid", p.PID)
	tracing.EndSpan(span, code, nil)
	k.doExit(p, (code&0xff)<<8)
}

func (k *Kernel) doExit(p *Process, code int) {
	if p == k.idle {
		k.panic("trying to exit task[0]")
	}
	k.mem.FreeRange(p.Code.Base, p.Code.Limit)
	k.mem.FreeRange(p.Data.Base, p.Data.Limit)
	k.table.Each(func(c *Process) {
		if c == p || c.Father != p.PID {
			return
		}
		c.Father = 0
		if c.State == StateZombie {
			k.release(c)
		}
	})
	for i, f := range p.Files {
		if f != nil {
			k.files.Close(f)
			p.Files[i] = nil
		}
	}
	k.files.Iput(p.Pwd)
	p.Pwd = nil
	k.files.Iput(p.Root)
	p.Root = nil
	if p.Leader && p.TTY >= 0 {
		if t, err := k.ttys.Get(p.TTY); err == nil {
			t.Pgrp = 0
		}
	}
	if k.lastMath == p {
		k.lastMath = nil
	}
	if p.Leader {
		k.killSession(p)
	}
	p.setState(StateZombie)
	p.ExitCode = code
	k.log.Debugf("pid %d: exit status %#x", p.PID, code)
	k.tellFather(p)
	k.schedule()
	k.panic("pid %d: zombie scheduled", p.PID)
}

func (k *Kernel) killSession(p *Process) {
	k.table.Each(func(q *Process) {
		if q != p && q.Session == p.Session {
			q.Pending = q.Pending.Add(signal.SIGHUP)
		}
	})
}

// tellFather raises SIGCHLD on the parent. An orphan has nobody to reap it
// and is released on the spot.
func (k *Kernel) tellFather(p *Process) {
	if p.Father != 0 {
		if f := k.table.FindPID(p.Father); f != nil {
			f.Pending = f.Pending.Add(signal.SIGCHLD)
			return
		}
	}
	k.log.Debugf("pid %d: no father, releasing", p.PID)
	k.release(p)
}

func (k *Kernel) release(p *Process) {
	if q, ok := k.table.Lookup(p.slot); !ok || q != p {
		k.panic("trying to release non-existent task")
	}
	if err := k.table.Retire(p.slot); err != nil {
		k.panic("%v", err)
	}
	k.mem.FreePage(p.page)
}

// Wait reaps a child and returns its id and status. pid selects the child:
// a positive value names it, 0 means any child in the caller's process
// group, -1 any child and any other negative value any child in process
// group -pid. With WNOHANG it returns 0 while the children are alive.
func (p *Process) Wait(pid int, options int) (int, WaitStatus, error) {
	var status WaitStatus
	res, err := p.Trap("waitpid", func() (int, error) {
		k := p.kernel
		for {
			alive := false
			for i := k.table.Len() - 1; i > 0; i-- {
				c, ok := k.table.Lookup(i)
				if !ok || c == p || c.Father != p.PID || !waitMatch(p, c, pid) {
					continue
				}
				switch c.State {
				case StateStopped:
					if options&WUNTRACED == 0 {
						alive = true
						continue
					}
					status = 0x7f
					return c.PID, nil
				case StateZombie:
					p.CUTime += c.UTime + c.CUTime
					p.CSTime += c.STime + c.CSTime
					status = WaitStatus(c.ExitCode)
					cpid := c.PID
					k.release(c)
					return cpid, nil
				default:
					alive = true
				}
			}
			if !alive {
				return 0, ErrNoChildren
			}
			if options&WNOHANG != 0 {
				return 0, nil
			}
			p.setState(StateInterruptible)
			k.schedule()
			p.Pending = p.Pending.Remove(signal.SIGCHLD)
			if !p.deliverable().IsEmpty() {
				return 0, ErrInterrupted
			}
		}
	})
	return res, status, err
}

func waitMatch(p, c *Process, pid int) bool {
	switch {
	case pid > 0:
		return c.PID == pid
	case pid == 0:
		return c.Pgrp == p.Pgrp
	case pid == -1:
		return true
	default:
		return c.Pgrp == -pid
	}
}
