package process

import (
	"fmt"

	"kcore/pkg/signal"
)

// SignalFrame is the state saved when a handler is entered and restored by
// the restorer when the handler returns.
type SignalFrame struct {
	// Restorer is the address called on handler return.
	Restorer uintptr
	// Signal is the signal being handled.
	Signal signal.Signal
	// Blocked is the mask in force before the handler; only meaningful
	// when SavedMask is set.
	Blocked   signal.Set
	SavedMask bool
	// Context is the interrupted execution context.
	Context Context
}

// Words returns the number of stack words the frame occupies.
func (f SignalFrame) Words() int {
	if f.SavedMask {
		return 8
	}
	return 7
}

func invalidSignal(sig signal.Signal) error {
	return fmt.Errorf("%w: %w: %d", ErrInvalidArgument, signal.ErrInvalidSignal, int(sig))
}

// Signal installs a one-shot handler for sig that does not mask sig while it
// runs, and returns the previous handler address.
func (p *Process) Signal(sig signal.Signal, handler, restorer uintptr) (uintptr, error) {
	var old uintptr
	_, err := p.Trap("signal", func() (int, error) {
		if !sig.Valid() || sig == signal.SIGKILL {
			return 0, invalidSignal(sig)
		}
		a := p.Actions.Get(sig)
		old = a.Handler
		*a = signal.Action{
			Handler:  handler,
			Flags:    signal.FlagOneShot | signal.FlagNoMask,
			Restorer: restorer,
		}
		return int(old), nil
	})
	return old, err
}

// SigAction installs act for sig and stores the previous disposition in old.
// Either may be nil. Unless act asks for FlagNoMask, sig itself is blocked
// while its handler runs.
func (p *Process) SigAction(sig signal.Signal, act, old *signal.Action) error {
	_, err := p.Trap("sigaction", func() (int, error) {
		if !sig.Valid() || sig == signal.SIGKILL {
			return 0, invalidSignal(sig)
		}
		a := p.Actions.Get(sig)
		prev := *a
		if act != nil {
			*a = *act
			if a.IsNoMask() {
				a.Mask = 0
			} else {
				a.Mask = a.Mask.Add(sig)
			}
		}
		if old != nil {
			*old = prev
		}
		return 0, nil
	})
	return err
}

// Kill sends sig to pid: a positive pid names one process, 0 the caller's
// process group, -1 every process but idle and any other negative value the
// process group -pid. Targets the caller may not signal are skipped and the
// last failure is returned.
func (p *Process) Kill(pid int, sig signal.Signal) error {
	_, err := p.Trap("kill", func() (int, error) {
		return 0, p.kernel.kill(p, pid, sig)
	})
	return err
}

func (k *Kernel) kill(cur *Process, pid int, sig signal.Signal) error {
	if !sig.Valid() {
		return invalidSignal(sig)
	}
	var (
		err     error
		matched int
	)
	k.table.Each(func(q *Process) {
		priv := false
		switch {
		case pid == 0:
			if q.Pgrp != cur.Pgrp {
				return
			}
			priv = true
		case pid > 0:
			if q.PID != pid {
				return
			}
		case pid == -1:
		default:
			if q.Pgrp != -pid {
				return
			}
		}
		matched++
		if e := k.sendSignal(cur, q, sig, priv); e != nil {
			err = e
		}
	})
	if matched == 0 {
		return ErrNoProcess
	}
	return err
}

func (k *Kernel) sendSignal(cur, q *Process, sig signal.Signal, priv bool) error {
	if !priv && cur.EUID != q.EUID && !cur.suser() {
		k.log.Debugf("pid %d: may not send %v to pid %d", cur.PID, sig, q.PID)
		return ErrPermission
	}
	q.Pending = q.Pending.Add(sig)
	return nil
}

// SigGetMask returns the blocked mask.
func (p *Process) SigGetMask() signal.Set {
	res, _ := p.Trap("sgetmask", func() (int, error) {
		return int(p.Blocked), nil
	})
	return signal.Set(res)
}

// SigSetMask replaces the blocked mask and returns the previous one. SIGKILL
// and SIGSTOP cannot be blocked.
func (p *Process) SigSetMask(mask signal.Set) signal.Set {
	old := p.Blocked
	p.Trap("ssetmask", func() (int, error) {
		p.Blocked = mask.Intersection(signal.Blockable)
		return int(old), nil
	})
	return old
}

// SigPending returns the set of signals sent and not yet delivered.
func (p *Process) SigPending() signal.Set {
	return p.Pending
}

// deliverable is the set of pending signals the blocked mask lets through.
func (p *Process) deliverable() signal.Set {
	return p.Pending.Difference(p.Blocked.Intersection(signal.Blockable))
}

// returnToUser delivers every deliverable signal, lowest number first.
func (k *Kernel) returnToUser(p *Process) {
	if p == k.idle {
		return
	}
	for {
		sig := p.deliverable().Lowest()
		if sig == 0 {
			return
		}
		p.Pending = p.Pending.Remove(sig)
		k.doSignal(p, sig)
	}
}

func (k *Kernel) doSignal(p *Process, sig signal.Signal) {
	a := p.Actions.Get(sig)
	act := *a
	if act.IsIgnore() {
		return
	}
	if act.IsDefault() {
		if sig == signal.SIGCHLD {
			return
		}
		k.log.Debugf("pid %d: killed by %v", p.PID, sig)
		k.doExit(p, int(sig))
	}
	if act.IsOneShot() {
		a.Handler = signal.HandlerDefault
	}
	h, ok := k.handlerAt(act.Handler)
	if !ok {
		k.log.Warningf("pid %d: %v handler %#x is not in the kernel text", p.PID, sig, act.Handler)
		k.doExit(p, int(signal.SIGSEGV))
	}

	frame := SignalFrame{
		Restorer: act.Restorer,
		Signal:   sig,
		Context:  p.Context.clone(),
	}
	if !act.IsNoMask() {
		frame.Blocked = p.Blocked
		frame.SavedMask = true
	}
	p.frames = append(p.frames, frame)
	p.Context.SP -= uint32(4 * frame.Words())
	p.Context.IP = uint32(act.Handler)
	p.Blocked = p.Blocked.Union(act.Mask)

	h(p, sig)
	k.sigreturn(p)
}

// sigreturn runs the restorer of the innermost frame and unwinds it.
func (k *Kernel) sigreturn(p *Process) {
	n := len(p.frames)
	if n == 0 {
		k.panic("pid %d: sigreturn without a signal frame", p.PID)
	}
	f := p.frames[n-1]
	if r, ok := k.handlerAt(f.Restorer); ok {
		r(p, f.Signal)
	}
	p.frames = p.frames[:n-1]
	if f.SavedMask {
		p.Blocked = f.Blocked
	}
	p.Context = f.Context
}
