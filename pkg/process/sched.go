package process

import (
	"kcore/pkg/signal"
)

// schedule raises due alarms, wakes interruptible sleepers with a
// deliverable signal and switches to the best runnable process.
func (k *Kernel) schedule() {
	k.table.Each(func(p *Process) {
		if p.AlarmAt != 0 && p.AlarmAt < k.jiffies {
			p.Pending = p.Pending.Add(signal.SIGALRM)
			p.AlarmAt = 0
		}
		if p.State == StateInterruptible && !p.deliverable().IsEmpty() {
			p.setState(StateReady)
		}
	})
	k.switchTo(k.pick())
}

// pick selects the runnable process with the largest counter, scanning from
// the highest slot down and keeping the first of equals. When every runnable
// process has exhausted its slice the counters of all processes are
// replenished and the scan repeats. With nothing runnable it returns idle.
func (k *Kernel) pick() *Process {
	for {
		c, next := -1, 0
		for i := k.table.Len() - 1; i > 0; i-- {
			p, ok := k.table.Lookup(i)
			if !ok || !p.IsRunnable() {
				continue
			}
			if p.Counter > c {
				c, next = p.Counter, i
			}
		}
		if c != 0 {
			p, _ := k.table.Lookup(next)
			return p
		}
		k.replenish()
	}
}

func (k *Kernel) replenish() {
	for i := 0; i < k.table.Len(); i++ {
		if p, ok := k.table.Lookup(i); ok {
			p.Counter = p.Counter>>1 + p.Priority
		}
	}
}

// doTimer accounts one clock tick to the running process. Only user mode
// ticks preempt.
func (k *Kernel) doTimer(user bool) {
	k.jiffies++
	cur := k.current
	if user {
		cur.UTime++
	} else {
		cur.STime++
	}
	k.timers.Tick()
	if k.checkStop() && k.current != k.idle {
		k.switchTo(k.idle)
	}
	cur.Counter--
	if cur.Counter > 0 {
		return
	}
	cur.Counter = 0
	if !user {
		return
	}
	k.schedule()
}

// Compute spends n clock ticks in user mode. The process can be preempted
// and receive signals after every tick.
func (p *Process) Compute(n int) {
	p.mustBeCurrent("compute")
	for i := 0; i < n; i++ {
		p.kernel.doTimer(true)
		p.kernel.returnToUser(p)
	}
}

// SystemWork spends n clock ticks in kernel mode without being preempted.
func (p *Process) SystemWork(n int) {
	p.mustBeCurrent("system work")
	for i := 0; i < n; i++ {
		p.kernel.doTimer(false)
	}
}

// Yield gives up the CPU.
func (p *Process) Yield() {
	p.Trap("sched_yield", func() (int, error) {
		p.kernel.schedule()
		return 0, nil
	})
}

// Pause waits until a signal is delivered.
func (p *Process) Pause() error {
	_, err := p.Trap("pause", func() (int, error) {
		p.setState(StateInterruptible)
		p.kernel.schedule()
		return 0, ErrInterrupted
	})
	return err
}

// Alarm arranges for SIGALRM after seconds and returns the seconds left on
// the previous alarm. Zero cancels.
func (p *Process) Alarm(seconds int) int {
	res, _ := p.Trap("alarm", func() (int, error) {
		k := p.kernel
		hz := int64(k.cfg.Sched.HZ)
		old := p.AlarmAt
		if old != 0 {
			old = (old - k.jiffies) / hz
			if old < 0 {
				old = 0
			}
		}
		if seconds > 0 {
			p.AlarmAt = k.jiffies + hz*int64(seconds)
		} else {
			p.AlarmAt = 0
		}
		return int(old), nil
	})
	return res
}

// Nice lowers the priority by inc as long as it stays positive.
func (p *Process) Nice(inc int) {
	p.Trap("nice", func() (int, error) {
		if p.Priority-inc > 0 {
			p.Priority -= inc
		}
		return 0, nil
	})
}

// FPU returns the live floating point state, taking ownership of the unit
// first. The previous owner's state is saved into its context.
func (p *Process) FPU() []byte {
	p.mustBeCurrent("fpu")
	k := p.kernel
	if k.lastMath == p {
		return k.fpu
	}
	if k.lastMath != nil {
		k.lastMath.Context.FPU = append([]byte(nil), k.fpu...)
	}
	k.lastMath = p
	if p.UsedMath && p.Context.FPU != nil {
		k.fpu = append([]byte(nil), p.Context.FPU...)
	} else {
		k.fpu = make([]byte, fpuSize)
		p.UsedMath = true
	}
	return k.fpu
}
