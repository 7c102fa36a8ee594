package process

// WaitQueue is a FIFO of processes sleeping on one event.
type WaitQueue struct {
	name    string
	waiters []*Process
}

// NewWaitQueue creates an empty queue. The name only shows up in logs.
func NewWaitQueue(name string) *WaitQueue {
	return &WaitQueue{name: name}
}

// Name returns the queue name.
func (q *WaitQueue) Name() string { return q.name }

// Len returns the number of queued processes.
func (q *WaitQueue) Len() int { return len(q.waiters) }

func (q *WaitQueue) has(p *Process) bool {
	for _, w := range q.waiters {
		if w == p {
			return true
		}
	}
	return false
}

func (q *WaitQueue) remove(p *Process) bool {
	for i, w := range q.waiters {
		if w == p {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Wake makes the oldest queued process ready and returns it, or nil for an
// empty queue. It does not reschedule.
func (q *WaitQueue) Wake() *Process {
	if len(q.waiters) == 0 {
		return nil
	}
	p := q.waiters[0]
	q.waiters[0] = nil
	q.waiters = q.waiters[1:]
	if p.State.IsWaiting() {
		p.setState(StateReady)
	}
	return p
}

// WakeAll wakes every queued process in arrival order and returns how many
// were queued.
func (q *WaitQueue) WakeAll() int {
	n := 0
	for q.Wake() != nil {
		n++
	}
	return n
}

// Sleep waits on q until woken. Signals do not end the wait.
func (p *Process) Sleep(q *WaitQueue) {
	k := p.kernel
	if p == k.idle {
		k.panic("task[0] trying to sleep")
	}
	p.mustBeCurrent("sleep")
	q.waiters = append(q.waiters, p)
	k.log.Debugf("pid %d: sleep on %s", p.PID, q.name)
	for q.has(p) {
		p.setState(StateUninterruptible)
		k.schedule()
	}
}

// InterruptibleSleep waits on q until woken or until a signal can be
// delivered, in which case it leaves the queue and returns ErrInterrupted.
func (p *Process) InterruptibleSleep(q *WaitQueue) error {
	k := p.kernel
	if p == k.idle {
		k.panic("task[0] trying to sleep")
	}
	p.mustBeCurrent("interruptible sleep")
	q.waiters = append(q.waiters, p)
	p.setState(StateInterruptible)
	k.schedule()
	if q.remove(p) {
		return ErrInterrupted
	}
	return nil
}
