package process

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kcore/pkg/signal"
)

func addProc(k *Kernel, slot int, state State, counter, priority int) *Process {
	p := &Process{
		PID:      100 + slot,
		State:    state,
		Counter:  counter,
		Priority: priority,
		kernel:   k,
		run:      make(chan struct{}),
	}
	k.table.Register(slot, p)
	return p
}

func TestPick(t *testing.T) {
	type proc struct {
		slot            int
		state           State
		counter, weight int
	}
	tests := []struct {
		name  string
		procs []proc
		want  int
	}{
		{
			name:  "largest counter wins",
			procs: []proc{{1, StateReady, 5, 15}, {2, StateReady, 9, 15}, {3, StateReady, 3, 15}},
			want:  2,
		},
		{
			name:  "ties go to the highest slot",
			procs: []proc{{1, StateReady, 5, 15}, {3, StateReady, 5, 15}, {2, StateReady, 4, 15}},
			want:  3,
		},
		{
			name:  "running process competes",
			procs: []proc{{1, StateRunning, 8, 15}, {2, StateReady, 7, 15}},
			want:  1,
		},
		{
			name:  "waiting processes are skipped",
			procs: []proc{{1, StateReady, 2, 15}, {2, StateInterruptible, 9, 15}, {3, StateStopped, 9, 15}},
			want:  1,
		},
		{
			name:  "nothing runnable picks idle",
			procs: []proc{{1, StateUninterruptible, 0, 15}, {2, StateZombie, 0, 15}},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKernel(t, nil)
			for _, p := range tt.procs {
				addProc(k, p.slot, p.state, p.counter, p.weight)
			}
			assert.Equal(t, tt.want, k.pick().Slot())
		})
	}
}

func TestPickWithNothingRunnableKeepsCounters(t *testing.T) {
	k := newTestKernel(t, nil)
	p := addProc(k, 1, StateInterruptible, 0, 15)
	assert.Same(t, k.Idle(), k.pick())
	assert.Equal(t, 0, p.Counter)
	assert.Equal(t, 15, k.Idle().Counter)
}

func TestPickReplenishesExhaustedCounters(t *testing.T) {
	k := newTestKernel(t, nil)
	a := addProc(k, 1, StateReady, 0, 10)
	b := addProc(k, 2, StateUninterruptible, 6, 4)
	c := addProc(k, 3, StateRunning, 0, 3)

	assert.Same(t, a, k.pick())
	assert.Equal(t, 10, a.Counter)
	assert.Equal(t, 3+4, b.Counter, "sleepers keep half their slice")
	assert.Equal(t, 3, c.Counter)
	assert.Equal(t, 15/2+15, k.Idle().Counter)
}

func TestReplenishLaw(t *testing.T) {
	k := newTestKernel(t, nil)
	counters := []int{0, 1, 7, 30}
	procs := make([]*Process, len(counters))
	for i, c := range counters {
		procs[i] = addProc(k, i+1, StateUninterruptible, c, 5)
	}
	k.replenish()
	for i, c := range counters {
		assert.Equal(t, c/2+5, procs[i].Counter)
	}
}

func TestTimeSliceRoundRobin(t *testing.T) {
	k := newTestKernel(t, nil)
	doneAt := map[int]int64{}
	var a, b int
	var cutime int64
	boot(t, k, func(p *Process) {
		work := func(c *Process) {
			c.Compute(20)
			doneAt[c.PID] = c.Kernel().Jiffies()
		}
		a, _ = p.Fork(work)
		b, _ = p.Fork(work)
		p.Wait(-1, 0)
		p.Wait(-1, 0)
		cutime = p.CUTime
	})
	// b sits in the higher slot: b runs 15, a runs 15, both are
	// replenished, b finishes its last 5 and a its last 5.
	assert.Equal(t, int64(35), doneAt[b])
	assert.Equal(t, int64(40), doneAt[a])
	assert.Equal(t, int64(40), cutime)
}

func TestKernelTicksDoNotPreempt(t *testing.T) {
	k := newTestKernel(t, nil)
	var counter int
	var stime int64
	boot(t, k, func(p *Process) {
		pid, _ := p.Fork(func(c *Process) {
			c.SystemWork(20)
			counter = c.Counter
		})
		p.Wait(pid, 0)
		stime = p.CSTime
	})
	assert.Equal(t, 0, counter)
	assert.Equal(t, int64(20), stime)
}

func TestAlarm(t *testing.T) {
	k := newTestKernel(t, nil)
	var first, second, cancelled int
	var start, woke int64
	var got signal.Signal
	h := k.RegisterHandler(func(p *Process, sig signal.Signal) { got = sig })
	boot(t, k, func(p *Process) {
		pid, _ := p.Fork(func(c *Process) {
			c.Signal(signal.SIGALRM, h, 0)
			start = k.Jiffies()
			first = c.Alarm(2)
			second = c.Alarm(2)
			c.Pause()
			woke = k.Jiffies()
			cancelled = c.Alarm(0)
		})
		p.Wait(pid, 0)
	})
	assert.Equal(t, 0, first)
	assert.Equal(t, 2, second)
	assert.Equal(t, signal.SIGALRM, got)
	assert.Greater(t, woke, start+200)
	assert.Equal(t, 0, cancelled)
}

func TestNice(t *testing.T) {
	k := newTestKernel(t, nil)
	var after, floor int
	boot(t, k, func(p *Process) {
		p.Nice(5)
		after = p.Priority
		p.Nice(100)
		floor = p.Priority
	})
	assert.Equal(t, 10, after)
	assert.Equal(t, 10, floor)
}

func TestFPUOwnership(t *testing.T) {
	k := newTestKernel(t, nil)
	var childSaved, childLive, parentLive, parentSecond byte
	var ownerAfterExit *Process
	boot(t, k, func(p *Process) {
		p.FPU()[0] = 42
		pid, _ := p.Fork(func(c *Process) {
			childSaved = c.Context.FPU[0]
			live := c.FPU()
			childLive = live[0]
			live[1] = 7
		})
		p.Wait(pid, 0)
		ownerAfterExit = k.lastMath
		parentLive = p.FPU()[0]
		parentSecond = p.FPU()[1]
	})
	assert.Equal(t, byte(42), childSaved)
	assert.Equal(t, byte(42), childLive)
	assert.Nil(t, ownerAfterExit)
	assert.Equal(t, byte(42), parentLive)
	assert.Equal(t, byte(0), parentSecond)
}
