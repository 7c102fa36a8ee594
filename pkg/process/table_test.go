package process

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcore/pkg/signal"
)

func TestTableFindFreeSlot(t *testing.T) {
	tbl := NewTable(4)
	tbl.Register(0, &Process{PID: 0})

	seen := map[int]bool{}
	for want := 1; want < 4; want++ {
		slot, pid, err := tbl.FindFreeSlot()
		require.NoError(t, err)
		assert.Equal(t, want, slot)
		assert.False(t, seen[pid])
		seen[pid] = true
		tbl.Register(slot, &Process{PID: pid})
	}
	assert.Equal(t, 4, tbl.Count())

	_, _, err := tbl.FindFreeSlot()
	assert.ErrorIs(t, err, ErrAgain)
}

func TestTablePIDWraps(t *testing.T) {
	tbl := NewTable(4)
	tbl.Register(0, &Process{PID: 0})
	tbl.Register(1, &Process{PID: 1})
	tbl.lastPID = math.MaxInt32 - 1

	slot, pid, err := tbl.FindFreeSlot()
	require.NoError(t, err)
	assert.Equal(t, 2, slot)
	assert.Equal(t, math.MaxInt32, pid)
	tbl.Register(slot, &Process{PID: pid})

	slot, pid, err = tbl.FindFreeSlot()
	require.NoError(t, err)
	assert.Equal(t, 3, slot)
	assert.Equal(t, 2, pid, "wrapped counter skips the live pid 1")
}

func TestTableRetire(t *testing.T) {
	tbl := NewTable(4)
	tbl.Register(0, &Process{PID: 0})
	tbl.Register(2, &Process{PID: 7})

	assert.NotNil(t, tbl.FindPID(7))
	require.NoError(t, tbl.Retire(2))
	assert.Nil(t, tbl.FindPID(7))
	_, ok := tbl.Lookup(2)
	assert.False(t, ok)

	assert.Error(t, tbl.Retire(2))
	assert.Error(t, tbl.Retire(0))
}

func TestTableRegisterErrors(t *testing.T) {
	tbl := NewTable(2)
	require.NoError(t, tbl.Register(1, &Process{PID: 1}))
	assert.Error(t, tbl.Register(1, &Process{PID: 2}))
	assert.Error(t, tbl.Register(2, &Process{PID: 3}))
	assert.Equal(t, 1, tbl.FindPID(1).PID)
}

func TestTableEachSkipsIdle(t *testing.T) {
	tbl := NewTable(5)
	tbl.Register(0, &Process{PID: 0})
	tbl.Register(1, &Process{PID: 1})
	tbl.Register(3, &Process{PID: 3})
	tbl.Register(4, &Process{PID: 4})

	var order []int
	tbl.Each(func(p *Process) { order = append(order, p.PID) })
	assert.Equal(t, []int{4, 3, 1}, order)
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		valid    bool
	}{
		{StateReady, StateRunning, true},
		{StateRunning, StateReady, true},
		{StateRunning, StateInterruptible, true},
		{StateRunning, StateUninterruptible, true},
		{StateInterruptible, StateReady, true},
		{StateUninterruptible, StateReady, true},
		{StateReady, StateStopped, true},
		{StateStopped, StateReady, true},
		{StateRunning, StateZombie, true},
		{StateReady, StateZombie, false},
		{StateZombie, StateRunning, false},
		{StateStopped, StateRunning, false},
		{StateInterruptible, StateRunning, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v to %v", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidTransition(tt.from, tt.to))
		})
	}
}

func TestInvalidTransitionPanics(t *testing.T) {
	k := newTestKernel(t, nil)
	p := &Process{PID: 9, State: StateZombie, kernel: k}
	assert.Panics(t, func() { p.setState(StateRunning) })
	p.State = StateReady
	assert.NotPanics(t, func() { p.setState(StateReady) })
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninterruptible", StateUninterruptible.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestErrnoOf(t *testing.T) {
	tests := []struct {
		err  error
		want Errno
	}{
		{ErrAgain, EAGAIN},
		{fmt.Errorf("%w: %w", ErrAgain, ErrNoMemory), EAGAIN},
		{ErrNoMemory, ENOMEM},
		{ErrPermission, EPERM},
		{ErrInterrupted, EINTR},
		{ErrNoChildren, ECHILD},
		{ErrNoProcess, ESRCH},
		{ErrBadFile, EBADF},
		{ErrTooManyFiles, EMFILE},
		{ErrFileTableFull, ENFILE},
		{invalidSignal(signal.SIGKILL), EINVAL},
		{errors.New("unknown"), EINVAL},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrnoOf(tt.err))
		})
	}
	assert.Equal(t, 5, Status(5, nil))
	assert.Equal(t, -10, Status(0, ErrNoChildren))
}

func TestWaitStatus(t *testing.T) {
	exited := WaitStatus(7 << 8)
	assert.True(t, exited.Exited())
	assert.Equal(t, 7, exited.ExitStatus())
	assert.False(t, exited.Signaled())

	killed := WaitStatus(signal.SIGKILL)
	assert.False(t, killed.Exited())
	assert.True(t, killed.Signaled())
	assert.Equal(t, signal.SIGKILL, killed.Signal())

	stopped := WaitStatus(0x7f)
	assert.True(t, stopped.Stopped())
	assert.False(t, stopped.Signaled())
}
