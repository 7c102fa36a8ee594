package timer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddImmediate(t *testing.T) {
	q := New(4)
	fired := 0
	q.Add(0, func() { fired++ })
	q.Add(-3, func() { fired++ })
	assert.Equal(t, 2, fired)
	assert.Equal(t, 0, q.Len())

	q.Add(5, nil)
	assert.Equal(t, 0, q.Len())
}

func TestDeltaOrdering(t *testing.T) {
	q := New(8)
	noop := func() {}
	q.Add(10, noop)
	q.Add(3, noop)
	q.Add(7, noop)
	q.Add(3, noop)
	q.Add(12, noop)

	assert.Equal(t, []int64{3, 3, 7, 10, 12}, q.Pending())
	assert.Equal(t, 5, q.Len())
}

func TestTickFiresInOrder(t *testing.T) {
	q := New(8)
	var order []string
	q.Add(2, func() { order = append(order, "b") })
	q.Add(1, func() { order = append(order, "a") })
	q.Add(2, func() { order = append(order, "c") })
	q.Add(4, func() { order = append(order, "d") })

	q.Tick()
	assert.Equal(t, []string{"a"}, order)
	q.Tick()
	assert.Equal(t, []string{"a", "b", "c"}, order)
	q.Tick()
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []int64{1}, q.Pending())
	q.Tick()
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, 0, q.Len())

	q.Tick()
	assert.Equal(t, 4, len(order))
}

func TestCallbackReschedules(t *testing.T) {
	q := New(2)
	count := 0
	var periodic Func
	periodic = func() {
		count++
		if count < 3 {
			q.Add(2, periodic)
		}
	}
	q.Add(2, periodic)
	for i := 0; i < 10; i++ {
		q.Tick()
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, q.Len())
}

func TestSlotsAreReused(t *testing.T) {
	q := New(1)
	fired := 0
	for i := 0; i < 3; i++ {
		q.Add(1, func() { fired++ })
		q.Tick()
	}
	assert.Equal(t, 3, fired)
}

func TestOverflowIsFatal(t *testing.T) {
	q := New(2)
	q.Add(1, func() {})
	q.Add(1, func() {})
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrFull))
	}()
	q.Add(1, func() {})
}

func TestTryAddReportsFullQueue(t *testing.T) {
	q := New(1)
	require.NoError(t, q.TryAdd(3, func() {}))
	err := q.TryAdd(1, func() {})
	assert.ErrorIs(t, err, ErrFull)
	assert.Equal(t, []int64{3}, q.Pending())
	assert.NoError(t, q.TryAdd(0, func() {}), "immediate requests need no slot")
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
}
