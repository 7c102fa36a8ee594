package blk_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcore/pkg/blk"
	"kcore/pkg/config"
	"kcore/pkg/klog"
	"kcore/pkg/process"
)

func TestMain(m *testing.M) {
	klog.Setup(io.Discard, "critical")
	os.Exit(m.Run())
}

func newDevice(t *testing.T, latency int64) (*process.Kernel, *blk.Device) {
	t.Helper()
	cfg := config.Default()
	cfg.Sched.Tasks = 8
	cfg.Sched.MaxTicks = 10000
	cfg.Device.Latency = latency
	k, err := process.New(cfg)
	require.NoError(t, err)
	return k, blk.New(k, 16)
}

func TestWriteThenRead(t *testing.T) {
	k, d := newDevice(t, 5)
	data := bytes.Repeat([]byte{7}, blk.BlockSize)
	var (
		start, end   int64
		werr, rerr   error
		got, missing []byte
	)
	err := k.Run(context.Background(), func(p *process.Process) {
		start = k.Jiffies()
		werr = d.Write(p, 3, data)
		end = k.Jiffies()
		got, rerr = d.Read(p, 3)
		missing, _ = d.Read(p, 4)
	})
	require.NoError(t, err)
	require.NoError(t, werr)
	require.NoError(t, rerr)
	assert.GreaterOrEqual(t, end-start, int64(5))
	assert.Equal(t, data, got)
	assert.Equal(t, make([]byte, blk.BlockSize), missing)
	assert.Equal(t, blk.Stats{Reads: 2, Writes: 1}, d.Stats())
	assert.False(t, d.Busy())
}

func TestRequestsAreSerialised(t *testing.T) {
	k, d := newDevice(t, 5)
	var elapsed int64
	var queued int
	var errs []error
	err := k.Run(context.Background(), func(p *process.Process) {
		start := k.Jiffies()
		for i := 0; i < 2; i++ {
			block := i
			p.Fork(func(c *process.Process) {
				errs = append(errs, d.Write(c, block, make([]byte, blk.BlockSize)))
			})
		}
		for d.Queued() == 0 {
			p.Yield()
		}
		queued = d.Queued()
		p.Wait(-1, 0)
		p.Wait(-1, 0)
		elapsed = k.Jiffies() - start
	})
	require.NoError(t, err)
	assert.Equal(t, []error{nil, nil}, errs)
	assert.Equal(t, 1, queued)
	assert.GreaterOrEqual(t, elapsed, int64(10))
	assert.Equal(t, 2, d.Stats().Writes)
	assert.Equal(t, 1, d.Stats().Waits)
}

func TestZeroLatencyCompletesInline(t *testing.T) {
	k, d := newDevice(t, 0)
	var start, end int64
	err := k.Run(context.Background(), func(p *process.Process) {
		start = k.Jiffies()
		d.Write(p, 0, make([]byte, blk.BlockSize))
		end = k.Jiffies()
	})
	require.NoError(t, err)
	assert.Equal(t, start, end)
	assert.Equal(t, 1, d.Stats().Writes)
}

func TestBadRequests(t *testing.T) {
	k, d := newDevice(t, 5)
	var rangeErr, sizeErr error
	var status int
	err := k.Run(context.Background(), func(p *process.Process) {
		_, rangeErr = d.Read(p, 16)
		sizeErr = d.Write(p, 1, []byte("short"))
		status = process.Status(0, sizeErr)
	})
	require.NoError(t, err)
	assert.ErrorIs(t, rangeErr, blk.ErrBadBlock)
	assert.ErrorIs(t, rangeErr, process.ErrInvalidArgument)
	assert.ErrorIs(t, sizeErr, blk.ErrBadSize)
	assert.Equal(t, -int(process.EINVAL), status)
	assert.Equal(t, blk.Stats{}, d.Stats())
}
