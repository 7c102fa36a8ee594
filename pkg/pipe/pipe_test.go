package pipe_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kcore/pkg/config"
	"kcore/pkg/klog"
	"kcore/pkg/pipe"
	"kcore/pkg/process"
	"kcore/pkg/signal"
)

func TestMain(m *testing.M) {
	klog.Setup(io.Discard, "critical")
	os.Exit(m.Run())
}

func run(t *testing.T, init process.Program) {
	t.Helper()
	cfg := config.Default()
	cfg.Sched.Tasks = 8
	cfg.Sched.MaxTicks = 10000
	k, err := process.New(cfg)
	require.NoError(t, err)
	require.NoError(t, k.Run(context.Background(), init))
}

func TestStreamLargerThanBuffer(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	pp := pipe.New()
	var got bytes.Buffer
	var written int
	var writeErr error
	run(t, func(p *process.Process) {
		pid, _ := p.Fork(func(c *process.Process) {
			written, writeErr = pp.Write(c, data)
			pp.CloseWriter()
		})
		buf := make([]byte, 1500)
		for {
			n, err := pp.Read(p, buf)
			if !assert.NoError(t, err) || n == 0 {
				break
			}
			got.Write(buf[:n])
		}
		p.Wait(pid, 0)
	})
	assert.NoError(t, writeErr)
	assert.Equal(t, len(data), written)
	assert.Equal(t, data, got.Bytes())
	assert.Equal(t, 0, pp.Len())
}

func TestWriteWithoutReaders(t *testing.T) {
	var killed process.WaitStatus
	var ignoredErr error
	var ignoredN int
	run(t, func(p *process.Process) {
		pp := pipe.New()
		pp.CloseReader()
		pid, _ := p.Fork(func(c *process.Process) {
			pp.Write(c, []byte("lost"))
		})
		_, killed, _ = p.Wait(pid, 0)

		pid, _ = p.Fork(func(c *process.Process) {
			c.Signal(signal.SIGPIPE, signal.HandlerIgnore, 0)
			ignoredN, ignoredErr = pp.Write(c, []byte("lost"))
		})
		p.Wait(pid, 0)
	})
	assert.True(t, killed.Signaled())
	assert.Equal(t, signal.SIGPIPE, killed.Signal())
	assert.Equal(t, -1, ignoredN)
	assert.ErrorIs(t, ignoredErr, pipe.ErrBrokenPipe)
}

func TestReaderSeesEOFWhenWriterCloses(t *testing.T) {
	var n int
	var err error
	run(t, func(p *process.Process) {
		pp := pipe.New()
		pid, _ := p.Fork(func(c *process.Process) {
			n, err = pp.Read(c, make([]byte, 8))
		})
		p.Yield()
		pp.CloseWriter()
		p.Wait(pid, 0)
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestClosedEnds(t *testing.T) {
	var readErr, writeErr error
	var empty int
	run(t, func(p *process.Process) {
		pp := pipe.New()
		empty, _ = pp.Read(p, nil)
		pp.DupReader()
		pp.CloseReader()
		pp.CloseReader()
		_, readErr = pp.Read(p, make([]byte, 1))
		pp.CloseWriter()
		_, writeErr = pp.Write(p, []byte("x"))
	})
	assert.Equal(t, 0, empty)
	assert.ErrorIs(t, readErr, pipe.ErrPipeClosed)
	assert.ErrorIs(t, writeErr, pipe.ErrPipeClosed)
}
