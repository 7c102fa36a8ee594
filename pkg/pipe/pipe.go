// Package pipe implements anonymous pipes between simulated processes. Data
// goes through a one page ring buffer; readers sleep while it is empty and
// writers sleep while it is full.
package pipe

import (
	"errors"

	"kcore/pkg/mm"
	"kcore/pkg/process"
	"kcore/pkg/signal"
)

// Size is the capacity of a pipe in bytes.
const Size = mm.PageSize

// Pipe errors.
var (
	ErrPipeClosed = errors.New("pipe end is closed")
	ErrBrokenPipe = errors.New("pipe has no readers")
)

// Pipe is a bounded byte stream with one read end and one write end. Ends are
// reference counted the way descriptors share an open file.
type Pipe struct {
	buf     [Size]byte
	head    int
	size    int
	readers int
	writers int
	wait    *process.WaitQueue
}

// New creates a pipe with one reference on each end.
func New() *Pipe {
	return &Pipe{
		readers: 1,
		writers: 1,
		wait:    process.NewWaitQueue("pipe"),
	}
}

// Len returns the number of unread bytes.
func (pp *Pipe) Len() int { return pp.size }

// Read waits for data and copies at most len(b) bytes into b. It returns 0
// once the pipe is empty and every writer is gone.
func (pp *Pipe) Read(p *process.Process, b []byte) (int, error) {
	return p.Trap("read", func() (int, error) {
		if pp.readers == 0 {
			return -1, ErrPipeClosed
		}
		for pp.size == 0 {
			if pp.writers == 0 || len(b) == 0 {
				return 0, nil
			}
			p.Sleep(pp.wait)
		}
		n := 0
		for n < len(b) && pp.size > 0 {
			chunk := min(len(b)-n, pp.size, Size-pp.head)
			copy(b[n:], pp.buf[pp.head:pp.head+chunk])
			pp.head = (pp.head + chunk) % Size
			pp.size -= chunk
			n += chunk
		}
		pp.wait.WakeAll()
		return n, nil
	})
}

// Write copies all of b into the pipe, sleeping while it is full. A write
// with no reader left raises SIGPIPE in the writer and returns the bytes
// written so far, or ErrBrokenPipe when there are none.
func (pp *Pipe) Write(p *process.Process, b []byte) (int, error) {
	return p.Trap("write", func() (int, error) {
		if pp.writers == 0 {
			return -1, ErrPipeClosed
		}
		n := 0
		for n < len(b) {
			if pp.readers == 0 {
				p.Pending = p.Pending.Add(signal.SIGPIPE)
				if n == 0 {
					return -1, ErrBrokenPipe
				}
				return n, nil
			}
			if pp.size == Size {
				pp.wait.WakeAll()
				p.Sleep(pp.wait)
				continue
			}
			tail := (pp.head + pp.size) % Size
			chunk := min(len(b)-n, Size-pp.size, Size-tail)
			copy(pp.buf[tail:tail+chunk], b[n:n+chunk])
			pp.size += chunk
			n += chunk
		}
		pp.wait.WakeAll()
		return n, nil
	})
}

// DupReader adds a reference to the read end.
func (pp *Pipe) DupReader() { pp.readers++ }

// DupWriter adds a reference to the write end.
func (pp *Pipe) DupWriter() { pp.writers++ }

// CloseReader drops a reference to the read end and wakes sleeping writers.
func (pp *Pipe) CloseReader() {
	if pp.readers > 0 {
		pp.readers--
	}
	pp.wait.WakeAll()
}

// CloseWriter drops a reference to the write end and wakes sleeping readers.
func (pp *Pipe) CloseWriter() {
	if pp.writers > 0 {
		pp.writers--
	}
	pp.wait.WakeAll()
}
