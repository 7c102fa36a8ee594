// Package blk is a simulated block device. A request occupies the device for
// a fixed number of clock ticks; the submitter sleeps until the completion
// timer wakes it, and other submitters queue until the device is free.
package blk

import (
	"errors"
	"fmt"

	"github.com/op/go-logging"

	"kcore/pkg/klog"
	"kcore/pkg/process"
)

// BlockSize is the size of a device block.
const BlockSize = 1024

// Device errors.
var (
	ErrBadBlock = errors.New("block out of range")
	ErrBadSize  = errors.New("write is not one block")
)

// Stats counts completed requests.
type Stats struct {
	Reads  int
	Writes int
	// Waits is the number of times a submitter found the device busy.
	Waits int
}

// Device is a single-queue block device driven by the kernel clock.
type Device struct {
	k       *process.Kernel
	log     *logging.Logger
	latency int64
	nblocks int

	busy   bool
	io     *process.WaitQueue
	free   *process.WaitQueue
	blocks map[int][]byte
	stats  Stats
}

// New attaches a device of nblocks blocks to k. The request latency comes
// from the kernel's device configuration.
func New(k *process.Kernel, nblocks int) *Device {
	return &Device{
		k:       k,
		log:     klog.New("blk"),
		latency: k.Config().Device.Latency,
		nblocks: nblocks,
		io:      process.NewWaitQueue("blk io"),
		free:    process.NewWaitQueue("blk free"),
		blocks:  make(map[int][]byte),
	}
}

// Read returns a copy of block n. Unwritten blocks read as zeroes.
func (d *Device) Read(p *process.Process, n int) ([]byte, error) {
	buf := make([]byte, BlockSize)
	_, err := p.Trap("bread", func() (int, error) {
		if err := d.check(n); err != nil {
			return -1, err
		}
		d.transfer(p, n, "read")
		copy(buf, d.blocks[n])
		d.stats.Reads++
		return BlockSize, nil
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Write stores data as block n.
func (d *Device) Write(p *process.Process, n int, data []byte) error {
	_, err := p.Trap("bwrite", func() (int, error) {
		if err := d.check(n); err != nil {
			return -1, err
		}
		if len(data) != BlockSize {
			return -1, fmt.Errorf("%w: %w: %d bytes", process.ErrInvalidArgument, ErrBadSize, len(data))
		}
		d.transfer(p, n, "write")
		d.blocks[n] = append([]byte(nil), data...)
		d.stats.Writes++
		return BlockSize, nil
	})
	return err
}

func (d *Device) check(n int) error {
	if n < 0 || n >= d.nblocks {
		return fmt.Errorf("%w: %w: %d", process.ErrInvalidArgument, ErrBadBlock, n)
	}
	return nil
}

// transfer waits for the device, starts the request and sleeps until the
// completion timer fires.
func (d *Device) transfer(p *process.Process, n int, op string) {
	for d.busy {
		d.stats.Waits++
		p.Sleep(d.free)
	}
	d.busy = true
	done := false
	d.log.Debugf("pid %d: %s block %d", p.PID, op, n)
	d.k.AddTimer(d.latency, func() {
		done = true
		d.busy = false
		d.io.WakeAll()
		d.free.Wake()
	})
	for !done {
		p.Sleep(d.io)
	}
}

// Busy reports whether a request is in flight.
func (d *Device) Busy() bool { return d.busy }

// Queued returns the number of submitters waiting for the device.
func (d *Device) Queued() int { return d.free.Len() }

// Stats returns the request counters.
func (d *Device) Stats() Stats { return d.stats }
