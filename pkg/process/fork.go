package process

import (
	"fmt"

	"kcore/pkg/mm"
)

// Fork creates a child running prog and returns its process id. The child
// is a copy of the caller: it shares open files and directories, inherits
// signal dispositions and the blocked mask, and sees a zero return register.
func (p *Process) Fork(prog Program) (int, error) {
	return p.Trap("fork", func() (int, error) {
		child, err := p.kernel.fork(p, prog)
		if err != nil {
			return 0, err
		}
		return child.PID, nil
	})
}

func (k *Kernel) fork(parent *Process, prog Program) (*Process, error) {
	slot, pid, err := k.table.FindFreeSlot()
	if err != nil {
		k.log.Warningf("fork from pid %d: no free task slot", parent.PID)
		return nil, err
	}
	page, ok := k.mem.AllocPage()
	if !ok {
		k.log.Warningf("fork from pid %d: no free page", parent.PID)
		return nil, fmt.Errorf("%w: task page: %w", ErrAgain, ErrNoMemory)
	}

	child := new(Process)
	*child = *parent
	child.PID = pid
	child.Father = parent.PID
	child.Counter = parent.Priority
	child.Leader = false
	child.Pending = 0
	child.AlarmAt = 0
	child.ExitCode = 0
	child.UTime, child.STime = 0, 0
	child.CUTime, child.CSTime = 0, 0
	child.StartTime = k.jiffies
	child.Context = parent.Context.clone()
	child.Context.AX = 0
	if k.lastMath == parent {
		child.Context.FPU = append([]byte(nil), k.fpu...)
	}
	child.page = page
	child.program = prog
	child.frames = nil
	child.run = make(chan struct{})

	if err := k.copyMem(slot, child); err != nil {
		k.mem.FreePage(page)
		k.log.Warningf("fork from pid %d: %v", parent.PID, err)
		return nil, err
	}
	for _, f := range child.Files {
		if f != nil {
			k.files.Dup(f)
		}
	}
	child.Pwd = k.files.Iget(child.Pwd)
	child.Root = k.files.Iget(child.Root)

	child.State = StateReady
	if err := k.table.Register(slot, child); err != nil {
		k.panic("fork: %v", err)
	}
	k.log.Debugf("fork: pid %d -> pid %d in slot %d", parent.PID, pid, slot)
	go child.start()
	return child, nil
}

// copyMem gives p the linear region of slot and copies the parent's pages
// into it. On failure the partial copy is released.
func (k *Kernel) copyMem(slot int, p *Process) error {
	if p.Code.Base != p.Data.Base {
		k.panic("we don't support separate I&D")
	}
	if p.Data.Limit < p.Code.Limit {
		k.panic("bad data limit")
	}
	oldBase := p.Data.Base
	newBase := uint32(slot) * mm.SlotRegion
	p.Code.Base, p.Data.Base = newBase, newBase
	if err := k.mem.CopyRange(oldBase, newBase, p.Data.Limit); err != nil {
		k.mem.FreeRange(newBase, p.Data.Limit)
		return fmt.Errorf("%w: copy address space: %w", ErrAgain, err)
	}
	return nil
}
