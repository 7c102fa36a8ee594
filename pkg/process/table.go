package process

import (
	"errors"
	"fmt"
)

// Table is the fixed-size process table. Slot 0 holds the idle process.
type Table struct {
	slots   []*Process
	lastPID int32
}

// NewTable creates a table with n slots.
func NewTable(n int) *Table {
	return &Table{slots: make([]*Process, n)}
}

// Len returns the number of slots.
func (t *Table) Len() int { return len(t.slots) }

// Register installs p in slot. The kernel treats a failure as fatal.
func (t *Table) Register(slot int, p *Process) error {
	if slot < 0 || slot >= len(t.slots) {
		return fmt.Errorf("register: slot %d out of range", slot)
	}
	if t.slots[slot] != nil {
		return fmt.Errorf("register: slot %d already in use", slot)
	}
	p.slot = slot
	t.slots[slot] = p
	return nil
}

// Lookup returns the process in slot.
func (t *Table) Lookup(slot int) (*Process, bool) {
	if slot < 0 || slot >= len(t.slots) || t.slots[slot] == nil {
		return nil, false
	}
	return t.slots[slot], true
}

// FindFreeSlot picks an unused non-reserved slot and a process id not used by
// any process in the table. The id counter advances even when the table is
// full.
func (t *Table) FindFreeSlot() (slot int, pid int, err error) {
	for {
		t.lastPID++
		if t.lastPID < 0 {
			t.lastPID = 1
		}
		if t.FindPID(int(t.lastPID)) == nil {
			break
		}
	}
	for i := 1; i < len(t.slots); i++ {
		if t.slots[i] == nil {
			return i, int(t.lastPID), nil
		}
	}
	return 0, 0, ErrAgain
}

// Retire empties slot. An empty or reserved slot cannot be retired.
func (t *Table) Retire(slot int) error {
	if slot <= 0 || slot >= len(t.slots) || t.slots[slot] == nil {
		return errors.New("trying to release non-existent task")
	}
	t.slots[slot] = nil
	return nil
}

// FindPID returns the process with the given id, or nil.
func (t *Table) FindPID(pid int) *Process {
	for _, p := range t.slots {
		if p != nil && p.PID == pid {
			return p
		}
	}
	return nil
}

// Count returns the number of occupied slots.
func (t *Table) Count() int {
	n := 0
	for _, p := range t.slots {
		if p != nil {
			n++
		}
	}
	return n
}

// Each calls fn for every occupied slot from the highest down to 1.
func (t *Table) Each(fn func(p *Process)) {
	for i := len(t.slots) - 1; i > 0; i-- {
		if p := t.slots[i]; p != nil {
			fn(p)
		}
	}
}
