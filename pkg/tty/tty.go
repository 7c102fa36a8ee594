// Package tty holds the terminal table. Only the foreground process group of
// a terminal matters to the process core.
package tty

import (
	"fmt"
)

// DefaultCount is the number of terminals.
const DefaultCount = 3

// TTY is a terminal.
type TTY struct {
	// Index is the terminal number.
	Index int
	// Pgrp is the foreground process group, 0 when none.
	Pgrp int
}

// Table is the set of terminals.
type Table struct {
	ttys []TTY
}

// NewTable creates n terminals.
func NewTable(n int) *Table {
	if n <= 0 {
		n = DefaultCount
	}
	t := &Table{ttys: make([]TTY, n)}
	for i := range t.ttys {
		t.ttys[i].Index = i
	}
	return t
}

// Get returns terminal n, or an error for an unknown terminal.
func (t *Table) Get(n int) (*TTY, error) {
	if n < 0 || n >= len(t.ttys) {
		return nil, fmt.Errorf("tty: no terminal %d", n)
	}
	return &t.ttys[n], nil
}

// Len returns the number of terminals.
func (t *Table) Len() int { return len(t.ttys) }
