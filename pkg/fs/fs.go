// Package fs is the slice of the file layer the process core depends on:
// reference-counted open file entries and in-core inodes.
package fs

import (
	"errors"
	"fmt"
)

// NROpen is the number of open file slots per process.
const NROpen = 20

// File errors.
var (
	ErrTableFull = errors.New("file table full")
	ErrBadCount  = errors.New("reference count underflow")
)

// Inode is an in-core inode. Working and root directories hold references.
type Inode struct {
	// Num is the inode number.
	Num int
	// Name is the path the inode was looked up by.
	Name string
	// Count is the number of in-core references.
	Count int
}

// File is an open file table entry shared by every descriptor that refers to it.
type File struct {
	// Inode is the file's inode.
	Inode *Inode
	// Mode is the open mode.
	Mode int
	// Count is the number of descriptors referring to the entry.
	Count int
	// Pos is the current offset.
	Pos int64
}

// Layer is the contract the process core consumes.
type Layer interface {
	// Open looks up name and returns a new open file entry with one reference.
	Open(name string, mode int) (*File, error)
	// Namei returns a referenced inode for name.
	Namei(name string) *Inode
	// Dup adds a reference to f.
	Dup(f *File) *File
	// Close drops one reference to f.
	Close(f *File)
	// Iget adds a reference to an inode.
	Iget(i *Inode) *Inode
	// Iput drops one reference to an inode; nil is ignored.
	Iput(i *Inode)
}

// Table is an in-memory Layer with a bounded open file table.
type Table struct {
	files  []*File
	inodes map[string]*Inode
	next   int
}

// NewTable creates a file table with nfile entries.
func NewTable(nfile int) *Table {
	return &Table{
		files:  make([]*File, nfile),
		inodes: make(map[string]*Inode),
		next:   1,
	}
}

// Namei returns a referenced inode for name, creating it on first use.
func (t *Table) Namei(name string) *Inode {
	i, ok := t.inodes[name]
	if !ok {
		i = &Inode{Num: t.next, Name: name}
		t.next++
		t.inodes[name] = i
	}
	return t.Iget(i)
}

// Open allocates an open file entry for name with one reference.
func (t *Table) Open(name string, mode int) (*File, error) {
	for idx, f := range t.files {
		if f == nil || f.Count == 0 {
			f = &File{Inode: t.Namei(name), Mode: mode, Count: 1}
			t.files[idx] = f
			return f, nil
		}
	}
	return nil, ErrTableFull
}

// Dup adds a descriptor reference to f.
func (t *Table) Dup(f *File) *File {
	if f != nil {
		f.Count++
	}
	return f
}

// Close drops one reference; the last one releases the inode.
func (t *Table) Close(f *File) {
	if f == nil {
		return
	}
	if f.Count <= 0 {
		panic(fmt.Errorf("%w: close of file %q", ErrBadCount, f.Inode.Name))
	}
	f.Count--
	if f.Count == 0 {
		t.Iput(f.Inode)
		f.Inode = nil
	}
}

// Iget adds a reference to i.
func (t *Table) Iget(i *Inode) *Inode {
	if i != nil {
		i.Count++
	}
	return i
}

// Iput drops a reference to i.
func (t *Table) Iput(i *Inode) {
	if i == nil {
		return
	}
	if i.Count <= 0 {
		panic(fmt.Errorf("%w: iput of inode %d", ErrBadCount, i.Num))
	}
	i.Count--
}

// InUse returns the number of open file entries with references.
func (t *Table) InUse() int {
	n := 0
	for _, f := range t.files {
		if f != nil && f.Count > 0 {
			n++
		}
	}
	return n
}
