/*
Package mm is the memory collaborator of the process core.

The core never touches page tables itself. It asks a Memory implementation
for control block pages and for copies of linear address ranges, and hands
both back on exit. Arena is an accounting implementation: it tracks which
pages are mapped and refuses work beyond its configured limits, which is
enough to exercise every failure path of process creation.

Example:

	arena := mm.NewArena(&mm.Limits{MaxPages: 16, MaxMappedBytes: 4 << 20})
	page, ok := arena.AllocPage()
	if !ok {
		// out of control block pages
	}
	defer arena.FreePage(page)
*/
package mm

import (
	"errors"
	"fmt"
	"sync"
)

// PageSize is the size of one page in bytes.
const PageSize = 4096

// SlotRegion is the size of the linear region reserved per process table slot.
const SlotRegion = 0x4000000

// Memory errors.
var (
	ErrNoMemory    = errors.New("out of memory")
	ErrBadRange    = errors.New("address range not page aligned")
	ErrUnknownPage = errors.New("page not allocated")
)

// Page identifies a control block page.
type Page uintptr

// Memory is the contract the process core consumes.
type Memory interface {
	// AllocPage returns a free page for a process control block.
	AllocPage() (Page, bool)
	// FreePage releases a page obtained from AllocPage.
	FreePage(page Page)
	// CopyRange duplicates limit bytes mapped at from into to.
	CopyRange(from, to, limit uint32) error
	// FreeRange unmaps limit bytes at base.
	FreeRange(base, limit uint32)
}

// Arena implements Memory with page level accounting.
type Arena struct {
	limits *Limits
	usage  Usage
	pages  map[Page]bool
	next   Page
	mapped map[uint32]bool
	// mu guards the maps so an Arena can be inspected from outside the
	// kernel's execution context.
	mu sync.Mutex
}

// NewArena creates an arena bounded by limits; nil means DefaultLimits.
func NewArena(limits *Limits) *Arena {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Arena{
		limits: limits,
		pages:  make(map[Page]bool),
		next:   Page(0x100000),
		mapped: make(map[uint32]bool),
	}
}

// AllocPage returns a fresh control block page.
func (a *Arena) AllocPage() (Page, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.limits.CheckPages(a.usage.Pages + 1); err != nil {
		return 0, false
	}
	page := a.next
	a.next += PageSize
	a.pages[page] = true
	a.usage.Pages++
	return page, true
}

// FreePage releases page. Freeing an unknown page panics.
func (a *Arena) FreePage(page Page) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pages[page] {
		panic(fmt.Errorf("%w: %#x", ErrUnknownPage, uintptr(page)))
	}
	delete(a.pages, page)
	a.usage.Pages--
}

// Map marks limit bytes at base as mapped, as the boot code does for the
// idle process image.
func (a *Arena) Map(base, limit uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if base%PageSize != 0 {
		return ErrBadRange
	}
	for addr := base; addr < base+limit; addr += PageSize {
		if err := a.mapPage(addr); err != nil {
			return err
		}
	}
	return nil
}

// CopyRange maps a copy of the pages at from into to. It stops at the first
// page the limits refuse, leaving the pages copied so far mapped; the caller
// is expected to FreeRange the destination.
func (a *Arena) CopyRange(from, to, limit uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if from%PageSize != 0 || to%PageSize != 0 {
		return ErrBadRange
	}
	for off := uint32(0); off < limit; off += PageSize {
		if !a.mapped[from+off] {
			continue
		}
		if err := a.mapPage(to + off); err != nil {
			return err
		}
	}
	return nil
}

func (a *Arena) mapPage(addr uint32) error {
	if a.mapped[addr] {
		return nil
	}
	if err := a.limits.CheckMapped(a.usage.MappedBytes + PageSize); err != nil {
		return err
	}
	a.mapped[addr] = true
	a.usage.MappedBytes += PageSize
	return nil
}

// FreeRange unmaps every page in [base, base+limit).
func (a *Arena) FreeRange(base, limit uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for addr := base &^ (PageSize - 1); addr < base+limit; addr += PageSize {
		if a.mapped[addr] {
			delete(a.mapped, addr)
			a.usage.MappedBytes -= PageSize
		}
	}
}

// Usage returns a snapshot of the arena's usage counters.
func (a *Arena) Usage() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// Mapped reports whether the page holding addr is mapped.
func (a *Arena) Mapped(addr uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mapped[addr&^(PageSize-1)]
}
