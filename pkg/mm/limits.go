package mm

import (
	"fmt"
)

// Limits bounds an Arena. A zero field means unlimited.
type Limits struct {
	// MaxPages is the number of control block pages available.
	MaxPages int `yaml:"maxPages"`
	// MaxMappedBytes is the total size of all mapped address ranges.
	MaxMappedBytes uint64 `yaml:"maxMappedBytes"`
}

// DefaultLimits returns the limits of a 16 MiB machine.
func DefaultLimits() *Limits {
	return &Limits{
		MaxPages:       64,
		MaxMappedBytes: 16 * 1024 * 1024,
	}
}

// Usage tracks what an Arena currently hands out.
type Usage struct {
	// Pages is the number of allocated control block pages.
	Pages int
	// MappedBytes is the size of all mapped pages.
	MappedBytes uint64
}

// CheckPages checks a page count against the limit.
func (l *Limits) CheckPages(pages int) error {
	if l.MaxPages > 0 && pages > l.MaxPages {
		return fmt.Errorf("%w: %d control block pages exceed limit %d", ErrNoMemory, pages, l.MaxPages)
	}
	return nil
}

// CheckMapped checks a mapped byte count against the limit.
func (l *Limits) CheckMapped(bytes uint64) error {
	if l.MaxMappedBytes > 0 && bytes > l.MaxMappedBytes {
		return fmt.Errorf("%w: %d mapped bytes exceed limit %d", ErrNoMemory, bytes, l.MaxMappedBytes)
	}
	return nil
}

// Validate checks that limits are usable.
func (l *Limits) Validate() error {
	if l.MaxPages < 0 {
		return fmt.Errorf("mm: maxPages must be >= 0")
	}
	if l.MaxMappedBytes%PageSize != 0 {
		return fmt.Errorf("mm: maxMappedBytes must be a multiple of %d", PageSize)
	}
	return nil
}
