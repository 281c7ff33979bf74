// Package arena provides a frame-scoped bump allocator over a large reserved
// address range.
//
// An Arena reserves address space once and commits it lazily in page-aligned
// chunks as allocations grow. Individual allocations are never freed: Clear
// zeroes what was handed out and rewinds the bump pointer, which makes it a
// fit for per-frame scratch data that dies at the end of every frame.
//
// An Arena is owned by a single goroutine. It is not safe for concurrent use.
//
// Misuse is fatal: exhausting the reservation or touching a destroyed arena
// panics with an error wrapping ErrExhausted or ErrDestroyed.
package arena

import (
	"errors"
	"fmt"
	"os"
)

// Errors reported by the arena. Push, Clear and the typed helpers panic with
// errors wrapping these sentinels; New returns them.
var (
	// ErrExhausted is the panic cause when an allocation does not fit in the
	// reserved range. The reservation is sized far beyond expected per-frame
	// usage, so this is treated as a configuration error.
	ErrExhausted = errors.New("arena: reservation exhausted")

	// ErrDestroyed is the panic cause when an arena is used after Destroy.
	ErrDestroyed = errors.New("arena: use after Destroy")

	// ErrInvalidSize is returned for negative sizes.
	ErrInvalidSize = errors.New("arena: invalid size")
)

const (
	// DefaultReserve is the address space reserved when Descriptor.Reserve is zero.
	DefaultReserve = 1 << 30

	// DefaultCommitChunk is the minimum amount committed at once.
	DefaultCommitChunk = 64 << 10

	// pushAlign is the alignment of every Push result.
	pushAlign = 8
)

// Descriptor configures a new Arena.
type Descriptor struct {
	// Reserve is the size of the address range to reserve, rounded up to the
	// page size. Zero selects DefaultReserve.
	Reserve int

	// CommitChunk is the granularity of commits, rounded up to the page
	// size. Zero selects DefaultCommitChunk.
	CommitChunk int
}

// Arena is a bump allocator over a reserved, lazily committed address range.
//
// Invariant: 0 <= offset <= committed <= reserved.
type Arena struct {
	mem       []byte
	reserved  int
	committed int
	offset    int
	chunk     int

	peak      int
	commits   int
	destroyed bool
}

// New reserves address space for an arena. Nothing is committed until the
// first Push.
func New(desc Descriptor) (*Arena, error) {
	if desc.Reserve < 0 || desc.CommitChunk < 0 {
		return nil, fmt.Errorf("%w: reserve=%d commit=%d", ErrInvalidSize, desc.Reserve, desc.CommitChunk)
	}

	page := os.Getpagesize()
	size := desc.Reserve
	if size == 0 {
		size = DefaultReserve
	}
	size = alignUp(size, page)

	chunk := desc.CommitChunk
	if chunk == 0 {
		chunk = DefaultCommitChunk
	}
	chunk = alignUp(chunk, page)

	mem, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("arena: reserve %d bytes: %w", size, err)
	}

	return &Arena{
		mem:      mem,
		reserved: size,
		chunk:    chunk,
	}, nil
}

// Push returns n zeroed bytes inside the reservation, aligned to 8 bytes.
// The span is borrowed: it stays valid until the next Clear or Destroy.
func (a *Arena) Push(n int) []byte {
	return a.push(n, pushAlign)
}

func (a *Arena) push(n, align int) []byte {
	a.checkLive()
	if n < 0 {
		panic(fmt.Errorf("%w: push %d bytes", ErrInvalidSize, n))
	}

	start := alignUp(a.offset, align)
	end := start + n
	if end > a.reserved || end < start {
		panic(fmt.Errorf("%w: push %d bytes with %d of %d in use", ErrExhausted, n, a.offset, a.reserved))
	}
	if end > a.committed {
		a.grow(end)
	}

	a.offset = end
	if end > a.peak {
		a.peak = end
	}
	return a.mem[start:end:end]
}

// grow commits enough chunks to cover [0, end).
func (a *Arena) grow(end int) {
	target := min(alignUp(end, a.chunk), a.reserved)
	if err := commit(a.mem[a.committed:target]); err != nil {
		panic(fmt.Errorf("arena: commit %d bytes: %w", target-a.committed, err))
	}
	a.committed = target
	a.commits++
}

// Clear zeroes every byte handed out since the last Clear and rewinds the
// bump pointer. Committed memory is kept for the next frame.
func (a *Arena) Clear() {
	a.checkLive()
	clear(a.mem[:a.offset])
	a.offset = 0
}

// Destroy releases the reservation. The arena is unusable afterwards.
// Calling Destroy more than once is a no-op.
func (a *Arena) Destroy() error {
	if a.destroyed {
		return nil
	}
	a.destroyed = true
	mem := a.mem
	a.mem = nil
	a.offset, a.committed = 0, 0
	if err := release(mem); err != nil {
		return fmt.Errorf("arena: release: %w", err)
	}
	return nil
}

// Len returns the number of bytes allocated since the last Clear,
// alignment padding included.
func (a *Arena) Len() int { return a.offset }

// Stats returns a snapshot of the arena's counters.
func (a *Arena) Stats() Stats {
	return Stats{
		Reserved:  a.reserved,
		Committed: a.committed,
		Allocated: a.offset,
		Peak:      a.peak,
		Commits:   a.commits,
	}
}

func (a *Arena) checkLive() {
	if a.destroyed {
		panic(ErrDestroyed)
	}
}

// Stats describes arena usage.
type Stats struct {
	Reserved  int // bytes of address space reserved
	Committed int // bytes backed by memory
	Allocated int // bytes handed out since the last Clear
	Peak      int // high-water mark of Allocated
	Commits   int // number of commit calls
}

// Utilization returns Allocated/Committed, or 0 when nothing is committed.
func (s Stats) Utilization() float64 {
	if s.Committed == 0 {
		return 0
	}
	return float64(s.Allocated) / float64(s.Committed)
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("arena: %d/%d bytes committed, %d allocated, peak %d, %d commits",
		s.Committed, s.Reserved, s.Allocated, s.Peak, s.Commits)
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
