package mindex

import (
	"io"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
	"github.com/mindex-go/mindex/perm"
)

// Index is the read surface shared by both variants.
//
// Thread Safety:
//   - Match, Candidates, and the other read methods are safe for concurrent
//     use: a built index is immutable.
//   - Close is NOT safe to call concurrently with queries and must only be
//     called after all queries have completed. After Close, Match,
//     Candidates, and WriteTo panic and Verify returns ErrIndexClosed.
type Index interface {
	// Match returns every indexed key within Hamming distance errors of q,
	// with multiplicity, in scan order, together with the number of payload
	// entries the scan traversed. errors must not exceed MaxErrors; the
	// contract violation panics.
	Match(q uint64, errors uint8) (matches []uint64, candidates uint64)

	// Candidates returns only the traversal count of Match, without
	// scanning: the count-only query mode.
	Candidates(q uint64, errors uint8) uint64

	// Size returns the number of indexed keys.
	Size() uint64

	// MaxErrors returns the error bound k the index was built for.
	MaxErrors() uint8

	// Variant reports the index layout.
	Variant() Variant

	// UserMetadata returns the caller-defined metadata attached at build.
	UserMetadata() []byte

	// Verify recomputes the region checksums of the serialized form and
	// compares them against the stored ones. Only meaningful for indexes
	// opened from a file or byte slice; freshly built indexes return nil.
	Verify() error

	// WriterTo serializes the index; Load, Open, OpenFile, and OpenBytes
	// read the produced stream back.
	io.WriterTo

	// Close releases resources (the memory map, for opened indexes).
	Close() error
}

// core carries the per-instance state shared by both variants.
type core struct {
	geo      geometry
	prm      *perm.Permutation
	bnd      boundary
	n        uint64
	meta     []byte
	compress compressionID

	// mm is non-nil when the index aliases a memory-mapped file; footer
	// holds the stored checksums for Verify.
	mm     mmap.MMap
	footer *footer

	closed atomic.Bool
}

func (c *core) init(r buildResolved, g geometry, n uint64) {
	c.geo = g
	c.prm = r.prm
	c.n = n
	c.meta = r.cfg.userMetadata
	c.compress = r.cfg.compression
}

// Size returns the number of indexed keys.
func (c *core) Size() uint64 { return c.n }

// MaxErrors returns the error bound k the index was built for.
func (c *core) MaxErrors() uint8 { return c.geo.k }

// Variant reports the index layout.
func (c *core) Variant() Variant { return c.geo.variant }

// UserMetadata returns the caller-defined metadata attached at build time.
// For opened indexes the slice aliases the mapped file data.
func (c *core) UserMetadata() []byte { return c.meta }

// Close releases the memory map, if any. Close is idempotent.
func (c *core) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.mm != nil {
		return c.mm.Unmap()
	}
	return nil
}

func (c *core) checkOpen() {
	if c.closed.Load() {
		panic("mindex: use of closed index")
	}
}

// Stats holds index statistics.
type Stats struct {
	NumKeys    uint64
	NumBuckets uint64
	Variant    Variant
	MaxErrors  uint8
	BitsPerKey float64
}

func (c *core) stats(payloadBits uint64) *Stats {
	st := &Stats{
		NumKeys:    c.n,
		NumBuckets: c.geo.numBuckets,
		Variant:    c.geo.variant,
		MaxErrors:  c.geo.k,
	}
	if c.n > 0 {
		boundaryBits := c.geo.numBuckets + c.n
		st.BitsPerKey = float64(payloadBits*c.n+boundaryBits) / float64(c.n)
	}
	return st
}
