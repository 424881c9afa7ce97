package mindex

import (
	"fmt"
	"math/bits"

	mindexerrors "github.com/mindex-go/mindex/errors"
	"github.com/mindex-go/mindex/perm"
)

// Variant identifies the index layout.
type Variant uint8

const (
	// VariantSimple buckets by splitter prefix and scans whole payloads.
	VariantSimple Variant = iota
	// VariantTriangle additionally stratifies buckets by popcount and
	// splits the payload into low and mid bit-planes.
	VariantTriangle
)

func (v Variant) String() string {
	switch v {
	case VariantSimple:
		return "simple"
	case VariantTriangle:
		return "triangle"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

const (
	// distanceBits is the width of the popcount field in a triangle bucket
	// id. Stored popcounts are clamped to 63 so the field never carries
	// into the prefix; an all-ones key shares the 63 stratum and is told
	// apart by the confirm step.
	distanceBits = 6

	// maxStoredCount is the largest popcount stratum.
	maxStoredCount = 1<<distanceBits - 1

	// lowBits is the width of the low column. Word-aligned so the column
	// can be scanned as packed uint32 lanes.
	lowBits = 32
	lowMask = uint64(1)<<lowBits - 1

	// maxSplitterBits bounds the bucket-count array (2^s entries) built
	// during the counting sort.
	maxSplitterBits = 28
)

// geometry holds the derived shift/mask constants for one index instance.
// It is computed once at build or load time so the match loops keep plain
// integer fields in registers.
type geometry struct {
	variant      Variant
	b, k         uint8
	id           uint16
	splitterBits uint   // s
	numBuckets   uint64 // 2^s

	// simple
	payloadBits uint // 64 - s
	payloadMask uint64

	// triangle
	prefixBits uint // s - distanceBits
	midBits    uint // 64 - (lowBits + prefixBits)
	midMask    uint64
	highShift  uint // 64 - prefixBits
}

func newGeometry(variant Variant, p *perm.Permutation, b, k uint8, id uint16) (geometry, error) {
	s := p.SplitterBits()
	g := geometry{
		variant:      variant,
		b:            b,
		k:            k,
		id:           id,
		splitterBits: s,
	}

	switch variant {
	case VariantSimple:
		if s < 1 || s > maxSplitterBits {
			return g, fmt.Errorf("%w: splitter bits %d", mindexerrors.ErrBadGeometry, s)
		}
		g.payloadBits = 64 - s
		g.payloadMask = uint64(1)<<g.payloadBits - 1
	case VariantTriangle:
		// The prefix must be non-empty and the mid column must hold at
		// least one bit: distanceBits < s < 64 - lowBits + distanceBits.
		if s <= distanceBits || s >= 64-lowBits+distanceBits || s > maxSplitterBits {
			return g, fmt.Errorf("%w: splitter bits %d", mindexerrors.ErrBadGeometry, s)
		}
		g.prefixBits = s - distanceBits
		g.midBits = 64 - (lowBits + g.prefixBits)
		g.midMask = uint64(1)<<g.midBits - 1
		g.highShift = 64 - g.prefixBits
	default:
		return g, mindexerrors.ErrUnknownVariant
	}
	g.numBuckets = uint64(1) << s
	return g, nil
}

// bucketOf maps a key to its bucket id using the permuted splitter prefix
// and, for the triangle variant, the key's popcount stratum.
func (g *geometry) bucketOf(p *perm.Permutation, x uint64) uint64 {
	if g.variant == VariantSimple {
		return p.Forward(x) >> (64 - g.splitterBits)
	}
	c := uint64(bits.OnesCount64(x))
	if c > maxStoredCount {
		c = maxStoredCount
	}
	return p.Forward(x)>>g.highShift<<distanceBits | c
}

// countBand returns the clamped popcount band [lo, hi] admissible for a
// query with the given popcount under the triangle inequality.
func countBand(count uint64, errors uint8) (lo, hi uint64) {
	lo = 0
	if count > uint64(errors) {
		lo = count - uint64(errors)
	}
	if lo > maxStoredCount {
		lo = maxStoredCount
	}
	hi = count + uint64(errors)
	if hi > maxStoredCount {
		hi = maxStoredCount
	}
	return lo, hi
}

// checkErrors enforces the caller contract errors <= k. Violations are
// programming errors, not recoverable conditions.
func (g *geometry) checkErrors(errors uint8) {
	if errors > g.k {
		panic(fmt.Sprintf("mindex: errors %d exceeds index maximum %d", errors, g.k))
	}
}
