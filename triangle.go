package mindex

import (
	"math/bits"

	"github.com/mindex-go/mindex/internal/bitpack"
	intbits "github.com/mindex-go/mindex/internal/bits"
)

// TriangleIndex is the popcount-stratified variant. With the all-zeros word
// as reference, the triangle inequality bounds any match's popcount to
// [popcount(q)-e, popcount(q)+e], and bit permutations preserve popcount,
// so each prefix bucket is subdivided by popcount and a query scans only
// the admissible strata.
//
// The non-splitter payload is split into two bit-planes: a 32-bit low
// column holding low XOR mid, and a packed mid column. The scan pre-filters
// on the low column alone - H(low+mid) <= H(total) makes the filter sound -
// and survivors are confirmed against the reconstructed 64-bit key.
type TriangleIndex struct {
	core
	lowRaw []uint32 // backing allocation; low is its 16-byte aligned view
	low    []uint32
	mid    *bitpack.Array
}

var _ Index = (*TriangleIndex)(nil)

// Match returns every indexed key within Hamming distance errors of q, with
// multiplicity, plus the number of entries in the scanned popcount band.
func (t *TriangleIndex) Match(q uint64, errors uint8) ([]uint64, uint64) {
	t.checkOpen()
	t.geo.checkErrors(errors)

	l, r := t.scanRange(q, errors)
	candidates := r - l

	var res []uint64
	if errors >= 6 {
		res = make([]uint64, 0, 128)
	}

	qPerm := t.prm.Forward(q)
	qHigh := qPerm >> t.geo.highShift << t.geo.highShift
	qLow := qPerm & lowMask
	qMid := qPerm >> lowBits & t.geo.midMask
	qXor := uint32(qLow ^ qMid)
	thr := uint32(errors)

	j := l
	// Scalar head until the load pointer crosses a 16-byte boundary.
	for ; j < r && !intbits.Aligned16(t.low, j); j++ {
		if uint32(bits.OnesCount32(t.low[j]^qXor)) <= thr {
			res = t.confirm(res, j, qPerm, qHigh, errors)
		}
	}
	// Batched body: four aligned 32-bit lanes per step.
	for ; j+4 <= r; j += 4 {
		m := batchMask(t.low, j, qXor, thr)
		for m != 0 {
			i := uint64(bits.TrailingZeros32(m))
			m &= m - 1
			res = t.confirm(res, j+i, qPerm, qHigh, errors)
		}
	}
	// Scalar tail for the final up-to-three entries.
	for ; j < r; j++ {
		if uint32(bits.OnesCount32(t.low[j]^qXor)) <= thr {
			res = t.confirm(res, j, qPerm, qHigh, errors)
		}
	}
	return res, candidates
}

// confirm reconstructs the j-th stored permuted key from the two bit-planes
// and applies the full 64-bit Hamming check. The pre-filter admits no false
// negatives, so every true match reaches this point.
func (t *TriangleIndex) confirm(res []uint64, j uint64, qPerm, qHigh uint64, errors uint8) []uint64 {
	mid := t.mid.Get(j)
	low := uint64(t.low[j]) ^ mid
	curr := qHigh | mid<<lowBits | low
	if bits.OnesCount64(qPerm^curr) <= int(errors) {
		res = append(res, t.prm.Inverse(curr))
	}
	return res
}

// Candidates returns the number of entries Match would scan for the query.
func (t *TriangleIndex) Candidates(q uint64, errors uint8) uint64 {
	t.checkOpen()
	t.geo.checkErrors(errors)

	l, r := t.scanRange(q, errors)
	return r - l
}

// scanRange maps the query to the contiguous payload slice covering its
// prefix bucket's admissible popcount strata. Strata of one prefix are
// stored adjacently in ascending popcount order, so the band is one span.
func (t *TriangleIndex) scanRange(q uint64, errors uint8) (l, r uint64) {
	prefix := t.prm.Forward(q) >> t.geo.highShift
	cLo, cHi := countBand(uint64(bits.OnesCount64(q)), errors)
	return t.bnd.bucketRangeSpan(prefix<<distanceBits|cLo, prefix<<distanceBits|cHi)
}

// Stats returns statistics for the index.
func (t *TriangleIndex) Stats() *Stats {
	return t.stats(lowBits + uint64(t.geo.midBits))
}
