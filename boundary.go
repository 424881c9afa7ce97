package mindex

import "github.com/mindex-go/mindex/internal/bitvec"

// boundary is the succinct bucket-boundary structure: a bitvector of length
// numBuckets + n holding one 1 per bucket, where bucket i's entries occupy
// the zeros between the (i-1)-th and i-th set bit. Select-1 turns a bucket
// id into a half-open payload slice in O(1).
type boundary struct {
	vec *bitvec.Vector
}

func newBoundary(counts []uint64) boundary {
	return boundary{vec: bitvec.FromCounts(counts)}
}

// bucketRange returns the payload slice [lo, hi) of bucket i. Each select
// position carries a +1-per-preceding-bucket offset from the delimiter
// bits, which the -i term removes.
func (b boundary) bucketRange(i uint64) (lo, hi uint64) {
	if i > 0 {
		lo = b.vec.Select1(i) - i + 1
	}
	hi = b.vec.Select1(i+1) - i
	return lo, hi
}

// bucketRangeSpan returns the payload slice covering buckets i..j
// inclusive. Buckets are stored contiguously, so the span is one slice.
func (b boundary) bucketRangeSpan(i, j uint64) (lo, hi uint64) {
	if i > 0 {
		lo = b.vec.Select1(i) - i + 1
	}
	hi = b.vec.Select1(j+1) - j
	return lo, hi
}
