package mindex

import (
	"math/bits"

	"github.com/mindex-go/mindex/internal/bitpack"
)

// SimpleIndex is the prefix-bucketed variant: keys sharing a permuted
// splitter prefix sit in one bucket, and a match scans that bucket's packed
// payloads linearly. The splitter bits are implied by the bucket id, so
// each entry stores only the remaining 64-s payload bits.
type SimpleIndex struct {
	core
	entries *bitpack.Array
}

var _ Index = (*SimpleIndex)(nil)

// Match returns every indexed key within Hamming distance errors of q, with
// multiplicity, plus the number of entries scanned. The splitter bits of
// bucket members equal the query's by construction, so the payload distance
// is the full distance.
func (s *SimpleIndex) Match(q uint64, errors uint8) ([]uint64, uint64) {
	s.checkOpen()
	s.geo.checkErrors(errors)

	bkt := s.geo.bucketOf(s.prm, q)
	l, r := s.bnd.bucketRange(bkt)

	var res []uint64
	qPayload := s.prm.Forward(q) & s.geo.payloadMask
	prefix := bkt << s.geo.payloadBits
	for j := l; j < r; j++ {
		e := s.entries.Get(j)
		if bits.OnesCount64(qPayload^e) <= int(errors) {
			res = append(res, s.prm.Inverse(prefix|e))
		}
	}
	return res, r - l
}

// Candidates returns the number of entries Match would scan for the query.
func (s *SimpleIndex) Candidates(q uint64, errors uint8) uint64 {
	s.checkOpen()
	s.geo.checkErrors(errors)

	l, r := s.bnd.bucketRange(s.geo.bucketOf(s.prm, q))
	return r - l
}

// Stats returns statistics for the index.
func (s *SimpleIndex) Stats() *Stats {
	return s.stats(uint64(s.geo.payloadBits))
}
