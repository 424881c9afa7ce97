package mindex

import (
	"encoding/binary"
	"hash/fnv"
	"math/bits"
	"math/rand/v2"
	"slices"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// sortedCopy returns the multiset as a sorted slice for comparison.
func sortedCopy(s []uint64) []uint64 {
	out := append([]uint64(nil), s...)
	slices.Sort(out)
	return out
}

// withinDistance returns the multiset of corpus keys within Hamming
// distance e of q: the ground truth a full multi-index must reproduce.
func withinDistance(keys []uint64, q uint64, e uint8) []uint64 {
	var out []uint64
	for _, x := range keys {
		if bits.OnesCount64(x^q) <= int(e) {
			out = append(out, x)
		}
	}
	return out
}

// expectedSimple is the ground truth for a single simple index: keys within
// distance e that share the query's splitter bucket.
func expectedSimple(idx *SimpleIndex, keys []uint64, q uint64, e uint8) []uint64 {
	var out []uint64
	qb := idx.geo.bucketOf(idx.prm, q)
	for _, x := range keys {
		if idx.geo.bucketOf(idx.prm, x) == qb && bits.OnesCount64(x^q) <= int(e) {
			out = append(out, x)
		}
	}
	return out
}

// expectedTriangle is the ground truth for a single triangle index: keys
// within distance e that share the query's prefix bucket. The popcount
// band never excludes a true match, so stratum membership does not appear
// in the predicate.
func expectedTriangle(idx *TriangleIndex, keys []uint64, q uint64, e uint8) []uint64 {
	var out []uint64
	qp := idx.prm.Forward(q) >> idx.geo.highShift
	for _, x := range keys {
		if idx.prm.Forward(x)>>idx.geo.highShift == qp && bits.OnesCount64(x^q) <= int(e) {
			out = append(out, x)
		}
	}
	return out
}

// randKeys generates n uniform random keys.
func randKeys(rng *rand.Rand, n int) []uint64 {
	keys := make([]uint64, n)
	for i := range keys {
		keys[i] = rng.Uint64()
	}
	return keys
}

// flipBits returns x with n distinct random bits flipped.
func flipBits(rng *rand.Rand, x uint64, n int) uint64 {
	for _, b := range rng.Perm(64)[:n] {
		x ^= uint64(1) << b
	}
	return x
}

// checkMatch compares an index answer against the expected multiset and
// checks the candidate-count contract.
func checkMatch(t *testing.T, got []uint64, candidates uint64, want []uint64) {
	t.Helper()
	if candidates < uint64(len(got)) {
		t.Fatalf("candidates %d < matches %d", candidates, len(got))
	}
	gotSorted := sortedCopy(got)
	wantSorted := sortedCopy(want)
	if !slices.Equal(gotSorted, wantSorted) {
		t.Fatalf("match multiset mismatch:\n got  %x\n want %x", gotSorted, wantSorted)
	}
}
