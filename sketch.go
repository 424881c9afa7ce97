package mindex

import (
	"math/bits"

	"github.com/zeebo/xxh3"
)

// SimHash condenses a multiset of features into a 64-bit sketch whose
// Hamming distance to another sketch tracks how much the feature sets
// differ. Each feature votes on all 64 bit positions through its
// xxHash3-64 value; a bit is set when the positive votes outnumber the
// negative ones.
//
// Use this function when the data to index is not already a 64-bit key:
// shingle the input into features, sketch them, and index the sketches.
// Querying with SimHash of a slightly different input then finds the
// originals within a small error bound:
//
//	keys := make([]uint64, len(docs))
//	for i, d := range docs {
//	    keys[i] = mindex.SimHash(shingles(d)...)
//	}
//	idx, _ := mindex.BuildTriangle(keys)
//	near, _ := idx.Match(mindex.SimHash(shingles(query)...), 3)
func SimHash(features ...[]byte) uint64 {
	return SimHashSeed(0, features...)
}

// SimHashSeed is SimHash with an explicit hash seed, for callers that need
// independent sketch families.
func SimHashSeed(seed uint64, features ...[]byte) uint64 {
	var votes [64]int32
	for _, f := range features {
		h := xxh3.HashSeed(f, seed)
		for b := 0; b < 64; b++ {
			if h>>b&1 != 0 {
				votes[b]++
			} else {
				votes[b]--
			}
		}
	}
	var sketch uint64
	for b, v := range votes {
		if v > 0 {
			sketch |= uint64(1) << b
		}
	}
	return sketch
}

// Fingerprint hashes arbitrary bytes to a uniform 64-bit key. Unlike
// SimHash, proximity of inputs does not survive hashing; use it when the
// index serves exact (error 0) membership over non-uniform keys.
func Fingerprint(data []byte) uint64 {
	return xxh3.Hash(data)
}

// FingerprintSeed is Fingerprint with an explicit hash seed.
func FingerprintSeed(data []byte, seed uint64) uint64 {
	return xxh3.HashSeed(data, seed)
}

// Distance returns the Hamming distance between two keys.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
