package mindex

import (
	"fmt"
	"testing"
)

func benchmarkKeys(b *testing.B, n int) []uint64 {
	b.Helper()
	rng := newTestRNG(b)
	keys := randKeys(rng, n)
	for i := 0; i < n/10; i++ {
		keys[rng.IntN(n)] = flipBits(rng, keys[rng.IntN(n)], 1+rng.IntN(3))
	}
	return keys
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{10_000, 1_000_000} {
		keys := benchmarkKeys(b, n)
		b.Run(fmt.Sprintf("simple/%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := BuildSimple(keys); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run(fmt.Sprintf("triangle/%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := BuildTriangle(keys); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkMatch(b *testing.B) {
	const n = 1_000_000
	keys := benchmarkKeys(b, n)
	rng := newTestRNG(b)
	queries := make([]uint64, 1024)
	for i := range queries {
		queries[i] = flipBits(rng, keys[rng.IntN(n)], rng.IntN(4))
	}

	si, err := BuildSimple(keys)
	if err != nil {
		b.Fatal(err)
	}
	ti, err := BuildTriangle(keys)
	if err != nil {
		b.Fatal(err)
	}

	for _, e := range []uint8{1, 3} {
		b.Run(fmt.Sprintf("simple/e=%d", e), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				si.Match(queries[i%len(queries)], e)
			}
		})
		b.Run(fmt.Sprintf("triangle/e=%d", e), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				ti.Match(queries[i%len(queries)], e)
			}
		})
	}
}
