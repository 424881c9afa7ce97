// Bench measures mindex build throughput, match latency, and candidate
// filtering quality for both index variants.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -variant triangle -errors 3
//
// Flags:
//
//	-keys     Number of keys to index (default: 10,000,000)
//	-queries  Number of match queries per error bound (default: 100,000)
//	-variant  Index variant: simple or triangle (default: triangle)
//	-errors   Maximum error bound to benchmark (default: 3)
//	-seed     Corpus seed (default: 0x1234)
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/mindex-go/mindex"
)

// corpus derives numKeys pseudo-random 64-bit keys from a murmur3 stream,
// then clusters a tenth of them around existing keys by flipping a few
// bits, so non-trivial matches exist at small error bounds.
func corpus(numKeys int, seed uint32) []uint64 {
	keys := make([]uint64, numKeys)
	var buf [8]byte
	for i := range keys {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		lo, _ := murmur3.Sum128WithSeed(buf[:], seed)
		keys[i] = lo
	}
	rng := mrand.New(mrand.NewPCG(uint64(seed), 0x9E3779B97F4A7C15))
	for i := numKeys / 10; i > 0 && numKeys > 1; i-- {
		src := rng.IntN(numKeys)
		dst := rng.IntN(numKeys)
		flips := 1 + rng.IntN(3)
		k := keys[src]
		for f := 0; f < flips; f++ {
			k ^= uint64(1) << rng.IntN(64)
		}
		keys[dst] = k
	}
	return keys
}

func main() {
	keysFlag := flag.Int("keys", 10_000_000, "number of keys")
	queriesFlag := flag.Int("queries", 100_000, "number of queries per error bound")
	variantFlag := flag.String("variant", "triangle", "index variant: simple or triangle")
	errorsFlag := flag.Int("errors", 3, "maximum error bound to benchmark")
	seedFlag := flag.Uint("seed", 0x1234, "corpus seed")
	flag.Parse()

	fmt.Println("Generating keys...")
	keys := corpus(*keysFlag, uint32(*seedFlag))

	fmt.Printf("Building %s index over %d keys...\n", *variantFlag, len(keys))
	buildStart := time.Now()
	var idx mindex.Index
	var err error
	switch *variantFlag {
	case "simple":
		idx, err = mindex.BuildSimple(keys)
	case "triangle":
		idx, err = mindex.BuildTriangle(keys)
	default:
		fmt.Printf("Unknown variant %q\n", *variantFlag)
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		os.Exit(1)
	}
	buildDur := time.Since(buildStart)
	fmt.Printf("Build: %v (%.1f Mkeys/s)\n", buildDur,
		float64(len(keys))/buildDur.Seconds()/1e6)

	rng := mrand.New(mrand.NewPCG(uint64(*seedFlag), 0xDEADBEEF))
	queries := make([]uint64, *queriesFlag)
	for i := range queries {
		// Half the queries perturb corpus keys, half are random misses.
		if i%2 == 0 {
			q := keys[rng.IntN(len(keys))]
			for f := 0; f <= rng.IntN(*errorsFlag+1); f++ {
				q ^= uint64(1) << rng.IntN(64)
			}
			queries[i] = q
		} else {
			queries[i] = rng.Uint64()
		}
	}

	for e := 0; e <= *errorsFlag; e++ {
		var matches, candidates uint64
		start := time.Now()
		for _, q := range queries {
			res, cand := idx.Match(q, uint8(e))
			matches += uint64(len(res))
			candidates += cand
		}
		dur := time.Since(start)
		qps := float64(len(queries)) / dur.Seconds()
		ratio := float64(0)
		if candidates > 0 {
			ratio = float64(matches) / float64(candidates)
		}
		fmt.Printf("e=%d: %10.0f queries/s  %12d candidates  %10d matches  (hit ratio %.4f)\n",
			e, qps, candidates, matches, ratio)
	}
}
