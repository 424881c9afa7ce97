// Package mindex implements a k-mismatch index over fixed-width 64-bit
// keys: given a corpus and a query q, it returns all keys whose Hamming
// distance to q is at most k.
//
// The package is the per-permutation workhorse of a multi-index scheme.
// A bit permutation moves a subset of the key's meta-blocks into the most
// significant bits, keys are bucketed by that splitter prefix, and a query
// scans only its own bucket. One index cannot catch every error pattern,
// but a family of permutations can: with b meta-blocks and at most k
// errors, some b-k blocks are always intact, and the family member that
// uses them as the splitter finds the key. MultiIndex drives the family;
// SimpleIndex and TriangleIndex are the per-permutation indexes.
//
// # Basic Usage
//
// Building and querying a single index:
//
//	idx, err := mindex.BuildTriangle(keys)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	matches, candidates := idx.Match(q, 3)
//
// Covering all error patterns with the full family:
//
//	midx, err := mindex.BuildMulti(ctx, keys, mindex.VariantTriangle)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	matches, _ := midx.Search(q, 3)
//
// Persisting and reopening:
//
//	if err := idx.WriteFile("keys.idx"); err != nil {
//	    log.Fatal(err)
//	}
//	idx2, err := mindex.Open("keys.idx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx2.Close()
//
// # Variants
//
// SimpleIndex stores the non-splitter payload packed at 64-s bits per
// entry and scans one bucket per query. TriangleIndex additionally groups
// each bucket by popcount - the triangle inequality with the zero word as
// reference bounds a match's popcount to within e of the query's - and
// splits the payload into an XOR-compressed 32-bit low column scanned
// four lanes at a time plus a packed mid column consulted only for
// survivors.
//
// # Package Structure
//
//   - Public API: builder.go (BuildSimple, BuildTriangle), index.go,
//     open.go (Load, Open, OpenBytes), multi.go (MultiIndex)
//   - Configuration: builder_options.go (BuildOption, With* functions)
//   - Match loops: simple.go, triangle.go, scan*.go (kernel dispatch)
//   - Serialization: header.go, index_writer.go, open.go
//   - Key adapters: sketch.go (SimHash, Fingerprint)
//   - Permutations: perm/ (block permutation family)
//   - Succinct structures: internal/bitvec (boundary + select-1),
//     internal/bitpack (packed columns)
//   - Platform: fadvise_*.go, prefault_*.go (mmap read-ahead hints)
package mindex
