package mindex

import (
	"context"
	"slices"
	"testing"
)

// The full family must achieve exact recall: every key within distance
// e <= k of the query keeps at least b-k meta-blocks intact, so some
// permutation routes it into the query's bucket.
func TestMultiIndexExactRecall(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 3000)
	for i := 0; i < 400; i++ {
		keys[rng.IntN(len(keys))] = flipBits(rng, keys[rng.IntN(len(keys))], rng.IntN(4))
	}

	for _, variant := range []Variant{VariantSimple, VariantTriangle} {
		m, err := BuildMulti(context.Background(), keys, variant)
		if err != nil {
			t.Fatalf("%s: BuildMulti: %v", variant, err)
		}
		for i := 0; i < 200; i++ {
			var q uint64
			if i%2 == 0 {
				q = flipBits(rng, keys[rng.IntN(len(keys))], rng.IntN(4))
			} else {
				q = rng.Uint64()
			}
			for e := uint8(0); e <= m.MaxErrors(); e++ {
				got, candidates := m.Search(q, e)
				want := withinDistance(keys, q, e)
				if !slices.Equal(sortedCopy(got), sortedCopy(want)) {
					t.Fatalf("%s: Search(%x, %d) = %x, want %x", variant, q, e, sortedCopy(got), sortedCopy(want))
				}
				if candidates < uint64(len(got)) {
					t.Fatalf("%s: candidates %d < matches %d", variant, candidates, len(got))
				}
			}
		}
	}
}

// Corpus duplicates keep their multiplicity; cross-permutation duplicates
// of the same occurrence are collapsed.
func TestMultiIndexDuplicates(t *testing.T) {
	const key = uint64(0xFEEDFACE_DEADBEEF)
	keys := []uint64{key, key, key, key ^ 1}

	m, err := BuildMulti(context.Background(), keys, VariantTriangle)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := m.Search(key, 0)
	if want := []uint64{key, key, key}; !slices.Equal(sortedCopy(got), want) {
		t.Fatalf("Search(key, 0) = %x, want three copies", got)
	}
	got, _ = m.Search(key, 1)
	want := []uint64{key, key, key, key ^ 1}
	if !slices.Equal(sortedCopy(got), sortedCopy(want)) {
		t.Fatalf("Search(key, 1) = %x, want %x", sortedCopy(got), sortedCopy(want))
	}
}

func TestMultiIndexAt(t *testing.T) {
	rng := newTestRNG(t)
	m, err := BuildMulti(context.Background(), randKeys(rng, 100), VariantSimple)
	if err != nil {
		t.Fatal(err)
	}
	if m.Size() != 100 {
		t.Fatalf("Size() = %d", m.Size())
	}
	for id := 0; id < defaultFamily().Size(); id++ {
		idx, err := m.At(id)
		if err != nil {
			t.Fatalf("At(%d): %v", id, err)
		}
		if idx.Size() != 100 {
			t.Fatalf("member %d size %d", id, idx.Size())
		}
	}
	if _, err := m.At(defaultFamily().Size()); err == nil {
		t.Fatal("At out of range did not fail")
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}
