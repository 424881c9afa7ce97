package mindex

import (
	"math/bits"
	"slices"
	"testing"

	"github.com/mindex-go/mindex/perm"
)

func buildBoth(t *testing.T, keys []uint64, opts ...BuildOption) (*SimpleIndex, *TriangleIndex) {
	t.Helper()
	si, err := BuildSimple(keys, opts...)
	if err != nil {
		t.Fatalf("BuildSimple: %v", err)
	}
	ti, err := BuildTriangle(keys, opts...)
	if err != nil {
		t.Fatalf("BuildTriangle: %v", err)
	}
	return si, ti
}

func TestMatchEmptyCorpus(t *testing.T) {
	si, ti := buildBoth(t, nil)
	for _, idx := range []Index{si, ti} {
		matches, candidates := idx.Match(0, 0)
		if len(matches) != 0 || candidates != 0 {
			t.Fatalf("%s: got (%v, %d), want ([], 0)", idx.Variant(), matches, candidates)
		}
		if idx.Size() != 0 {
			t.Fatalf("%s: Size() = %d, want 0", idx.Variant(), idx.Size())
		}
	}
}

func TestMatchSingletonIdentity(t *testing.T) {
	const key = uint64(0xDEADBEEF_CAFEBABE)
	si, ti := buildBoth(t, []uint64{key})
	for _, idx := range []Index{si, ti} {
		matches, candidates := idx.Match(key, 0)
		if len(matches) != 1 || matches[0] != key {
			t.Fatalf("%s: matches = %x, want [%x]", idx.Variant(), matches, key)
		}
		if candidates != 1 {
			t.Fatalf("%s: candidates = %d, want 1", idx.Variant(), candidates)
		}
	}
}

func TestMatchSingleBitFlip(t *testing.T) {
	keys := []uint64{0x0, 0x1, 0x3}
	si, ti := buildBoth(t, keys)
	for _, idx := range []Index{si, ti} {
		matches, _ := idx.Match(0, 1)
		if want := []uint64{0x0, 0x1}; !slices.Equal(sortedCopy(matches), want) {
			t.Fatalf("%s: Match(0, 1) = %x, want %x", idx.Variant(), matches, want)
		}
		matches, _ = idx.Match(0, 2)
		if want := []uint64{0x0, 0x1, 0x3}; !slices.Equal(sortedCopy(matches), want) {
			t.Fatalf("%s: Match(0, 2) = %x, want %x", idx.Variant(), matches, want)
		}
	}
}

func TestMatchDuplicatesPreserved(t *testing.T) {
	const key = uint64(0x0123456789ABCDEF)
	keys := []uint64{key, key, key}
	si, ti := buildBoth(t, keys)
	for _, idx := range []Index{si, ti} {
		matches, candidates := idx.Match(key, 0)
		if want := []uint64{key, key, key}; !slices.Equal(matches, want) {
			t.Fatalf("%s: matches = %x, want three copies", idx.Variant(), matches)
		}
		if candidates != 3 {
			t.Fatalf("%s: candidates = %d, want 3", idx.Variant(), candidates)
		}
	}
}

func TestMatchAgainstBruteForce(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 5000)
	// Plant neighbors so small error bounds have hits.
	for i := 0; i < 500; i++ {
		src := keys[rng.IntN(len(keys))]
		keys[rng.IntN(len(keys))] = flipBits(rng, src, rng.IntN(4))
	}
	si, ti := buildBoth(t, keys)

	for i := 0; i < 300; i++ {
		var q uint64
		if i%2 == 0 {
			q = flipBits(rng, keys[rng.IntN(len(keys))], rng.IntN(4))
		} else {
			q = rng.Uint64()
		}
		for e := uint8(0); e <= 3; e++ {
			matches, candidates := si.Match(q, e)
			checkMatch(t, matches, candidates, expectedSimple(si, keys, q, e))

			matches, candidates = ti.Match(q, e)
			checkMatch(t, matches, candidates, expectedTriangle(ti, keys, q, e))
		}
	}
}

// The triangle prefix is a truncation of the simple splitter, so the
// triangle variant can only widen the reachable set: everything the simple
// variant matches, the triangle variant matches too.
func TestTriangleCoversSimple(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 2000)
	for i := 0; i < 200; i++ {
		keys[rng.IntN(len(keys))] = flipBits(rng, keys[rng.IntN(len(keys))], 1+rng.IntN(3))
	}
	si, ti := buildBoth(t, keys)

	for i := 0; i < 200; i++ {
		q := flipBits(rng, keys[rng.IntN(len(keys))], rng.IntN(4))
		for e := uint8(0); e <= 3; e++ {
			sm, _ := si.Match(q, e)
			tm, _ := ti.Match(q, e)
			smSorted, tmSorted := sortedCopy(sm), sortedCopy(tm)
			j := 0
			for _, v := range tmSorted {
				if j < len(smSorted) && smSorted[j] == v {
					j++
				}
			}
			if j != len(smSorted) {
				t.Fatalf("simple match %x not covered by triangle matches %x", smSorted, tmSorted)
			}
		}
	}
}

func TestMatchOrderIndependentBuild(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 1000)
	shuffled := append([]uint64(nil), keys...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	a, err := BuildTriangle(keys)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildTriangle(shuffled)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		q := flipBits(rng, keys[rng.IntN(len(keys))], rng.IntN(3))
		am, ac := a.Match(q, 3)
		bm, bc := b.Match(q, 3)
		if ac != bc {
			t.Fatalf("candidates differ: %d vs %d", ac, bc)
		}
		if !slices.Equal(sortedCopy(am), sortedCopy(bm)) {
			t.Fatalf("match multisets differ for q=%x", q)
		}
	}
}

func TestTrianglePopcountBand(t *testing.T) {
	rng := newTestRNG(t)
	// A b=8, k=6 family admits error bounds up to 6 with a 16-bit splitter.
	family, err := perm.NewFamily(8, 6)
	if err != nil {
		t.Fatal(err)
	}
	// Keys with all set bits outside the splitter blocks of permutation 0
	// share one prefix bucket, so only the popcount strata separate them.
	keyIn := func(c int) uint64 {
		var x uint64
		for _, b := range rng.Perm(48)[:c] {
			x |= uint64(1) << (b + 16)
		}
		return x
	}
	keys := make([]uint64, 0, 1001)
	for len(keys) < 1000 {
		keys = append(keys, keyIn(10))
	}
	outlier := keyIn(30)
	keys = append(keys, outlier)

	ti, err := BuildTriangle(keys, WithFamily(family))
	if err != nil {
		t.Fatal(err)
	}

	q := keyIn(10)
	if ti.prm.Forward(q)>>ti.geo.highShift != ti.prm.Forward(outlier)>>ti.geo.highShift {
		t.Fatal("test premise broken: query and outlier are in different prefix buckets")
	}
	matches, candidates := ti.Match(q, 5)
	// The popcount-30 key sits outside the [5, 15] band: never scanned,
	// never matched.
	if candidates >= uint64(len(keys)) {
		t.Fatalf("candidates = %d, want < %d (outlier stratum must be skipped)", candidates, len(keys))
	}
	for _, m := range matches {
		if m == outlier {
			t.Fatalf("outlier with popcount 30 matched at e=5")
		}
		c := bits.OnesCount64(m ^ q)
		if c > 5 {
			t.Fatalf("match %x at distance %d > 5", m, c)
		}
		if pc := bits.OnesCount64(m); pc < 5 || pc > 15 {
			t.Fatalf("match %x popcount %d outside band [5, 15]", m, pc)
		}
	}
}

func TestMatchAllOnesKey(t *testing.T) {
	// popcount 64 exceeds the 6-bit stratum field; the build clamps it to
	// the top stratum and the confirm step keeps matching exact.
	allOnes := ^uint64(0)
	neighbor := allOnes ^ uint64(1)<<20 // differs in a payload bit for id 0
	keys := []uint64{allOnes, neighbor, 0}
	si, ti := buildBoth(t, keys)
	for _, idx := range []Index{si, ti} {
		matches, _ := idx.Match(allOnes, 0)
		if len(matches) != 1 || matches[0] != allOnes {
			t.Fatalf("%s: Match(allOnes, 0) = %x", idx.Variant(), matches)
		}
		matches, _ = idx.Match(allOnes, 1)
		if want := sortedCopy([]uint64{neighbor, allOnes}); !slices.Equal(sortedCopy(matches), want) {
			t.Fatalf("%s: Match(allOnes, 1) = %x, want %x", idx.Variant(), matches, want)
		}
	}
}

func TestCandidatesMatchesCountOnlyMode(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 3000)
	si, ti := buildBoth(t, keys)
	for i := 0; i < 100; i++ {
		q := rng.Uint64()
		for e := uint8(0); e <= 3; e++ {
			for _, idx := range []Index{si, ti} {
				matches, candidates := idx.Match(q, e)
				if got := idx.Candidates(q, e); got != candidates {
					t.Fatalf("%s: Candidates = %d, Match candidates = %d", idx.Variant(), got, candidates)
				}
				if candidates < uint64(len(matches)) {
					t.Fatalf("%s: candidates %d < matches %d", idx.Variant(), candidates, len(matches))
				}
			}
		}
	}
}

func TestMatchErrorsAboveKPanics(t *testing.T) {
	si, _ := buildBoth(t, []uint64{1, 2, 3})
	defer func() {
		if recover() == nil {
			t.Fatal("Match with errors > k did not panic")
		}
	}()
	si.Match(0, si.MaxErrors()+1)
}

func TestMatchAllPermutationIDs(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 1000)
	family := defaultFamily()
	for id := 0; id < family.Size(); id++ {
		si, ti := buildBoth(t, keys, WithPermutationID(id))
		for i := 0; i < 50; i++ {
			q := flipBits(rng, keys[rng.IntN(len(keys))], rng.IntN(4))
			matches, candidates := si.Match(q, 3)
			checkMatch(t, matches, candidates, expectedSimple(si, keys, q, 3))
			matches, candidates = ti.Match(q, 3)
			checkMatch(t, matches, candidates, expectedTriangle(ti, keys, q, 3))
		}
	}
}

func TestStats(t *testing.T) {
	rng := newTestRNG(t)
	keys := randKeys(rng, 100)
	si, ti := buildBoth(t, keys)
	if st := si.Stats(); st.NumKeys != 100 || st.Variant != VariantSimple || st.BitsPerKey <= 0 {
		t.Fatalf("simple stats: %+v", st)
	}
	if st := ti.Stats(); st.NumKeys != 100 || st.Variant != VariantTriangle || st.MaxErrors != 3 {
		t.Fatalf("triangle stats: %+v", st)
	}
}
