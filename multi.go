package mindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/mindex-go/mindex/perm"
)

// MultiIndex is the outer driver of the multi-index scheme: one index per
// permutation in the family, all over the same corpus. A key within
// distance k of a query keeps at least b-k meta-blocks intact, so at least
// one permutation routes it into the query's bucket; querying every member
// and uniting the answers is therefore exact.
type MultiIndex struct {
	family  *perm.Family
	variant Variant
	indexes []Index
	n       uint64
}

// BuildMulti builds one index per permutation id over keys, in parallel.
// The WithPermutationID option is ignored; ids are assigned by the driver.
func BuildMulti(ctx context.Context, keys []uint64, variant Variant, opts ...BuildOption) (*MultiIndex, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	family := cfg.family

	m := &MultiIndex{
		family:  family,
		variant: variant,
		indexes: make([]Index, family.Size()),
		n:       uint64(len(keys)),
	}

	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < family.Size(); id++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perID := append(append([]BuildOption(nil), opts...), WithPermutationID(id))
			var err error
			switch variant {
			case VariantSimple:
				m.indexes[id], err = BuildSimple(keys, perID...)
			case VariantTriangle:
				m.indexes[id], err = BuildTriangle(keys, perID...)
			default:
				err = fmt.Errorf("build permutation %d: unknown variant %d", id, variant)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// Search returns every indexed key within Hamming distance errors of q,
// with the multiplicity it has in the corpus, plus the total number of
// candidate entries scanned across all permutations. A key found by
// several permutations is reported once per corpus occurrence, not once
// per permutation.
func (m *MultiIndex) Search(q uint64, errors uint8) ([]uint64, uint64) {
	results := make([][]uint64, len(m.indexes))
	counts := make([]uint64, len(m.indexes))

	var wg sync.WaitGroup
	for id, idx := range m.indexes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[id], counts[id] = idx.Match(q, errors)
		}()
	}
	wg.Wait()

	var candidates uint64
	for _, c := range counts {
		candidates += c
	}

	// Each permutation that finds a key value reports all of its corpus
	// occurrences, so taking the first reporter per value preserves
	// multiplicity while dropping cross-permutation duplicates.
	seen := roaring64.New()
	var out []uint64
	for _, res := range results {
		for _, v := range res {
			if !seen.Contains(v) {
				out = append(out, v)
			}
		}
		for _, v := range res {
			seen.Add(v)
		}
	}
	return out, candidates
}

// Size returns the number of indexed keys.
func (m *MultiIndex) Size() uint64 { return m.n }

// MaxErrors returns the error bound k the family covers.
func (m *MultiIndex) MaxErrors() uint8 { return m.family.K() }

// At returns the per-permutation index with the given id, e.g. for
// serializing each member separately.
func (m *MultiIndex) At(id int) (Index, error) {
	if id < 0 || id >= len(m.indexes) {
		return nil, fmt.Errorf("multi-index: no member %d", id)
	}
	return m.indexes[id], nil
}

// Close closes every member index.
func (m *MultiIndex) Close() error {
	var first error
	for _, idx := range m.indexes {
		if err := idx.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
