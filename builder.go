package mindex

import (
	"fmt"

	mindexerrors "github.com/mindex-go/mindex/errors"
	"github.com/mindex-go/mindex/internal/bitpack"
	intbits "github.com/mindex-go/mindex/internal/bits"
	"github.com/mindex-go/mindex/perm"
)

// BuildSimple constructs the prefix-bucketed index over the given keys.
// The input order is irrelevant; duplicates are preserved, each occurrence
// matching independently. The returned index is immutable.
func BuildSimple(keys []uint64, opts ...BuildOption) (*SimpleIndex, error) {
	c, g, err := prepareBuild(VariantSimple, opts)
	if err != nil {
		return nil, err
	}

	idx := &SimpleIndex{}
	idx.init(c, g, uint64(len(keys)))

	counts := countBuckets(&g, c.prm, keys)
	idx.bnd = newBoundary(counts[:g.numBuckets])

	offsets := toOffsets(counts)
	idx.entries = bitpack.New(uint64(len(keys)), g.payloadBits)
	for _, x := range keys {
		bkt := g.bucketOf(c.prm, x)
		idx.entries.Set(offsets[bkt]-bkt, c.prm.Forward(x)&g.payloadMask)
		offsets[bkt]++
	}
	return idx, nil
}

// BuildTriangle constructs the popcount-stratified index over the given
// keys. Entries within a prefix bucket are grouped by ascending popcount,
// and the non-splitter payload is split into an XOR-compressed low column
// and a packed mid column.
func BuildTriangle(keys []uint64, opts ...BuildOption) (*TriangleIndex, error) {
	c, g, err := prepareBuild(VariantTriangle, opts)
	if err != nil {
		return nil, err
	}

	n := uint64(len(keys))
	idx := &TriangleIndex{}
	idx.init(c, g, n)

	counts := countBuckets(&g, c.prm, keys)
	idx.bnd = newBoundary(counts[:g.numBuckets])

	offsets := toOffsets(counts)
	idx.lowRaw, idx.low = intbits.AlignedUint32(n)
	idx.mid = bitpack.New(n, g.midBits)
	for _, x := range keys {
		bkt := g.bucketOf(c.prm, x)
		pos := offsets[bkt] - bkt
		offsets[bkt]++

		permuted := c.prm.Forward(x)
		low := permuted & lowMask
		mid := permuted >> lowBits & g.midMask
		idx.low[pos] = uint32(low ^ mid)
		idx.mid.Set(pos, mid)
	}
	return idx, nil
}

// buildResolved carries the options resolved against the permutation family.
type buildResolved struct {
	cfg *buildConfig
	prm *perm.Permutation
}

func prepareBuild(variant Variant, opts []BuildOption) (buildResolved, geometry, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.userMetadata) > maxUserMetadata {
		return buildResolved{}, geometry{}, mindexerrors.ErrMetadataTooLong
	}
	p, err := cfg.family.At(cfg.id)
	if err != nil {
		return buildResolved{}, geometry{}, err
	}
	g, err := newGeometry(variant, p, cfg.family.B(), cfg.family.K(), uint16(cfg.id))
	if err != nil {
		return buildResolved{}, geometry{}, fmt.Errorf("permutation %d: %w", cfg.id, err)
	}
	return buildResolved{cfg: cfg, prm: p}, g, nil
}

// countBuckets tallies bucket occupancy. The slice has a sentinel slot so
// the monotone-offset conversion below can run over the whole array.
func countBuckets(g *geometry, p *perm.Permutation, keys []uint64) []uint64 {
	counts := make([]uint64, g.numBuckets+1)
	for _, x := range keys {
		counts[g.bucketOf(p, x)]++
	}
	return counts
}

// toOffsets converts bucket counts to strictly monotone start offsets in
// place: offset[i] = offset[i-1] + counts[i-1] + 1. The +1 per step mirrors
// the delimiter bit each bucket contributes to the boundary bitvector, so
// offset[i] - i is the true payload index where bucket i starts and the
// write loop can share the select-1 arithmetic.
func toOffsets(counts []uint64) []uint64 {
	prev := counts[0]
	counts[0] = 0
	for i := 1; i < len(counts); i++ {
		cur := counts[i]
		counts[i] = counts[i-1] + prev + 1
		prev = cur
	}
	return counts
}
