// Package perm provides the family of bit permutations used to route
// 64-bit keys into prefix buckets.
//
// A key is partitioned into b meta-blocks. For error bound k, any key within
// Hamming distance k of a query has at least b-k meta-blocks untouched by
// errors. The family therefore contains one permutation per (b-k)-subset of
// blocks; permutation id moves its subset into the most-significant bits of
// the word, where the index uses it as the bucketing prefix. A query probed
// under every permutation in the family is guaranteed to share an exact
// prefix with every key within distance k under at least one of them.
package perm

import (
	"fmt"

	mindexerrors "github.com/mindex-go/mindex/errors"
)

// Permutation is a bijection on 64-bit words that rearranges whole bits.
// It is popcount-preserving by construction.
type Permutation struct {
	forward [8][256]uint64
	inverse [8][256]uint64
	bitMap  [64]uint8 // destination position of each source bit
	widths  []uint8   // block widths in permuted order, least-significant first

	splitterBits uint
}

// Family is an enumerated set of permutations covering all error patterns
// of up to k bit errors spread over b meta-blocks.
type Family struct {
	b        uint8
	k        uint8
	matchLen uint8
	perms    []*Permutation
}

// NewFamily constructs the canonical permutation family for b meta-blocks
// and error bound k. Block widths are 64/b with the remainder spread over
// the leading blocks. The family has C(b, b-k) members.
func NewFamily(b, k uint8) (*Family, error) {
	if b == 0 || b > 64 || k >= b {
		return nil, fmt.Errorf("%w: b=%d k=%d", mindexerrors.ErrBadGeometry, b, k)
	}
	matchLen := b - k

	widths := make([]uint8, b)
	base, rem := 64/int(b), 64%int(b)
	for i := range widths {
		widths[i] = uint8(base)
		if i < rem {
			widths[i]++
		}
	}

	f := &Family{b: b, k: k, matchLen: matchLen}
	for _, chosen := range combinations(int(b), int(matchLen)) {
		f.perms = append(f.perms, newBlockPermutation(widths, chosen))
	}
	return f, nil
}

// Size returns the number of permutations in the family.
func (f *Family) Size() int { return len(f.perms) }

// B returns the number of meta-blocks.
func (f *Family) B() uint8 { return f.b }

// K returns the error bound the family covers.
func (f *Family) K() uint8 { return f.k }

// MatchLen returns the number of splitter blocks, b-k.
func (f *Family) MatchLen() uint8 { return f.matchLen }

// At returns the permutation with the given id.
func (f *Family) At(id int) (*Permutation, error) {
	if id < 0 || id >= len(f.perms) {
		return nil, fmt.Errorf("%w: id=%d size=%d", mindexerrors.ErrPermutationID, id, len(f.perms))
	}
	return f.perms[id], nil
}

// combinations enumerates all size-r subsets of [0, n) in lexicographic
// order. The subset order defines permutation ids, so it is part of the
// on-disk compatibility surface and must stay stable.
func combinations(n, r int) [][]int {
	var out [][]int
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		out = append(out, append([]int(nil), idx...))
		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// newBlockPermutation builds the permutation that moves the chosen blocks
// (ascending block indices, blocks counted from the least-significant bit)
// to the top of the word, keeping relative order within both groups.
func newBlockPermutation(widths []uint8, chosen []int) *Permutation {
	b := len(widths)
	isChosen := make([]bool, b)
	for _, c := range chosen {
		isChosen[c] = true
	}

	// Output block order, least-significant first: non-splitter blocks,
	// then the chosen splitter blocks.
	order := make([]int, 0, b)
	for j := 0; j < b; j++ {
		if !isChosen[j] {
			order = append(order, j)
		}
	}
	order = append(order, chosen...)

	srcStart := make([]uint, b)
	for j, acc := 1, uint(widths[0]); j < b; j++ {
		srcStart[j] = acc
		acc += uint(widths[j])
	}

	p := &Permutation{widths: make([]uint8, b)}
	dst := uint(0)
	for pos, j := range order {
		p.widths[pos] = widths[j]
		for t := uint(0); t < uint(widths[j]); t++ {
			p.bitMap[srcStart[j]+t] = uint8(dst)
			dst++
		}
	}
	for _, c := range chosen {
		p.splitterBits += uint(widths[c])
	}
	p.compile()
	return p
}

// FromBitMap reconstructs a permutation from its serialized bit map and
// splitter width. It validates that the map is a bijection on [0, 64).
func FromBitMap(bitMap [64]uint8, widths []uint8, splitterBits uint) (*Permutation, error) {
	var seen [64]bool
	for _, d := range bitMap {
		if d >= 64 || seen[d] {
			return nil, mindexerrors.ErrBadPermutation
		}
		seen[d] = true
	}
	if splitterBits == 0 || splitterBits > 64 {
		return nil, mindexerrors.ErrBadGeometry
	}
	p := &Permutation{
		bitMap:       bitMap,
		widths:       append([]uint8(nil), widths...),
		splitterBits: splitterBits,
	}
	p.compile()
	return p, nil
}

// compile expands the bit map into byte-sliced lookup tables so Forward and
// Inverse cost eight table lookups each.
func (p *Permutation) compile() {
	var inv [64]uint8
	for s, d := range p.bitMap {
		inv[d] = uint8(s)
	}
	for i := 0; i < 8; i++ {
		for v := 0; v < 256; v++ {
			var fw, bw uint64
			for t := 0; t < 8; t++ {
				if v>>t&1 != 0 {
					fw |= uint64(1) << p.bitMap[i*8+t]
					bw |= uint64(1) << inv[i*8+t]
				}
			}
			p.forward[i][v] = fw
			p.inverse[i][v] = bw
		}
	}
}

// Forward applies the permutation.
func (p *Permutation) Forward(x uint64) uint64 {
	return p.forward[0][x&0xff] |
		p.forward[1][x>>8&0xff] |
		p.forward[2][x>>16&0xff] |
		p.forward[3][x>>24&0xff] |
		p.forward[4][x>>32&0xff] |
		p.forward[5][x>>40&0xff] |
		p.forward[6][x>>48&0xff] |
		p.forward[7][x>>56&0xff]
}

// Inverse applies the inverse permutation: Inverse(Forward(x)) == x.
func (p *Permutation) Inverse(y uint64) uint64 {
	return p.inverse[0][y&0xff] |
		p.inverse[1][y>>8&0xff] |
		p.inverse[2][y>>16&0xff] |
		p.inverse[3][y>>24&0xff] |
		p.inverse[4][y>>32&0xff] |
		p.inverse[5][y>>40&0xff] |
		p.inverse[6][y>>48&0xff] |
		p.inverse[7][y>>56&0xff]
}

// SplitterBits returns the width of the bucketing prefix: the total width
// of the blocks this permutation places at the top of the word.
func (p *Permutation) SplitterBits() uint { return p.splitterBits }

// BlockWidths returns the block widths in permuted order, least-significant
// block first. The returned slice must not be modified.
func (p *Permutation) BlockWidths() []uint8 { return p.widths }

// BitMap returns the raw source-to-destination bit map for serialization.
func (p *Permutation) BitMap() [64]uint8 { return p.bitMap }

// Validate checks that the permutation is a true bit permutation: its map
// must be a bijection on [0, 64), which also makes it popcount-preserving.
// Family members are valid by construction; Validate guards hand-built
// maps before they silently break the popcount stratification.
func (p *Permutation) Validate() error {
	var seen [64]bool
	for _, d := range p.bitMap {
		if d >= 64 || seen[d] {
			return mindexerrors.ErrBadPermutation
		}
		seen[d] = true
	}
	return nil
}
