// Package bits provides low-level bit manipulation primitives for the
// columnar scan kernels.
package bits

import (
	"math/bits"
	"unsafe"
)

// PairCount32 computes the popcount of both 32-bit halves of v at once
// using the classic SWAR reduction, returning the low-lane count in the
// low 32 bits of the result and the high-lane count in the high 32 bits.
// Counts fit in 6 bits, so the lanes never carry into each other.
func PairCount32(v uint64) uint64 {
	v -= (v >> 1) & 0x5555555555555555
	v = (v & 0x3333333333333333) + ((v >> 2) & 0x3333333333333333)
	v = (v + (v >> 4)) & 0x0f0f0f0f0f0f0f0f
	// Horizontal sum within each 32-bit lane: the multiply folds the four
	// byte counts of a lane into the lane's top byte.
	v = (v * 0x01010101) >> 24 & 0x000000ff000000ff
	return v
}

// Count64 is popcount over a 64-bit word.
func Count64(v uint64) int {
	return bits.OnesCount64(v)
}

// Count32 is popcount over a 32-bit word.
func Count32(v uint32) int {
	return bits.OnesCount32(v)
}

// WordsFor returns the number of 64-bit words needed to hold n bits.
func WordsFor(n uint64) uint64 {
	return (n + 63) / 64
}

// AlignedUint32 allocates a uint32 slice of length n whose first element
// sits on a 16-byte boundary, as required by the batched low-column loads.
// raw retains the full allocation; aligned is the usable view into it.
func AlignedUint32(n uint64) (raw, aligned []uint32) {
	if n == 0 {
		return nil, nil
	}
	raw = make([]uint32, n+3)
	off := (16 - uintptr(unsafe.Pointer(&raw[0]))%16) % 16 / 4
	return raw, raw[off : uint64(off)+n]
}

// Aligned16 reports whether the i-th element of the slice sits on a
// 16-byte boundary.
func Aligned16(s []uint32, i uint64) bool {
	return uintptr(unsafe.Pointer(&s[i]))&15 == 0
}
