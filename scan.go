package mindex

import "math/bits"

// batchMaskFunc reports, as a 4-bit mask, which of the four low-column
// lanes starting at j pass the popcount pre-filter against qXor at
// threshold thr. Callers guarantee j is 16-byte aligned and j+4 <= len(low).
type batchMaskFunc func(low []uint32, j uint64, qXor uint32, thr uint32) uint32

// batchMask is the active kernel, selected at init by CPU capability.
// The portable kernel is always correct.
var batchMask batchMaskFunc = batchMaskPortable

func batchMaskPortable(low []uint32, j uint64, qXor uint32, thr uint32) uint32 {
	var m uint32
	if uint32(bits.OnesCount32(low[j]^qXor)) <= thr {
		m |= 1
	}
	if uint32(bits.OnesCount32(low[j+1]^qXor)) <= thr {
		m |= 2
	}
	if uint32(bits.OnesCount32(low[j+2]^qXor)) <= thr {
		m |= 4
	}
	if uint32(bits.OnesCount32(low[j+3]^qXor)) <= thr {
		m |= 8
	}
	return m
}
