//go:build amd64 || arm64

package mindex

import (
	"math/bits"
	"unsafe"

	intbits "github.com/mindex-go/mindex/internal/bits"
)

// The wide kernels load two lanes per 64-bit read. Lane order within a word
// assumes little-endian layout, which holds on amd64 and arm64.

// broadcast2 replicates a 32-bit value into both halves of a word.
func broadcast2(v uint32) uint64 {
	return uint64(v) * 0x0000000100000001
}

// batchMaskPopcnt filters four lanes using two 64-bit loads and hardware
// popcount per lane.
func batchMaskPopcnt(low []uint32, j uint64, qXor uint32, thr uint32) uint32 {
	q2 := broadcast2(qXor)
	a := *(*uint64)(unsafe.Pointer(&low[j])) ^ q2
	b := *(*uint64)(unsafe.Pointer(&low[j+2])) ^ q2

	var m uint32
	if uint32(bits.OnesCount32(uint32(a))) <= thr {
		m |= 1
	}
	if uint32(bits.OnesCount32(uint32(a>>32))) <= thr {
		m |= 2
	}
	if uint32(bits.OnesCount32(uint32(b))) <= thr {
		m |= 4
	}
	if uint32(bits.OnesCount32(uint32(b>>32))) <= thr {
		m |= 8
	}
	return m
}

// batchMaskSWAR filters four lanes using two 64-bit loads and a SWAR
// popcount that counts both halves of each word at once. Preferred when
// the CPU lacks a popcount instruction.
func batchMaskSWAR(low []uint32, j uint64, qXor uint32, thr uint32) uint32 {
	q2 := broadcast2(qXor)
	ca := intbits.PairCount32(*(*uint64)(unsafe.Pointer(&low[j])) ^ q2)
	cb := intbits.PairCount32(*(*uint64)(unsafe.Pointer(&low[j+2])) ^ q2)

	var m uint32
	if uint32(ca) <= thr {
		m |= 1
	}
	if uint32(ca>>32) <= thr {
		m |= 2
	}
	if uint32(cb) <= thr {
		m |= 4
	}
	if uint32(cb>>32) <= thr {
		m |= 8
	}
	return m
}
