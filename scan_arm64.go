//go:build arm64

package mindex

func init() {
	// arm64 has vector popcount (CNT) in the baseline ISA.
	batchMask = batchMaskPopcnt
}
