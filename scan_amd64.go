//go:build amd64

package mindex

import "github.com/klauspost/cpuid/v2"

func init() {
	// With POPCNT the per-lane kernel compiles to four popcnt instructions
	// and beats the SWAR reduction; without it the SWAR kernel counts two
	// lanes per reduction and wins.
	if cpuid.CPU.Has(cpuid.POPCNT) {
		batchMask = batchMaskPopcnt
	} else {
		batchMask = batchMaskSWAR
	}
}
