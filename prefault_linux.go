//go:build linux

package mindex

import "golang.org/x/sys/unix"

// prefaultRegion asks the kernel to read ahead the mapped index pages so
// the first queries do not stall on major faults.
// Best-effort: errors are silently ignored.
func prefaultRegion(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
