//go:build linux

package mindex

import "golang.org/x/sys/unix"

// fadviseWillNeed hints to the kernel that the mapped index file will be
// read soon. Applied before mmap at open time.
// Best-effort: errors are silently ignored.
func fadviseWillNeed(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_WILLNEED)
}
