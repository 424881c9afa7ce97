// Package errors defines all exported error sentinels for the mindex library.
//
// This is the single source of truth for error values. Both the top-level
// mindex package and internal packages import from here, ensuring errors.Is
// checks work across package boundaries.
package errors

import "errors"

// Build errors
var (
	ErrBadPermutation  = errors.New("mindex: permutation is not a bit permutation")
	ErrBadGeometry     = errors.New("mindex: splitter width incompatible with index geometry")
	ErrUnknownVariant  = errors.New("mindex: unknown index variant")
	ErrPermutationID   = errors.New("mindex: permutation id out of range for family")
	ErrMetadataTooLong = errors.New("mindex: user metadata exceeds maximum length")
)

// Index file errors
var (
	ErrInvalidMagic      = errors.New("mindex: invalid magic number")
	ErrInvalidVersion    = errors.New("mindex: unsupported version")
	ErrChecksumFailed    = errors.New("mindex: file checksum verification failed")
	ErrTruncatedFile     = errors.New("mindex: index file is truncated")
	ErrCorruptedIndex    = errors.New("mindex: index data is corrupted")
	ErrCompressedIndex   = errors.New("mindex: index file is compressed; use Load instead of Open")
	ErrUnknownCompressor = errors.New("mindex: unknown compression codec")
)

// Query errors
var (
	ErrIndexClosed = errors.New("mindex: index is closed")
)
