package mindex

import (
	"encoding/binary"

	mindexerrors "github.com/mindex-go/mindex/errors"
)

const (
	// magic number for mindex files: "MIDX" read as a big-endian uint32.
	// It is written little-endian, so the first four file bytes are "XDIM".
	magic = uint32(0x4D494458)

	// version is the current format version.
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes).
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes).
	footerSize = 32

	// regionAlign is the file alignment of the columns region. Keeping it
	// at 16 bytes lets an mmap-backed low column feed the aligned batch
	// loads directly.
	regionAlign = 16
)

// compressionID identifies the codec applied to everything after the fixed
// header.
type compressionID uint8

const (
	compressionNone compressionID = 0
	compressionS2   compressionID = 1
)

// header is the 64-byte file header.
//
// Layout:
//
//	Offset  Size  Field         Type
//	0       4     Magic         0x4D494458 ("MIDX")
//	4       2     Version       0x0001
//	6       1     Variant       uint8 (0=simple, 1=triangle)
//	7       1     B             uint8 (meta-blocks)
//	8       1     K             uint8 (error bound)
//	9       1     Compression   uint8 (0=none, 1=s2)
//	10      2     ID            uint16_le (permutation id)
//	12      1     SplitterBits  uint8
//	13      3     Reserved      zero
//	16      8     NumKeys       uint64_le
//	24      40    Reserved      zero
//
// The permutation itself (bit map and block widths) is stored in a
// variable-length section after the header, so files are self-describing.
type header struct {
	Magic        uint32
	Version      uint16
	Variant      Variant
	B            uint8
	K            uint8
	Compression  compressionID
	ID           uint16
	SplitterBits uint8
	NumKeys      uint64
}

// encodeTo serializes the header to an existing 64-byte buffer.
func (h *header) encodeTo(buf []byte) {
	clear(buf[:headerSize])
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = uint8(h.Variant)
	buf[7] = h.B
	buf[8] = h.K
	buf[9] = uint8(h.Compression)
	binary.LittleEndian.PutUint16(buf[10:12], h.ID)
	buf[12] = h.SplitterBits
	binary.LittleEndian.PutUint64(buf[16:24], h.NumKeys)
}

// decodeHeader parses and validates a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, mindexerrors.ErrTruncatedFile
	}

	h := &header{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint16(buf[4:6]),
		Variant:      Variant(buf[6]),
		B:            buf[7],
		K:            buf[8],
		Compression:  compressionID(buf[9]),
		ID:           binary.LittleEndian.Uint16(buf[10:12]),
		SplitterBits: buf[12],
		NumKeys:      binary.LittleEndian.Uint64(buf[16:24]),
	}

	if h.Magic != magic {
		return nil, mindexerrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, mindexerrors.ErrInvalidVersion
	}
	if h.Variant != VariantSimple && h.Variant != VariantTriangle {
		return nil, mindexerrors.ErrUnknownVariant
	}
	if h.Compression != compressionNone && h.Compression != compressionS2 {
		return nil, mindexerrors.ErrUnknownCompressor
	}
	if h.B == 0 || h.K >= h.B || h.SplitterBits == 0 || h.SplitterBits > 64 {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	return h, nil
}

// footer is the 32-byte file footer.
//
// Layout:
//
//	Offset  Size  Field         Type
//	0       8     ColumnsHash   uint64_le (xxHash64 of the columns region)
//	8       8     BoundaryHash  uint64_le (xxHash64 of the boundary region)
//	16      16    Reserved      zero
type footer struct {
	ColumnsHash  uint64
	BoundaryHash uint64
}

// encodeTo serializes the footer into an existing 32-byte buffer.
func (f *footer) encodeTo(buf []byte) {
	clear(buf[:footerSize])
	binary.LittleEndian.PutUint64(buf[0:8], f.ColumnsHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.BoundaryHash)
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, mindexerrors.ErrTruncatedFile
	}
	return &footer{
		ColumnsHash:  binary.LittleEndian.Uint64(buf[0:8]),
		BoundaryHash: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}
