package mindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/s2"
)

// countingWriter tracks bytes written to the underlying stream so WriteTo
// can report the on-wire size even when a compressor sits on top.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// indexWriter serializes the sections and regions that follow the fixed
// header. It tracks the logical (pre-compression) offset for alignment
// padding and carries a sticky error so call sites stay linear.
type indexWriter struct {
	w       io.Writer
	off     uint64
	err     error
	scratch []byte
}

func newIndexWriter(w io.Writer) *indexWriter {
	return &indexWriter{w: w, off: headerSize, scratch: make([]byte, 64*1024)}
}

// writeAll writes p, folding it into h when h is non-nil.
func (iw *indexWriter) writeAll(p []byte, h *xxhash.Digest) {
	if iw.err != nil {
		return
	}
	if h != nil {
		// xxhash.Digest.Write never fails.
		_, _ = h.Write(p)
	}
	if _, err := iw.w.Write(p); err != nil {
		iw.err = err
		return
	}
	iw.off += uint64(len(p))
}

// u32 writes a little-endian section length.
func (iw *indexWriter) u32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	iw.writeAll(buf[:], nil)
}

// padTo writes zero bytes until the logical offset is a multiple of align.
func (iw *indexWriter) padTo(align uint64) {
	pad := (align - iw.off%align) % align
	if pad > 0 {
		var zeros [regionAlign]byte
		iw.writeAll(zeros[:pad], nil)
	}
}

// words writes a uint64 slice little-endian, folding the bytes into h.
func (iw *indexWriter) words(ws []uint64, h *xxhash.Digest) {
	buf := iw.scratch
	used := 0
	for _, w := range ws {
		if used == len(buf) {
			iw.writeAll(buf[:used], h)
			used = 0
		}
		binary.LittleEndian.PutUint64(buf[used:], w)
		used += 8
	}
	if used > 0 {
		iw.writeAll(buf[:used], h)
	}
}

// u32s writes a uint32 slice little-endian, folding the bytes into h.
func (iw *indexWriter) u32s(vs []uint32, h *xxhash.Digest) {
	buf := iw.scratch
	used := 0
	for _, v := range vs {
		if used == len(buf) {
			iw.writeAll(buf[:used], h)
			used = 0
		}
		binary.LittleEndian.PutUint32(buf[used:], v)
		used += 4
	}
	if used > 0 {
		iw.writeAll(buf[:used], h)
	}
}

// writeTo streams the index: fixed header, variable sections (user
// metadata, permutation config), the variant's columns region, the
// boundary region, and a checksummed footer. With compression enabled,
// everything after the header runs through an s2 frame.
func (c *core) writeTo(w io.Writer, columns func(*indexWriter, *xxhash.Digest)) (int64, error) {
	c.checkOpen()

	cw := &countingWriter{w: w}
	hdr := header{
		Magic:        magic,
		Version:      version,
		Variant:      c.geo.variant,
		B:            c.geo.b,
		K:            c.geo.k,
		Compression:  c.compress,
		ID:           c.geo.id,
		SplitterBits: uint8(c.geo.splitterBits),
		NumKeys:      c.n,
	}
	var hbuf [headerSize]byte
	hdr.encodeTo(hbuf[:])
	if _, err := cw.Write(hbuf[:]); err != nil {
		return cw.n, fmt.Errorf("write header: %w", err)
	}

	var body io.Writer = cw
	var s2w *s2.Writer
	if c.compress == compressionS2 {
		s2w = s2.NewWriter(cw)
		body = s2w
	}

	iw := newIndexWriter(body)

	iw.u32(uint32(len(c.meta)))
	iw.writeAll(c.meta, nil)

	bm := c.prm.BitMap()
	widths := c.prm.BlockWidths()
	iw.u32(uint32(1 + len(widths) + len(bm)))
	iw.writeAll([]byte{uint8(len(widths))}, nil)
	iw.writeAll(widths, nil)
	iw.writeAll(bm[:], nil)
	iw.padTo(regionAlign)

	colHash := xxhash.New()
	columns(iw, colHash)

	bndHash := xxhash.New()
	iw.words(c.bnd.vec.Words(), bndHash)

	ft := footer{ColumnsHash: colHash.Sum64(), BoundaryHash: bndHash.Sum64()}
	var fbuf [footerSize]byte
	ft.encodeTo(fbuf[:])
	iw.writeAll(fbuf[:], nil)

	if iw.err != nil {
		return cw.n, fmt.Errorf("write index: %w", iw.err)
	}
	if s2w != nil {
		if err := s2w.Close(); err != nil {
			return cw.n, fmt.Errorf("flush compressed stream: %w", err)
		}
	}
	return cw.n, nil
}

// writeFile serializes to a new file at path through a buffered writer.
func (c *core) writeFile(path string, writeTo func(io.Writer) (int64, error)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err := writeTo(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	return nil
}

// WriteTo serializes the index to w.
func (s *SimpleIndex) WriteTo(w io.Writer) (int64, error) {
	return s.core.writeTo(w, s.writeColumns)
}

// WriteFile serializes the index to a new file at path.
func (s *SimpleIndex) WriteFile(path string) error {
	return s.core.writeFile(path, s.WriteTo)
}

func (s *SimpleIndex) writeColumns(iw *indexWriter, h *xxhash.Digest) {
	iw.words(s.entries.Words(), h)
}

// WriteTo serializes the index to w.
func (t *TriangleIndex) WriteTo(w io.Writer) (int64, error) {
	return t.core.writeTo(w, t.writeColumns)
}

// WriteFile serializes the index to a new file at path.
func (t *TriangleIndex) WriteFile(path string) error {
	return t.core.writeFile(path, t.WriteTo)
}

func (t *TriangleIndex) writeColumns(iw *indexWriter, h *xxhash.Digest) {
	iw.u32s(t.low, h)
	if t.n%2 == 1 {
		// Keep the mid words 8-byte aligned in the file.
		iw.writeAll([]byte{0, 0, 0, 0}, h)
	}
	iw.words(t.mid.Words(), h)
}
