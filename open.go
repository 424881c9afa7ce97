package mindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/s2"
	mindexerrors "github.com/mindex-go/mindex/errors"
	"github.com/mindex-go/mindex/internal/bitpack"
	"github.com/mindex-go/mindex/internal/bitvec"
	intbits "github.com/mindex-go/mindex/internal/bits"
	"github.com/mindex-go/mindex/perm"
)

// maxKeys bounds NumKeys read from a file header before any allocation is
// sized from it.
const maxKeys = uint64(1) << 40

// Load reads a serialized index from r, verifying the region checksums as
// it goes. It handles both plain and compressed streams and always copies
// the data into freshly allocated arrays; use Open to map a file without
// copying.
func Load(r io.Reader) (Index, error) {
	var hbuf [headerSize]byte
	if _, err := io.ReadFull(r, hbuf[:]); err != nil {
		return nil, readErr("read header", err)
	}
	hdr, err := decodeHeader(hbuf[:])
	if err != nil {
		return nil, err
	}

	var body io.Reader = r
	if hdr.Compression == compressionS2 {
		body = s2.NewReader(r)
	}
	return loadBody(hdr, body)
}

// Open opens an index file for querying by memory-mapping it. Payload
// columns and the boundary bitvector alias the mapped pages; only the
// select-1 samples are materialized. Compressed files are rejected with
// ErrCompressedIndex.
func Open(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	return OpenFile(f)
}

// OpenFile opens an index by memory-mapping the given file. The caller is
// responsible for closing f; per POSIX mmap(2), f may be closed immediately
// after OpenFile returns.
func OpenFile(f *os.File) (Index, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	if stat.Size() < headerSize+footerSize {
		return nil, mindexerrors.ErrTruncatedFile
	}

	fadviseWillNeed(int(f.Fd()), 0, stat.Size())

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap index file: %w", err)
	}
	idx, err := openBytes([]byte(mm), mm)
	if err != nil {
		return nil, errors.Join(err, mm.Unmap())
	}
	prefaultRegion([]byte(mm))
	return idx, nil
}

// OpenBytes creates an index from an in-memory byte slice without copying
// the column data. The caller must not modify data while the index is in
// use. Compressed or misaligned buffers silently take the copying Load
// path instead.
func OpenBytes(data []byte) (Index, error) {
	if len(data) < headerSize {
		return nil, mindexerrors.ErrTruncatedFile
	}
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.Compression != compressionNone || uintptr(unsafe.Pointer(&data[0]))%regionAlign != 0 {
		return Load(bytes.NewReader(data))
	}
	return openBytes(data, nil)
}

// readErr maps stream errors to the library's sentinel space.
func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return mindexerrors.ErrTruncatedFile
	}
	return fmt.Errorf("%s: %w", what, err)
}

// =============================================================================
// Streaming loader (Load)
// =============================================================================

// indexReader mirrors indexWriter for the read path: sticky error, logical
// offset tracking for padding, and checksum folding.
type indexReader struct {
	r       io.Reader
	off     uint64
	err     error
	scratch []byte
}

func newIndexReader(r io.Reader) *indexReader {
	return &indexReader{r: r, off: headerSize, scratch: make([]byte, 64*1024)}
}

func (ir *indexReader) readFull(p []byte, h *xxhash.Digest) {
	if ir.err != nil {
		return
	}
	if _, err := io.ReadFull(ir.r, p); err != nil {
		ir.err = readErr("read index", err)
		return
	}
	if h != nil {
		_, _ = h.Write(p)
	}
	ir.off += uint64(len(p))
}

func (ir *indexReader) u32() uint32 {
	var buf [4]byte
	ir.readFull(buf[:], nil)
	return binary.LittleEndian.Uint32(buf[:])
}

func (ir *indexReader) skipPad(align uint64) {
	pad := (align - ir.off%align) % align
	if pad > 0 {
		var zeros [regionAlign]byte
		ir.readFull(zeros[:pad], nil)
	}
}

// words reads count little-endian uint64s, folding the bytes into h.
func (ir *indexReader) words(count uint64, h *xxhash.Digest) []uint64 {
	out := make([]uint64, count)
	buf := ir.scratch
	for done := uint64(0); done < count && ir.err == nil; {
		chunk := count - done
		if max := uint64(len(buf)) / 8; chunk > max {
			chunk = max
		}
		ir.readFull(buf[:chunk*8], h)
		for i := uint64(0); i < chunk; i++ {
			out[done+i] = binary.LittleEndian.Uint64(buf[i*8:])
		}
		done += chunk
	}
	return out
}

// u32sInto fills dst with little-endian uint32s, folding the bytes into h.
func (ir *indexReader) u32sInto(dst []uint32, h *xxhash.Digest) {
	buf := ir.scratch
	for done := 0; done < len(dst) && ir.err == nil; {
		chunk := len(dst) - done
		if max := len(buf) / 4; chunk > max {
			chunk = max
		}
		ir.readFull(buf[:chunk*4], h)
		for i := 0; i < chunk; i++ {
			dst[done+i] = binary.LittleEndian.Uint32(buf[i*4:])
		}
		done += chunk
	}
}

// loadBody reads everything after the fixed header and assembles the index.
func loadBody(hdr *header, body io.Reader) (Index, error) {
	if hdr.NumKeys > maxKeys {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	ir := newIndexReader(body)

	metaLen := ir.u32()
	if ir.err != nil {
		return nil, ir.err
	}
	if metaLen > maxUserMetadata {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	meta := make([]byte, metaLen)
	ir.readFull(meta, nil)

	p, err := readPermSection(ir, hdr)
	if err != nil {
		return nil, err
	}
	g, err := newGeometry(hdr.Variant, p, hdr.B, hdr.K, hdr.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mindexerrors.ErrCorruptedIndex, err)
	}
	ir.skipPad(regionAlign)

	n := hdr.NumKeys
	colHash := xxhash.New()

	var idx Index
	var c *core
	switch hdr.Variant {
	case VariantSimple:
		s := &SimpleIndex{}
		ws := ir.words(intbits.WordsFor(n*uint64(g.payloadBits)), colHash)
		if ir.err != nil {
			return nil, ir.err
		}
		s.entries = bitpack.FromWords(ws, n, g.payloadBits)
		idx, c = s, &s.core
	case VariantTriangle:
		t := &TriangleIndex{}
		t.lowRaw, t.low = intbits.AlignedUint32(n)
		ir.u32sInto(t.low, colHash)
		if n%2 == 1 {
			var pad [4]byte
			ir.readFull(pad[:], colHash)
		}
		ws := ir.words(intbits.WordsFor(n*uint64(g.midBits)), colHash)
		if ir.err != nil {
			return nil, ir.err
		}
		t.mid = bitpack.FromWords(ws, n, g.midBits)
		idx, c = t, &t.core
	default:
		return nil, mindexerrors.ErrUnknownVariant
	}

	bndHash := xxhash.New()
	nbits := g.numBuckets + n
	bndWords := ir.words(intbits.WordsFor(nbits), bndHash)

	var fbuf [footerSize]byte
	ir.readFull(fbuf[:], nil)
	if ir.err != nil {
		return nil, ir.err
	}
	ft, err := decodeFooter(fbuf[:])
	if err != nil {
		return nil, err
	}
	if ft.ColumnsHash != colHash.Sum64() || ft.BoundaryHash != bndHash.Sum64() {
		return nil, mindexerrors.ErrChecksumFailed
	}

	vec := bitvec.FromWords(bndWords, nbits)
	if vec.Ones() != g.numBuckets {
		return nil, mindexerrors.ErrCorruptedIndex
	}

	c.geo = g
	c.prm = p
	c.bnd = boundary{vec: vec}
	c.n = n
	c.meta = meta
	c.compress = hdr.Compression
	c.footer = ft
	return idx, nil
}

// readPermSection parses the permutation config section and reconstructs
// the permutation.
func readPermSection(ir *indexReader, hdr *header) (*perm.Permutation, error) {
	permLen := ir.u32()
	if ir.err != nil {
		return nil, ir.err
	}
	if permLen < 1+64 || permLen > 1+64+64 {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	pcfg := make([]byte, permLen)
	ir.readFull(pcfg, nil)
	if ir.err != nil {
		return nil, ir.err
	}
	return parsePermConfig(pcfg, hdr)
}

func parsePermConfig(pcfg []byte, hdr *header) (*perm.Permutation, error) {
	if len(pcfg) < 1 {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	widthsLen := int(pcfg[0])
	if widthsLen != int(hdr.B) || len(pcfg) != 1+widthsLen+64 {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	widths := pcfg[1 : 1+widthsLen]
	total := 0
	for _, w := range widths {
		total += int(w)
	}
	if total != 64 {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	var bm [64]uint8
	copy(bm[:], pcfg[1+widthsLen:])
	p, err := perm.FromBitMap(bm, widths, uint(hdr.SplitterBits))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mindexerrors.ErrCorruptedIndex, err)
	}
	return p, nil
}

// =============================================================================
// Zero-copy loader (Open / OpenBytes)
// =============================================================================

// openBytes parses an uncompressed serialized index in place. The column
// arrays and the boundary bitvector alias data; mm, when non-nil, is the
// memory map to release on Close. Checksum verification is deferred to
// Verify so opening does not fault in every page.
func openBytes(data []byte, mm mmap.MMap) (Index, error) {
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if hdr.Compression != compressionNone {
		return nil, mindexerrors.ErrCompressedIndex
	}
	if hdr.NumKeys > maxKeys {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	n := hdr.NumKeys
	fileSize := uint64(len(data))
	off := uint64(headerSize)

	take := func(nbytes uint64) ([]byte, error) {
		if nbytes > fileSize || off > fileSize-nbytes {
			return nil, mindexerrors.ErrTruncatedFile
		}
		b := data[off : off+nbytes]
		off += nbytes
		return b, nil
	}

	lenBuf, err := take(4)
	if err != nil {
		return nil, err
	}
	metaLen := binary.LittleEndian.Uint32(lenBuf)
	if metaLen > maxUserMetadata {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	meta, err := take(uint64(metaLen))
	if err != nil {
		return nil, err
	}

	lenBuf, err = take(4)
	if err != nil {
		return nil, err
	}
	permLen := binary.LittleEndian.Uint32(lenBuf)
	if permLen > 1+64+64 {
		return nil, mindexerrors.ErrCorruptedIndex
	}
	pcfg, err := take(uint64(permLen))
	if err != nil {
		return nil, err
	}
	p, err := parsePermConfig(pcfg, hdr)
	if err != nil {
		return nil, err
	}
	g, err := newGeometry(hdr.Variant, p, hdr.B, hdr.K, hdr.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mindexerrors.ErrCorruptedIndex, err)
	}

	if pad := (regionAlign - off%regionAlign) % regionAlign; pad > 0 {
		if _, err := take(pad); err != nil {
			return nil, err
		}
	}

	var idx Index
	var c *core
	switch hdr.Variant {
	case VariantSimple:
		s := &SimpleIndex{}
		colBytes, err := take(intbits.WordsFor(n*uint64(g.payloadBits)) * 8)
		if err != nil {
			return nil, err
		}
		s.entries = bitpack.FromWords(wordsView(colBytes), n, g.payloadBits)
		idx, c = s, &s.core
	case VariantTriangle:
		t := &TriangleIndex{}
		lowBytes, err := take(n * 4)
		if err != nil {
			return nil, err
		}
		t.low = u32View(lowBytes)
		if n%2 == 1 {
			if _, err := take(4); err != nil {
				return nil, err
			}
		}
		midBytes, err := take(intbits.WordsFor(n*uint64(g.midBits)) * 8)
		if err != nil {
			return nil, err
		}
		t.mid = bitpack.FromWords(wordsView(midBytes), n, g.midBits)
		idx, c = t, &t.core
	}

	nbits := g.numBuckets + n
	bndBytes, err := take(intbits.WordsFor(nbits) * 8)
	if err != nil {
		return nil, err
	}
	vec := bitvec.FromWords(wordsView(bndBytes), nbits)
	if vec.Ones() != g.numBuckets {
		return nil, mindexerrors.ErrCorruptedIndex
	}

	ftBytes, err := take(footerSize)
	if err != nil {
		return nil, err
	}
	ft, err := decodeFooter(ftBytes)
	if err != nil {
		return nil, err
	}

	c.geo = g
	c.prm = p
	c.bnd = boundary{vec: vec}
	c.n = n
	c.meta = meta
	c.compress = hdr.Compression
	c.footer = ft
	c.mm = mm
	return idx, nil
}

// wordsView reinterprets a little-endian byte region as uint64 words
// without copying. The region must be 8-byte aligned; callers get that
// from the 16-byte region alignment plus a page-aligned (or checked) base.
// Like the rest of the zero-copy path, this assumes a little-endian host.
func wordsView(b []byte) []uint64 {
	if len(b) < 8 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), len(b)/8)
}

// u32View reinterprets a little-endian byte region as uint32 lanes without
// copying.
func u32View(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

// =============================================================================
// Verification
// =============================================================================

// verify recomputes the serialized region checksums from the in-memory (or
// mapped) arrays and compares them with the stored footer.
func (c *core) verify(columns func(*indexWriter, *xxhash.Digest)) error {
	if c.closed.Load() {
		return mindexerrors.ErrIndexClosed
	}
	if c.footer == nil {
		return nil
	}

	iw := &indexWriter{w: io.Discard, scratch: make([]byte, 64*1024)}
	colHash := xxhash.New()
	columns(iw, colHash)
	bndHash := xxhash.New()
	iw.words(c.bnd.vec.Words(), bndHash)
	if iw.err != nil {
		return iw.err
	}
	if colHash.Sum64() != c.footer.ColumnsHash || bndHash.Sum64() != c.footer.BoundaryHash {
		return mindexerrors.ErrChecksumFailed
	}
	return nil
}

// Verify checks the stored region checksums, if any.
func (s *SimpleIndex) Verify() error { return s.core.verify(s.writeColumns) }

// Verify checks the stored region checksums, if any.
func (t *TriangleIndex) Verify() error { return t.core.verify(t.writeColumns) }
