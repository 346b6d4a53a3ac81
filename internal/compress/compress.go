package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the block compression algorithm.
type Type uint8

const (
	// None stores blocks as-is.
	None Type = 0
	// LZ4 favors speed.
	LZ4 Type = 1
	// ZSTD favors ratio.
	ZSTD Type = 2
)

// DefaultBlockSize is used when a Writer is created with a non-positive block size.
const DefaultBlockSize = 256 * 1024

const headerSize = 9

var (
	// ErrCorrupt is returned for malformed block streams.
	ErrCorrupt = errors.New("compress: corrupt block")
	// ErrUnknownType is returned by ParseType and for unknown block types.
	ErrUnknownType = errors.New("compress: unknown type")
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	switch s {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func compressBlock(t Type, data []byte) ([]byte, error) {
	switch t {
	case LZ4:
		out := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, out, nil)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	case ZSTD:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	default:
		return nil, nil
	}
}

func decompressBlock(t Type, payload []byte, size int) ([]byte, error) {
	out := make([]byte, size)
	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 size mismatch", ErrCorrupt)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(payload, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(decoded) != size {
			return nil, fmt.Errorf("%w: zstd size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}

// Writer buffers writes and emits one compressed block per blockSize bytes.
type Writer struct {
	w         io.Writer
	typ       Type
	blockSize int
	buf       []byte
	written   int64
	closed    bool
}

// NewWriter returns a Writer framing into w.
func NewWriter(w io.Writer, t Type, blockSize int) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{w: w, typ: t, blockSize: blockSize, buf: make([]byte, 0, blockSize)}
}

func (c *Writer) Write(p []byte) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	total := 0
	for len(p) > 0 {
		n := min(len(p), c.blockSize-len(c.buf))
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]
		total += n
		if len(c.buf) == c.blockSize {
			if err := c.flushBlock(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

func (c *Writer) flushBlock() error {
	if len(c.buf) == 0 {
		return nil
	}
	payload, err := compressBlock(c.typ, c.buf)
	if err != nil {
		return err
	}
	var hdr [headerSize]byte
	hdr[0] = byte(c.typ)
	binary.LittleEndian.PutUint32(hdr[1:], uint32(len(c.buf)))
	if len(payload) == 0 || float64(len(payload)) > float64(len(c.buf))*0.9 {
		payload = c.buf
		binary.LittleEndian.PutUint32(hdr[5:], 0)
	} else {
		binary.LittleEndian.PutUint32(hdr[5:], uint32(len(payload)))
	}
	if _, err := c.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := c.w.Write(payload); err != nil {
		return err
	}
	c.written += int64(headerSize + len(payload))
	c.buf = c.buf[:0]
	return nil
}

// Close flushes the last partial block. It does not close the underlying writer.
func (c *Writer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.flushBlock()
}

// BytesWritten returns the framed bytes emitted so far.
func (c *Writer) BytesWritten() int64 {
	return c.written
}

// Reader decodes a block stream produced by Writer.
type Reader struct {
	r     io.Reader
	block []byte
	off   int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (c *Reader) Read(p []byte) (int, error) {
	for c.off == len(c.block) {
		if err := c.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.block[c.off:])
	c.off += n
	return n, nil
}

func (c *Reader) next() error {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated header", ErrCorrupt)
		}
		return err
	}
	typ := Type(hdr[0])
	size := int(binary.LittleEndian.Uint32(hdr[1:]))
	stored := int(binary.LittleEndian.Uint32(hdr[5:]))

	n := stored
	if stored == 0 {
		n = size
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("%w: truncated payload: %w", ErrCorrupt, err)
	}
	if stored == 0 {
		c.block, c.off = payload, 0
		return nil
	}
	block, err := decompressBlock(typ, payload, size)
	if err != nil {
		return err
	}
	c.block, c.off = block, 0
	return nil
}
