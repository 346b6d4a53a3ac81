package incremental

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/hupe1980/rollup/aggregator"
	"github.com/hupe1980/rollup/codec"
	"github.com/hupe1980/rollup/granularity"
	"github.com/hupe1980/rollup/internal/compress"
	"github.com/hupe1980/rollup/internal/hash"
	"github.com/hupe1980/rollup/internal/resource"
)

// Snapshot layout:
//
//	magic "RLUP" | version u8 | codec name len u8 | codec name
//	header len u32 | header (codec-encoded snapshotHeader)
//	compressed block stream of rows:
//	    bucket i64 | dims len u32 | dims | slot bytes (RowSize)
//	CRC32C u32 over everything before it
//
// Integers are little-endian.
const (
	snapshotMagic   = "RLUP"
	snapshotVersion = 1
)

// ErrCorruptSnapshot is returned when a snapshot cannot be decoded.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

type snapshotHeader struct {
	Version     int               `json:"version"`
	ByteOrder   string            `json:"byteOrder"`
	Granularity string            `json:"granularity"`
	Rollup      bool              `json:"rollup"`
	Dimensions  DimensionsSpec    `json:"dimensionsSpec"`
	Metrics     []aggregator.Spec `json:"metrics"`
	RowSize     int               `json:"rowSize"`
	Rows        int64             `json:"rows"`
	Compression string            `json:"compression"`
}

// SnapshotOptions configures WriteSnapshot.
type SnapshotOptions struct {
	// Codec encodes the header. Defaults to codec.Default.
	Codec codec.Codec
	// Compression of the row stream. The zero value stores rows uncompressed.
	Compression compress.Type
	// BlockSize of the compressed stream. Defaults to compress.DefaultBlockSize.
	BlockSize int
	// Resource throttles IO when set.
	Resource *resource.Controller
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func orderName(ix *Index) string {
	return aggregator.ByteOrderName(ix.layout.ByteOrder())
}

// WriteSnapshot writes all rows to w and returns the number of bytes written.
// Concurrent adds may or may not be included.
func (ix *Index) WriteSnapshot(ctx context.Context, w io.Writer, opts SnapshotOptions) (int64, error) {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if len(opts.Codec.Name()) > 255 {
		return 0, fmt.Errorf("codec name %q too long", opts.Codec.Name())
	}

	var rows []rawRow
	for i := range ix.lanes {
		rows = append(rows, ix.laneRows(i)...)
	}
	slices.SortFunc(rows, func(a, b rawRow) int {
		if c := cmp.Compare(a.bucket, b.bucket); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})

	header, err := opts.Codec.Marshal(snapshotHeader{
		Version:     snapshotVersion,
		ByteOrder:   orderName(ix),
		Granularity: ix.schema.Granularity.String(),
		Rollup:      ix.schema.Rollup,
		Dimensions:  ix.schema.Dimensions,
		Metrics:     ix.layout.Specs(),
		RowSize:     ix.layout.RowSize(),
		Rows:        int64(len(rows)),
		Compression: opts.Compression.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("encode snapshot header: %w", err)
	}

	cw := &countingWriter{w: resource.NewRateLimitedWriter(ctx, w, opts.Resource)}
	crc := hash.NewCRC32C()
	out := io.MultiWriter(cw, crc)

	prefix := make([]byte, 0, 16+len(opts.Codec.Name()))
	prefix = append(prefix, snapshotMagic...)
	prefix = append(prefix, snapshotVersion, byte(len(opts.Codec.Name())))
	prefix = append(prefix, opts.Codec.Name()...)
	prefix = binary.LittleEndian.AppendUint32(prefix, uint32(len(header)))
	if _, err := out.Write(prefix); err != nil {
		return cw.n, err
	}
	if _, err := out.Write(header); err != nil {
		return cw.n, err
	}

	body := compress.NewWriter(out, opts.Compression, opts.BlockSize)
	var rec []byte
	for n, r := range rows {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return cw.n, err
			}
		}
		dims := appendDims(nil, r.dims)
		rec = binary.LittleEndian.AppendUint64(rec[:0], uint64(r.bucket))
		rec = binary.LittleEndian.AppendUint32(rec, uint32(len(dims)))
		rec = append(rec, dims...)
		rec = append(rec, r.slot...)
		if _, err := body.Write(rec); err != nil {
			return cw.n, err
		}
	}
	if err := body.Close(); err != nil {
		return cw.n, err
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc.Sum32())
	_, err = cw.Write(trailer[:])
	return cw.n, err
}

// ReadSnapshot restores an index written by WriteSnapshot. The schema and
// byte order come from the snapshot; opts configure everything else.
func ReadSnapshot(ctx context.Context, r io.Reader, opts ...Option) (*Index, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	crc := hash.NewCRC32C()
	in := io.TeeReader(resource.NewRateLimitedReader(ctx, r, o.resource), crc)

	hdr, err := readSnapshotHeader(in)
	if err != nil {
		return nil, err
	}

	order, err := aggregator.ParseByteOrder(hdr.ByteOrder)
	if err != nil {
		return nil, corrupt(err)
	}
	gran, err := granularity.Parse(hdr.Granularity)
	if err != nil {
		return nil, corrupt(err)
	}
	if _, err := compress.ParseType(hdr.Compression); err != nil {
		return nil, corrupt(err)
	}

	ix, err := New(Schema{
		Granularity: gran,
		Dimensions:  hdr.Dimensions,
		Metrics:     hdr.Metrics,
		Rollup:      hdr.Rollup,
	}, append(opts, WithByteOrder(order))...)
	if err != nil {
		return nil, corrupt(err)
	}
	if ix.layout.RowSize() != hdr.RowSize {
		_ = ix.Close()
		return nil, fmt.Errorf("%w: row size %d, snapshot has %d", ErrIncompatibleLayout, ix.layout.RowSize(), hdr.RowSize)
	}

	if err := ix.readRows(ctx, compress.NewReader(in), hdr.Rows); err != nil {
		_ = ix.Close()
		return nil, err
	}

	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		_ = ix.Close()
		return nil, corrupt(fmt.Errorf("read checksum: %w", err))
	}
	if err := hash.Verify(crc.Sum32(), binary.LittleEndian.Uint32(trailer[:])); err != nil {
		_ = ix.Close()
		return nil, corrupt(err)
	}
	return ix, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
}

func readSnapshotHeader(in io.Reader) (snapshotHeader, error) {
	var hdr snapshotHeader

	var fixed [6]byte
	if _, err := io.ReadFull(in, fixed[:]); err != nil {
		return hdr, corrupt(err)
	}
	if string(fixed[:4]) != snapshotMagic {
		return hdr, corrupt(errors.New("bad magic"))
	}
	if fixed[4] != snapshotVersion {
		return hdr, corrupt(fmt.Errorf("unsupported version %d", fixed[4]))
	}

	name := make([]byte, fixed[5])
	if _, err := io.ReadFull(in, name); err != nil {
		return hdr, corrupt(err)
	}
	c, err := codec.Lookup(string(name))
	if err != nil {
		return hdr, corrupt(err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(in, lenBuf[:]); err != nil {
		return hdr, corrupt(err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > 64<<20 {
		return hdr, corrupt(fmt.Errorf("header of %d bytes", n))
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(in, raw); err != nil {
		return hdr, corrupt(err)
	}
	if err := c.Unmarshal(raw, &hdr); err != nil {
		return hdr, corrupt(err)
	}
	if hdr.Rows < 0 || hdr.RowSize < 0 {
		return hdr, corrupt(errors.New("negative counts in header"))
	}
	return hdr, nil
}

func (ix *Index) readRows(ctx context.Context, body io.Reader, rows int64) error {
	size := ix.layout.RowSize()
	var fixed [12]byte
	slot := make([]byte, size)
	var dims []byte

	for n := range rows {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, err := io.ReadFull(body, fixed[:]); err != nil {
			return corrupt(fmt.Errorf("row %d: %w", n, err))
		}
		bucket := int64(binary.LittleEndian.Uint64(fixed[:8]))
		dl := binary.LittleEndian.Uint32(fixed[8:])
		if dl > 16<<20 {
			return corrupt(fmt.Errorf("row %d: dimensions of %d bytes", n, dl))
		}
		dims = slices.Grow(dims[:0], int(dl))[:dl]
		if _, err := io.ReadFull(body, dims); err != nil {
			return corrupt(fmt.Errorf("row %d: %w", n, err))
		}
		if _, err := io.ReadFull(body, slot); err != nil {
			return corrupt(fmt.Errorf("row %d: %w", n, err))
		}
		decoded, err := readDims(dims)
		if err != nil {
			return corrupt(fmt.Errorf("row %d: %w", n, err))
		}

		reason, err := ix.insertRaw(rawRow{bucket: bucket, dims: decoded, slot: slot})
		if err != nil {
			return corrupt(fmt.Errorf("row %d: %w", n, err))
		}
		if reason != "" {
			return &RejectedError{Reason: reason}
		}
	}
	return nil
}
