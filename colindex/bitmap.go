package colindex

import (
	"io"
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Bitmap is a set of row offsets backed by a 32-bit roaring bitmap.
type Bitmap struct {
	rb *roaring.Bitmap
}

var bitmapPool = sync.Pool{
	New: func() any {
		return &Bitmap{rb: roaring.New()}
	},
}

// NewBitmap returns an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{rb: roaring.New()}
}

// BitmapOf returns a bitmap holding rows.
func BitmapOf(rows ...uint32) *Bitmap {
	return &Bitmap{rb: roaring.BitmapOf(rows...)}
}

// Range returns the bitmap of [0, n).
func Range(n int) *Bitmap {
	b := NewBitmap()
	if n > 0 {
		b.rb.AddRange(0, uint64(n))
	}
	return b
}

// GetBitmap takes an empty scratch bitmap from the pool. Call PutBitmap when done.
func GetBitmap() *Bitmap {
	b := bitmapPool.Get().(*Bitmap)
	b.rb.Clear()
	return b
}

// PutBitmap returns a scratch bitmap to the pool.
func PutBitmap(b *Bitmap) {
	if b == nil {
		return
	}
	b.rb.Clear()
	bitmapPool.Put(b)
}

// Add adds a row.
func (b *Bitmap) Add(row uint32) {
	b.rb.Add(row)
}

// Contains reports whether row is set.
func (b *Bitmap) Contains(row uint32) bool {
	return b.rb.Contains(row)
}

// IsEmpty reports whether no row is set.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Cardinality returns the number of rows set.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone()}
}

// And keeps only rows also in other.
func (b *Bitmap) And(other *Bitmap) {
	b.rb.And(other.rb)
}

// Or adds all rows of other.
func (b *Bitmap) Or(other *Bitmap) {
	b.rb.Or(other.rb)
}

// AndNot removes all rows of other.
func (b *Bitmap) AndNot(other *Bitmap) {
	b.rb.AndNot(other.rb)
}

// Complement returns the rows of [0, n) not in b.
func (b *Bitmap) Complement(n int) *Bitmap {
	out := Range(n)
	out.AndNot(b)
	return out
}

// ToArray returns the rows in ascending order.
func (b *Bitmap) ToArray() []uint32 {
	return b.rb.ToArray()
}

// Rows iterates the rows in ascending order.
func (b *Bitmap) Rows() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// SizeInBytes returns the serialized size.
func (b *Bitmap) SizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}

// WriteTo writes the portable roaring encoding to w.
func (b *Bitmap) WriteTo(w io.Writer) (int64, error) {
	return b.rb.WriteTo(w)
}

// ReadFrom replaces b with a bitmap read from r.
func (b *Bitmap) ReadFrom(r io.Reader) (int64, error) {
	return b.rb.ReadFrom(r)
}

func union(bitmaps ...*Bitmap) *Bitmap {
	out := NewBitmap()
	for _, bm := range bitmaps {
		if bm != nil {
			out.rb.Or(bm.rb)
		}
	}
	return out
}
