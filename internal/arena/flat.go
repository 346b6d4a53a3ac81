package arena

import (
	"errors"
	"sync/atomic"
)

// ErrArenaFull is returned when an allocation does not fit into the remaining space.
var ErrArenaFull = errors.New("arena is full")

// Alignment of every allocation.
const Alignment = 8

// FlatArena is a fixed-capacity contiguous byte region addressed by offsets.
type FlatArena struct {
	buf []byte
	ptr atomic.Uint64
}

// NewFlat creates a zeroed arena of size bytes.
func NewFlat(size int) *FlatArena {
	if size < 0 {
		size = 0
	}
	return &FlatArena{buf: make([]byte, size)}
}

// NewFlatFromBytes wraps buf; the first used bytes are considered allocated.
func NewFlatFromBytes(buf []byte, used uint64) *FlatArena {
	a := &FlatArena{buf: buf}
	a.ptr.Store(min(used, uint64(len(buf))))
	return a
}

// Alloc reserves size bytes and returns the offset of the reservation.
func (a *FlatArena) Alloc(size uint64) (uint64, error) {
	for {
		cur := a.ptr.Load()
		start := (cur + Alignment - 1) &^ (Alignment - 1)
		next := start + size
		if next > uint64(len(a.buf)) || next < start {
			return 0, ErrArenaFull
		}
		if a.ptr.CompareAndSwap(cur, next) {
			return start, nil
		}
	}
}

// Bytes returns the whole region. Offsets returned by Alloc index into it.
func (a *FlatArena) Bytes() []byte {
	return a.buf
}

// Get returns the allocation at offset.
func (a *FlatArena) Get(offset, size uint64) []byte {
	return a.buf[offset : offset+size : offset+size]
}

// Used returns the number of bytes handed out, including alignment padding.
func (a *FlatArena) Used() uint64 {
	return a.ptr.Load()
}

// Cap returns the total capacity.
func (a *FlatArena) Cap() uint64 {
	return uint64(len(a.buf))
}

// Remaining returns the bytes still available before alignment.
func (a *FlatArena) Remaining() uint64 {
	return a.Cap() - a.Used()
}
