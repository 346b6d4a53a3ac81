package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatArena_Alloc(t *testing.T) {
	a := NewFlat(64)
	assert.Equal(t, uint64(64), a.Cap())

	off, err := a.Alloc(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), off)

	off, err = a.Alloc(16)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), off, "allocations are 8-byte aligned")
	assert.Equal(t, uint64(24), a.Used())
	assert.Equal(t, uint64(40), a.Remaining())

	_, err = a.Alloc(41)
	assert.ErrorIs(t, err, ErrArenaFull)
	assert.Equal(t, uint64(24), a.Used(), "failed allocation leaves the cursor untouched")

	off, err = a.Alloc(40)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), off)

	_, err = a.Alloc(1)
	assert.ErrorIs(t, err, ErrArenaFull)
}

func TestFlatArena_Get(t *testing.T) {
	a := NewFlat(32)
	off, err := a.Alloc(4)
	require.NoError(t, err)

	s := a.Get(off, 4)
	copy(s, []byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 3, 4}, a.Bytes()[:4])
	assert.Equal(t, 4, cap(s))
}

func TestFlatArena_FromBytes(t *testing.T) {
	buf := make([]byte, 32)
	a := NewFlatFromBytes(buf, 9)
	off, err := a.Alloc(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), off)

	assert.Equal(t, uint64(32), NewFlatFromBytes(buf, 100).Used())
}

func TestFlatArena_ConcurrentAlloc(t *testing.T) {
	const workers, perWorker, size = 8, 100, 24
	a := NewFlat(workers * perWorker * size)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				off, err := a.Alloc(size)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[off] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	_, err := a.Alloc(1)
	assert.ErrorIs(t, err, ErrArenaFull)
}
