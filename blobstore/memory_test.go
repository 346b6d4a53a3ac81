package blobstore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	src := []byte("abc")
	require.NoError(t, store.Put(ctx, "x/1", src))
	src[0] = 'z'

	w, err := store.Create(ctx, "x/2")
	require.NoError(t, err)
	_, err = w.Write([]byte("defg"))
	require.NoError(t, err)

	_, err = store.Open(ctx, "x/2")
	require.ErrorIs(t, err, ErrNotFound, "blob is invisible until Close")
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/1", "x/2"}, names)

	data, err := Get(ctx, store, "x/1")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	b, err := store.Open(ctx, "x/2")
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := b.ReadAt(ctx, buf, 2)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 1, 100)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "efg", string(got))

	require.NoError(t, store.Delete(ctx, "x/1"))
	_, err = store.Open(ctx, "x/1")
	assert.ErrorIs(t, err, ErrNotFound)
}
