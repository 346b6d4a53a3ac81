package resource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.ReserveMemory(60))
	require.NoError(t, c.ReserveMemory(40))
	assert.Equal(t, int64(100), c.MemoryUsage())

	err := c.ReserveMemory(1)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(100), c.MemoryUsage(), "failed reservation is not counted")

	c.ReleaseMemory(30)
	require.NoError(t, c.ReserveMemory(25))
	assert.Equal(t, int64(95), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.ReserveMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	c.ReleaseMemory(1 << 40)
	assert.Zero(t, c.MemoryUsage())
}

func TestController_NilIsNoop(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.ReserveMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
	assert.NoError(t, c.AcquireBackground(t.Context()))
	c.ReleaseBackground()
	assert.NoError(t, c.AcquireIO(t.Context(), 1<<20))
	assert.NoError(t, c.RunBackground(t.Context(), func(context.Context) error { return nil }))
}

func TestController_RunBackground(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	var running, peak atomic.Int32
	job := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	require.NoError(t, c.RunBackground(t.Context(), job, job, job, job, job))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestController_RunBackgroundError(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 4})
	boom := errors.New("boom")

	err := c.RunBackground(t.Context(),
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestController_IOLimit(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})

	// The first burst is free, a request larger than the burst is split.
	require.NoError(t, c.AcquireIO(t.Context(), 1000))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err := c.AcquireIO(ctx, 1500)
	assert.Error(t, err)
}

func TestRateLimitedWriterReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(t.Context(), &buf, c)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	r := NewRateLimitedReader(t.Context(), &buf, c)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}
