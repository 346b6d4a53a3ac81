package testutil

import (
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents(t *testing.T) {
	rng := NewRNG(4711)

	events := rng.Events(200, EventConfig{
		Start:       1_000,
		MaxStep:     50,
		Dimensions:  []string{"page", "country"},
		Cardinality: 5,
		Metrics:     []string{"bytes"},
	})

	require.Len(t, events, 200)
	assert.Equal(t, int64(1_000), events[0].Timestamp)
	for i, e := range events {
		if i > 0 {
			assert.GreaterOrEqual(t, e.Timestamp, events[i-1].Timestamp)
			assert.LessOrEqual(t, e.Timestamp-events[i-1].Timestamp, int64(50))
		}
		assert.Len(t, e.Dimensions, 2)
		assert.Contains(t, []any{"page-0", "page-1", "page-2", "page-3", "page-4"}, e.Dimensions["page"])
		b, ok := e.Metrics["bytes"].(int64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, b, int64(0))
		assert.Less(t, b, int64(1000))
	}
}

func TestEvents_NullRate(t *testing.T) {
	rng := NewRNG(7)

	events := rng.Events(1000, EventConfig{Dimensions: []string{"d"}, Metrics: []string{"m"}, NullRate: 0.5})

	missing := 0
	for _, e := range events {
		if _, ok := e.Dimensions["d"]; !ok {
			missing++
		}
		assert.Zero(t, e.Timestamp)
	}
	assert.InDelta(t, 500, missing, 100)
}

func TestEvents_Skew(t *testing.T) {
	rng := NewRNG(42)

	events := rng.Events(5000, EventConfig{Dimensions: []string{"d"}, Cardinality: 100, Skew: 1.5})

	counts := map[any]int{}
	for _, e := range events {
		counts[e.Dimensions["d"]]++
	}
	assert.Greater(t, counts["d-0"], 5000/10, "head value should dominate")
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	cfg := EventConfig{MaxStep: 10, Dimensions: []string{"a"}, Metrics: []string{"m"}}
	e1 := rng.Events(10, cfg)

	rng.Reset()
	e2 := rng.Events(10, cfg)

	assert.Equal(t, e1, e2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipf(t *testing.T) {
	rng := NewRNG(1)
	for range 100 {
		v := rng.Zipf(10, 1.2)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
	}
	assert.Equal(t, 0, rng.Zipf(1, 1.2))
}

func TestShuffleAndPartition(t *testing.T) {
	rng := NewRNG(3)
	events := rng.Events(10, EventConfig{MaxStep: 5, Metrics: []string{"m"}})

	shuffled := rng.Shuffle(events)
	assert.ElementsMatch(t, events, shuffled)

	parts := Partition(shuffled, 3)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 4)
	assert.Len(t, parts[1], 3)
	assert.Len(t, parts[2], 3)
}

func TestPoint(t *testing.T) {
	rng := NewRNG(9)
	for range 50 {
		lat, lon := rng.Point(10, 20, 11, 22)
		assert.True(t, lat >= 10 && lat < 11)
		assert.True(t, lon >= 20 && lon < 22)
	}
}

func TestJSONLines(t *testing.T) {
	events := []Event{{
		Timestamp:  1714557600000,
		Dimensions: map[string]any{"page": "home"},
		Metrics:    map[string]any{"bytes": int64(12)},
	}}

	lines, err := JSONLines(events, "ts")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	var got map[string]any
	require.NoError(t, gojson.Unmarshal(lines[0], &got))
	assert.Equal(t, map[string]any{"ts": 1714557600000.0, "page": "home", "bytes": 12.0}, got)
}
