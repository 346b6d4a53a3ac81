package testutil

import (
	"fmt"
	"maps"
	"math"
	"math/rand"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s; s=1.5 gives a heavy tail where few values dominate.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform over the harmonic weights.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Event is one generated input event.
type Event struct {
	// Timestamp is in milliseconds since the Unix epoch.
	Timestamp  int64
	Dimensions map[string]any
	Metrics    map[string]any
}

// EventConfig controls Events.
type EventConfig struct {
	// Start is the timestamp of the first event.
	Start int64
	// MaxStep is the largest gap between consecutive events. Zero keeps
	// every event at Start.
	MaxStep int64
	// Dimensions are string dimensions with values "<name>-<k>".
	Dimensions []string
	// Cardinality is the number of distinct values per dimension. Defaults to 10.
	Cardinality int
	// Skew is the Zipf exponent of dimension values. Zero is uniform.
	Skew float64
	// Metrics are integer metrics in [0, 1000).
	Metrics []string
	// NullRate is the probability that a dimension or metric is omitted.
	NullRate float64
}

// Events generates n events with non-decreasing timestamps.
func (r *RNG) Events(n int, cfg EventConfig) []Event {
	if cfg.Cardinality <= 0 {
		cfg.Cardinality = 10
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]Event, n)
	ts := cfg.Start
	for i := range n {
		if i > 0 && cfg.MaxStep > 0 {
			ts += r.rand.Int63n(cfg.MaxStep + 1)
		}
		e := Event{
			Timestamp:  ts,
			Dimensions: make(map[string]any, len(cfg.Dimensions)),
			Metrics:    make(map[string]any, len(cfg.Metrics)),
		}
		for _, d := range cfg.Dimensions {
			if r.rand.Float64() < cfg.NullRate {
				continue
			}
			var k int
			if cfg.Skew > 0 {
				k = r.zipfLocked(cfg.Cardinality, cfg.Skew)
			} else {
				k = r.rand.Intn(cfg.Cardinality)
			}
			e.Dimensions[d] = fmt.Sprintf("%s-%d", d, k)
		}
		for _, m := range cfg.Metrics {
			if r.rand.Float64() < cfg.NullRate {
				continue
			}
			e.Metrics[m] = r.rand.Int63n(1000)
		}
		events[i] = e
	}

	return events
}

// Point returns a random coordinate inside the given box, in degrees.
func (r *RNG) Point(minLat, minLon, maxLat, maxLon float64) (float64, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return minLat + r.rand.Float64()*(maxLat-minLat), minLon + r.rand.Float64()*(maxLon-minLon)
}

// Shuffle returns a shuffled copy of events.
func (r *RNG) Shuffle(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	return out
}

// Partition deals events round-robin into n slices.
func Partition(events []Event, n int) [][]Event {
	parts := make([][]Event, n)
	for i, e := range events {
		parts[i%n] = append(parts[i%n], e)
	}
	return parts
}

// JSONLines encodes events as flat JSON objects with the timestamp stored
// under timeColumn.
func JSONLines(events []Event, timeColumn string) ([][]byte, error) {
	lines := make([][]byte, len(events))
	for i, e := range events {
		obj := make(map[string]any, 1+len(e.Dimensions)+len(e.Metrics))
		maps.Copy(obj, e.Dimensions)
		maps.Copy(obj, e.Metrics)
		obj[timeColumn] = e.Timestamp

		line, err := gojson.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("testutil: event %d: %w", i, err)
		}
		lines[i] = line
	}
	return lines, nil
}
