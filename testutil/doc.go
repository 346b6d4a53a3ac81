// Package testutil provides testing utilities for rollup.
//
// This package is intended for use in tests and benchmarks only.
// It generates deterministic input events with controllable cardinality,
// skew and null rates.
//
// # Random Events
//
//	rng := testutil.NewRNG(seed)
//	events := rng.Events(1000, testutil.EventConfig{
//		Start:      t0,
//		MaxStep:    1000,
//		Dimensions: []string{"page", "country"},
//		Metrics:    []string{"bytes"},
//		Skew:       1.5,
//	})
//
// # Partitions and JSON
//
//	parts := testutil.Partition(rng.Shuffle(events), 4)
//	lines, err := testutil.JSONLines(events, "timestamp")
package testutil
