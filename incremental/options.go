package incremental

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/rollup/internal/resource"
)

// DefaultArenaBytes is the aggregation buffer size when neither WithArenaBytes
// nor WithMaxRows bounds it.
const DefaultArenaBytes = 16 << 20

type options struct {
	shards       int
	maxRows      int
	arenaBytes   int
	order        binary.ByteOrder
	resource     *resource.Controller
	minTimestamp int64
	maxTimestamp int64
	keys         KeyPolicy
}

func defaultOptions() options {
	return options{
		shards:       16,
		order:        binary.LittleEndian,
		minTimestamp: math.MinInt64,
		maxTimestamp: math.MaxInt64,
		keys:         ExactKeys{},
	}
}

// Option configures an Index.
type Option func(*options)

// WithShards sets the number of write lanes. Each lane has its own lock.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithMaxRows caps the number of distinct rows. Adds that would create a row
// beyond the cap are rejected.
func WithMaxRows(n int) Option {
	return func(o *options) {
		o.maxRows = n
	}
}

// WithArenaBytes sets the size of the pre-allocated aggregation buffer.
func WithArenaBytes(n int) Option {
	return func(o *options) {
		o.arenaBytes = n
	}
}

// WithByteOrder sets the slot byte order. Indexes can only be folded into
// each other when their byte orders match.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(o *options) {
		if order != nil {
			o.order = order
		}
	}
}

// WithResourceController charges row memory against rc's memory budget.
// Fold also uses its background worker slots.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithTimestampWindow rejects rows with timestamps outside [minTs, maxTs).
func WithTimestampWindow(minTs, maxTs int64) Option {
	return func(o *options) {
		o.minTimestamp = minTs
		o.maxTimestamp = maxTs
	}
}

// WithKeyPolicy replaces the grouping key policy.
func WithKeyPolicy(p KeyPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.keys = p
		}
	}
}
