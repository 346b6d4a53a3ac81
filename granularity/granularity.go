// Package granularity provides timestamp truncation policies used to build rollup keys.
//
// Timestamps are milliseconds since the Unix epoch (UTC). A Granularity maps every
// timestamp to the start of the bucket that contains it; rows whose truncated
// timestamps and dimensions are equal roll up into one row.
package granularity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnknown is returned by Parse for names that do not denote a granularity.
var ErrUnknown = errors.New("unknown granularity")

// Granularity truncates timestamps to bucket starts.
// Implementations must be deterministic and safe for concurrent use.
type Granularity interface {
	// Truncate returns the start of the bucket containing ms.
	Truncate(ms int64) int64
	// String returns a stable name that Parse accepts.
	String() string
}

type none struct{}

func (none) Truncate(ms int64) int64 { return ms }
func (none) String() string          { return "none" }

type all struct{}

func (all) Truncate(int64) int64 { return math.MinInt64 + 1 }
func (all) String() string       { return "all" }

// Period buckets timestamps into fixed-length periods aligned to Origin.
type Period struct {
	Length time.Duration
	Origin int64
	name   string
}

// Truncate implements Granularity.
func (p Period) Truncate(ms int64) int64 {
	step := p.Length.Milliseconds()
	if step <= 0 {
		return ms
	}
	d := ms - p.Origin
	r := d % step
	if r < 0 {
		r += step
	}
	return ms - r
}

func (p Period) String() string {
	if p.name != "" {
		return p.name
	}
	if p.Origin == 0 {
		return "period:" + p.Length.String()
	}
	return fmt.Sprintf("period:%s@%d", p.Length, p.Origin)
}

// Predefined granularities.
var (
	None          Granularity = none{}
	All           Granularity = all{}
	Second        Granularity = Period{Length: time.Second, name: "second"}
	Minute        Granularity = Period{Length: time.Minute, name: "minute"}
	FiveMinute    Granularity = Period{Length: 5 * time.Minute, name: "five_minute"}
	FifteenMinute Granularity = Period{Length: 15 * time.Minute, name: "fifteen_minute"}
	Hour          Granularity = Period{Length: time.Hour, name: "hour"}
	Day           Granularity = Period{Length: 24 * time.Hour, name: "day"}
)

var named = map[string]Granularity{
	"none":           None,
	"all":            All,
	"second":         Second,
	"minute":         Minute,
	"five_minute":    FiveMinute,
	"fifteen_minute": FifteenMinute,
	"hour":           Hour,
	"day":            Day,
}

// Parse resolves a granularity by name. Besides the predefined names it accepts
// "period:<duration>" and "period:<duration>@<originMillis>".
func Parse(name string) (Granularity, error) {
	if g, ok := named[strings.ToLower(name)]; ok {
		return g, nil
	}
	rest, ok := strings.CutPrefix(name, "period:")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	durStr, originStr, hasOrigin := strings.Cut(rest, "@")
	d, err := time.ParseDuration(durStr)
	if err != nil || d < time.Millisecond {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	p := Period{Length: d}
	if hasOrigin {
		origin, err := strconv.ParseInt(originStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
		}
		p.Origin = origin
	}
	return p, nil
}
