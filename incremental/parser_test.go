package incremental

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rollup/aggregator"
)

func TestJSONParser_Parse(t *testing.T) {
	p := JSONParser{Metrics: []string{"added"}}

	row, err := p.Parse([]byte(`{"timestamp": 1714557600000, "page": "Home", "user": "bob", "added": 12}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1714557600000), row.Timestamp)
	assert.Equal(t, map[string]any{"page": "Home", "user": "bob"}, row.Dimensions)
	assert.Equal(t, json.Number("12"), row.Metrics["added"])
}

func TestJSONParser_DeclaredDimensions(t *testing.T) {
	p := JSONParser{
		TimestampColumn: "ts",
		TimestampFormat: TimestampISO,
		Dimensions:      []string{"page", "missing"},
		Metrics:         []string{"added", "deleted"},
	}

	row, err := p.Parse([]byte(`{"ts": "2024-05-01T10:00:00.250Z", "page": "Home", "user": "bob", "added": 1.5}`))
	require.NoError(t, err)
	want := time.Date(2024, 5, 1, 10, 0, 0, 250*int(time.Millisecond), time.UTC).UnixMilli()
	assert.Equal(t, want, row.Timestamp)
	assert.Equal(t, map[string]any{"page": "Home"}, row.Dimensions)
	assert.Equal(t, map[string]any{"added": json.Number("1.5")}, row.Metrics)
}

func TestJSONParser_Timestamps(t *testing.T) {
	tests := []struct {
		format string
		value  string
		want   int64
	}{
		{TimestampMillis, `1000`, 1000},
		{TimestampMillis, `"2000"`, 2000},
		{TimestampAuto, `3000`, 3000},
		{TimestampAuto, `"1970-01-01T00:00:04Z"`, 4000},
		{"", `5000.7`, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.format+" "+tt.value, func(t *testing.T) {
			row, err := JSONParser{TimestampFormat: tt.format}.Parse([]byte(`{"timestamp": ` + tt.value + `}`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, row.Timestamp)
		})
	}
}

func TestJSONParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		parser  JSONParser
		raw     string
		columns []string
	}{
		{"invalid json", JSONParser{}, `{"timestamp": 1,`, nil},
		{"not an object", JSONParser{}, `null`, nil},
		{"missing timestamp", JSONParser{}, `{"page": "a"}`, []string{"timestamp"}},
		{"bad iso", JSONParser{TimestampFormat: TimestampISO}, `{"timestamp": 17}`, []string{"timestamp"}},
		{"bad millis", JSONParser{TimestampFormat: TimestampMillis}, `{"timestamp": "yesterday"}`, []string{"timestamp"}},
		{"bad auto", JSONParser{}, `{"timestamp": true}`, []string{"timestamp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parser.Parse([]byte(tt.raw))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.columns, pe.Columns)
		})
	}
}

func TestJSONParser_FragmentIsBounded(t *testing.T) {
	raw := make([]byte, 500)
	for i := range raw {
		raw[i] = 'x'
	}
	_, err := JSONParser{}.Parse(raw)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.LessOrEqual(t, len(pe.Detail), len("invalid JSON: ")+maxFragment+3)
}

func TestJSONParser_FeedsIndex(t *testing.T) {
	ix := newIndex(t, pageSchema())
	p := JSONParser{Dimensions: []string{"page"}, Metrics: []string{"v"}}

	for _, line := range []string{
		`{"timestamp": 1714557650000, "page": "a", "v": 7}`,
		`{"timestamp": 1714557600000, "page": "a", "v": "8"}`,
		`{"timestamp": 1714557600000, "page": "b", "v": "eight"}`,
	} {
		row, err := p.Parse([]byte(line))
		require.NoError(t, err)
		ix.Add(row)
	}

	assert.Equal(t, 1, ix.RowCount())
	rows := collect(ix)
	assert.Equal(t, aggregator.Pair{Time: 1714557600000, Value: int64(8)}, rows[0].Metrics["first"])
}
