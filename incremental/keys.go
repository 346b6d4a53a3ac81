package incremental

import (
	"encoding/binary"
	"strings"
)

// KeyPolicy decides which rows roll up together. Rows whose keys are equal
// are aggregated into the same row.
//
// AppendKey appends the key of (bucket, dims) to dst. bucket is the
// truncated timestamp; dims are normalized and ordered.
type KeyPolicy interface {
	AppendKey(dst []byte, bucket int64, dims []Dimension) []byte
}

// ExactKeys groups rows with byte-equal dimension values. It is the default.
type ExactKeys struct{}

// AppendKey implements KeyPolicy.
func (ExactKeys) AppendKey(dst []byte, bucket int64, dims []Dimension) []byte {
	dst = appendBucket(dst, bucket)
	return appendDims(dst, dims)
}

// CaseInsensitiveKeys groups rows whose string dimensions differ only in case.
// The first row of a group determines the stored spelling.
type CaseInsensitiveKeys struct{}

// AppendKey implements KeyPolicy.
func (CaseInsensitiveKeys) AppendKey(dst []byte, bucket int64, dims []Dimension) []byte {
	folded := make([]Dimension, len(dims))
	for i, d := range dims {
		folded[i] = Dimension{Name: d.Name, Value: foldValue(d.Value)}
	}
	dst = appendBucket(dst, bucket)
	return appendDims(dst, folded)
}

func foldValue(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(x)
	case []string:
		out := make([]string, len(x))
		for i, s := range x {
			out[i] = strings.ToLower(s)
		}
		return out
	default:
		return v
	}
}

// appendBucket writes the bucket so that byte order matches numeric order.
func appendBucket(dst []byte, bucket int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(bucket)^(1<<63))
}
