package aggregator

import (
	"encoding/binary"
	"errors"
)

// Aggregator type names.
const (
	TypeLongFirst   = "longFirst"
	TypeFloatFirst  = "floatFirst"
	TypeDoubleFirst = "doubleFirst"
	TypeLongLast    = "longLast"
	TypeFloatLast   = "floatLast"
	TypeDoubleLast  = "doubleLast"
	TypeLongSum     = "longSum"
	TypeDoubleSum   = "doubleSum"
	TypeLongMin     = "longMin"
	TypeLongMax     = "longMax"
	TypeDoubleMin   = "doubleMin"
	TypeDoubleMax   = "doubleMax"
	TypeCount       = "count"
)

var constructors = map[string]func(binary.ByteOrder) BufferAggregator{
	TypeLongFirst:   NewLongFirst,
	TypeFloatFirst:  NewFloatFirst,
	TypeDoubleFirst: NewDoubleFirst,
	TypeLongLast:    NewLongLast,
	TypeFloatLast:   NewFloatLast,
	TypeDoubleLast:  NewDoubleLast,
	TypeLongSum:     NewLongSum,
	TypeDoubleSum:   NewDoubleSum,
	TypeLongMin:     NewLongMin,
	TypeLongMax:     NewLongMax,
	TypeDoubleMin:   NewDoubleMin,
	TypeDoubleMax:   NewDoubleMax,
	TypeCount:       NewCount,
}

// Spec declares one output metric.
type Spec struct {
	// Type is one of the Type* constants.
	Type string `json:"type"`
	// Name is the output column name.
	Name string `json:"name"`
	// FieldName is the input metric read from each row. Defaults to Name.
	// Ignored by count.
	FieldName string `json:"fieldName,omitempty"`
}

// Field returns the input metric name.
func (s Spec) Field() string {
	if s.FieldName == "" {
		return s.Name
	}
	return s.FieldName
}

// Validate checks the spec without building it.
func (s Spec) Validate() error {
	if s.Name == "" {
		return errors.New("aggregator name must not be empty")
	}
	if _, ok := constructors[s.Type]; !ok {
		return &UnknownTypeError{Type: s.Type}
	}
	return nil
}

// Build returns the aggregator for this spec using the given byte order.
func (s Spec) Build(order binary.ByteOrder) (BufferAggregator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if order == nil {
		order = binary.LittleEndian
	}
	return constructors[s.Type](order), nil
}

// ReadsField reports whether the aggregator consumes an input metric.
func (s Spec) ReadsField() bool {
	return s.Type != TypeCount
}
