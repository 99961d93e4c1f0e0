package instance

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrValueCount = errors.New("value count does not match schema")

// Missing returns the marker stored for a missing value.
func Missing() float64 {
	return math.NaN()
}

// Instance is one record of a stream. Nominal values are label indices,
// missing values are NaN.
type Instance struct {
	schema *Schema
	values []float64
}

// New creates an instance bound to a schema. The values slice is copied.
func New(schema *Schema, values []float64) (*Instance, error) {
	if len(values) != schema.NumAttributes() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrValueCount, len(values), schema.NumAttributes())
	}
	v := make([]float64, len(values))
	copy(v, values)
	return &Instance{schema: schema, values: v}, nil
}

// MustNew is New for tests and literals; it panics on a bad value count.
func MustNew(schema *Schema, values ...float64) *Instance {
	in, err := New(schema, values)
	if err != nil {
		panic(err)
	}
	return in
}

func (in *Instance) Schema() *Schema {
	return in.schema
}

func (in *Instance) NumAttributes() int {
	return len(in.values)
}

func (in *Instance) ClassIndex() int {
	return in.schema.ClassIndex
}

func (in *Instance) NumClasses() int {
	return in.schema.NumClasses()
}

func (in *Instance) ClassAttribute() Attribute {
	return in.schema.ClassAttribute()
}

// Value returns the raw value at index i.
func (in *Instance) Value(i int) float64 {
	return in.values[i]
}

// IsMissing reports whether the value at index i is missing.
func (in *Instance) IsMissing(i int) bool {
	return math.IsNaN(in.values[i])
}

// ClassValue returns the class value (label index for a nominal class).
func (in *Instance) ClassValue() float64 {
	return in.values[in.schema.ClassIndex]
}

// ClassIsMissing reports whether the class value is missing.
func (in *Instance) ClassIsMissing() bool {
	return in.IsMissing(in.schema.ClassIndex)
}

// String renders the instance as a comma separated row.
func (in *Instance) String() string {
	parts := make([]string, len(in.values))
	for i, v := range in.values {
		a := in.schema.Attributes[i]
		switch {
		case math.IsNaN(v):
			parts[i] = "?"
		case a.IsNominal() && int(v) < len(a.Values):
			parts[i] = a.Values[int(v)]
		default:
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return strings.Join(parts, ",")
}
