package instance

import (
	"errors"
	"fmt"
)

// AttributeType is the declared type of an attribute.
type AttributeType int

const (
	// Numeric attributes hold real values.
	Numeric AttributeType = iota
	// Nominal attributes hold the index of one of a fixed set of labels.
	Nominal
)

// String returns string representation of the attribute type.
func (t AttributeType) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Nominal:
		return "nominal"
	default:
		return "unknown"
	}
}

var (
	ErrNoAttributes      = errors.New("schema has no attributes")
	ErrClassIndex        = errors.New("class index out of range")
	ErrNominalWithoutSet = errors.New("nominal attribute has no labels")
)

// Attribute describes one column of an instance.
type Attribute struct {
	Name   string
	Type   AttributeType
	Values []string // labels, nominal only
}

// IsNumeric reports whether the attribute is numeric.
func (a Attribute) IsNumeric() bool {
	return a.Type == Numeric
}

// IsNominal reports whether the attribute is nominal.
func (a Attribute) IsNominal() bool {
	return a.Type == Nominal
}

// NumValues returns the number of labels of a nominal attribute, 0 otherwise.
func (a Attribute) NumValues() int {
	if a.Type != Nominal {
		return 0
	}
	return len(a.Values)
}

// IndexOf returns the index of a nominal label or -1.
func (a Attribute) IndexOf(label string) int {
	for i, v := range a.Values {
		if v == label {
			return i
		}
	}
	return -1
}

// Schema is the shared header of a stream of instances.
type Schema struct {
	Relation   string
	Attributes []Attribute
	ClassIndex int
}

// NewSchema creates a validated schema.
func NewSchema(relation string, attrs []Attribute, classIndex int) (*Schema, error) {
	if len(attrs) == 0 {
		return nil, ErrNoAttributes
	}
	if classIndex < 0 || classIndex >= len(attrs) {
		return nil, fmt.Errorf("%w: %d (attributes: %d)", ErrClassIndex, classIndex, len(attrs))
	}
	for _, a := range attrs {
		if a.Type == Nominal && len(a.Values) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNominalWithoutSet, a.Name)
		}
	}
	return &Schema{
		Relation:   relation,
		Attributes: attrs,
		ClassIndex: classIndex,
	}, nil
}

// NumAttributes returns the number of attributes including the class.
func (s *Schema) NumAttributes() int {
	return len(s.Attributes)
}

// Attribute returns the attribute at index i.
func (s *Schema) Attribute(i int) Attribute {
	return s.Attributes[i]
}

// ClassAttribute returns the designated class attribute.
func (s *Schema) ClassAttribute() Attribute {
	return s.Attributes[s.ClassIndex]
}

// NumClasses returns the number of class labels for a nominal class and 1 otherwise.
func (s *Schema) NumClasses() int {
	c := s.ClassAttribute()
	if c.IsNominal() {
		return c.NumValues()
	}
	return 1
}

// WithClassIndex returns a copy of the schema with a different class attribute.
func (s *Schema) WithClassIndex(classIndex int) (*Schema, error) {
	return NewSchema(s.Relation, s.Attributes, classIndex)
}

// Compatible reports whether two schemas describe the same columns.
func (s *Schema) Compatible(other *Schema) bool {
	if s == other {
		return true
	}
	if other == nil || s.ClassIndex != other.ClassIndex || len(s.Attributes) != len(other.Attributes) {
		return false
	}
	for i, a := range s.Attributes {
		b := other.Attributes[i]
		if a.Type != b.Type || a.NumValues() != b.NumValues() {
			return false
		}
	}
	return true
}
