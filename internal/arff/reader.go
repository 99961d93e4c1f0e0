// Package arff reads streams in the Attribute-Relation File Format.
package arff

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/haskel/kstar/internal/instance"
)

const maxLineBytes = 16 * 1024 * 1024

var (
	ErrNoData            = errors.New("missing @data section")
	ErrUnsupportedType   = errors.New("unsupported attribute type")
	ErrSparseData        = errors.New("sparse data rows are not supported")
	ErrUnterminatedQuote = errors.New("unterminated quote")
	ErrMalformed         = errors.New("malformed line")
)

// Reader parses the header eagerly and yields data rows one at a time.
type Reader struct {
	sc     *bufio.Scanner
	line   int
	schema *instance.Schema
}

// NewReader reads the header up to and including @data. The class
// attribute defaults to the last one.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	rd := &Reader{sc: sc}
	if err := rd.readHeader(); err != nil {
		return nil, err
	}
	return rd, nil
}

// Schema returns the parsed header.
func (r *Reader) Schema() *instance.Schema {
	return r.schema
}

// SetClassIndex selects the class attribute. Negative values count from
// the end, so -1 is the last attribute.
func (r *Reader) SetClassIndex(i int) error {
	if i < 0 {
		i += r.schema.NumAttributes()
	}
	s, err := r.schema.WithClassIndex(i)
	if err != nil {
		return err
	}
	r.schema = s
	return nil
}

// Next returns the next data row, or io.EOF after the last one.
func (r *Reader) Next() (*instance.Instance, error) {
	text, ok, err := r.nextLine()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	return r.parseRow(text)
}

// ReadAll returns every remaining row.
func (r *Reader) ReadAll() ([]*instance.Instance, error) {
	var out []*instance.Instance
	for {
		in, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, in)
	}
}

// nextLine returns the next line that is neither blank nor a comment.
func (r *Reader) nextLine() (string, bool, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		return text, true, nil
	}
	if err := r.sc.Err(); err != nil {
		return "", false, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	return "", false, nil
}

func (r *Reader) readHeader() error {
	relation := ""
	var attrs []instance.Attribute

	for {
		text, ok, err := r.nextLine()
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoData
		}

		keyword, rest := splitKeyword(text)
		switch strings.ToLower(keyword) {
		case "@relation":
			name, _, err := splitName(rest)
			if err != nil {
				return r.errorf(err)
			}
			relation = name
		case "@attribute":
			a, err := parseAttribute(rest)
			if err != nil {
				return r.errorf(err)
			}
			attrs = append(attrs, a)
		case "@data":
			s, err := instance.NewSchema(relation, attrs, len(attrs)-1)
			if err != nil {
				return r.errorf(err)
			}
			r.schema = s
			return nil
		default:
			return r.errorf(fmt.Errorf("%w: unexpected %q in header", ErrMalformed, keyword))
		}
	}
}

func (r *Reader) parseRow(text string) (*instance.Instance, error) {
	if strings.HasPrefix(text, "{") {
		return nil, r.errorf(ErrSparseData)
	}

	fields, err := splitFields(text)
	if err != nil {
		return nil, r.errorf(err)
	}
	if len(fields) != r.schema.NumAttributes() {
		return nil, r.errorf(fmt.Errorf("%w: got %d values, want %d",
			instance.ErrValueCount, len(fields), r.schema.NumAttributes()))
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseValue(r.schema.Attribute(i), f)
		if err != nil {
			return nil, r.errorf(err)
		}
		values[i] = v
	}
	return instance.New(r.schema, values)
}

func (r *Reader) errorf(err error) error {
	return fmt.Errorf("line %d: %w", r.line, err)
}

// parseValue converts one data field. Only an unquoted ? marks a missing
// value; '?' is the literal label.
func parseValue(a instance.Attribute, f field) (float64, error) {
	if f.text == "?" && !f.quoted {
		return instance.Missing(), nil
	}
	if a.IsNominal() {
		idx := a.IndexOf(f.text)
		if idx < 0 {
			return 0, fmt.Errorf("%w: unknown label %q for attribute %q", ErrMalformed, f.text, a.Name)
		}
		return float64(idx), nil
	}
	v, err := strconv.ParseFloat(f.text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %q: %w", ErrMalformed, a.Name, err)
	}
	return v, nil
}

func parseAttribute(rest string) (instance.Attribute, error) {
	name, typ, err := splitName(rest)
	if err != nil {
		return instance.Attribute{}, err
	}
	typ = strings.TrimSpace(typ)

	if strings.HasPrefix(typ, "{") {
		end := strings.LastIndex(typ, "}")
		if end < 0 {
			return instance.Attribute{}, fmt.Errorf("%w: unclosed label set for %q", ErrMalformed, name)
		}
		fields, err := splitFields(typ[1:end])
		if err != nil {
			return instance.Attribute{}, err
		}
		labels := make([]string, len(fields))
		for i, f := range fields {
			labels[i] = f.text
		}
		return instance.Attribute{Name: name, Type: instance.Nominal, Values: labels}, nil
	}

	switch strings.ToLower(typ) {
	case "numeric", "real", "integer":
		return instance.Attribute{Name: name, Type: instance.Numeric}, nil
	}
	return instance.Attribute{}, fmt.Errorf("%w: %q for attribute %q", ErrUnsupportedType, typ, name)
}

func splitKeyword(text string) (string, string) {
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// splitName reads a possibly quoted name and returns it with the remainder.
func splitName(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("%w: missing name", ErrMalformed)
	}
	if q := s[0]; q == '\'' || q == '"' {
		end := strings.IndexByte(s[1:], q)
		if end < 0 {
			return "", "", ErrUnterminatedQuote
		}
		return s[1 : end+1], s[end+2:], nil
	}
	i := strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '{' })
	if i < 0 {
		return s, "", nil
	}
	return s[:i], s[i:], nil
}

// field is one comma separated value; quoted records whether any part of it
// was inside quotes.
type field struct {
	text   string
	quoted bool
}

// splitFields splits a comma separated list, honoring single and double
// quotes and backslash escapes inside quotes.
func splitFields(s string) ([]field, error) {
	var (
		fields  []field
		b       strings.Builder
		quote   rune
		quoted  bool
		escaped bool
	)
	for _, ch := range s {
		switch {
		case escaped:
			b.WriteRune(ch)
			escaped = false
		case quote != 0:
			switch ch {
			case '\\':
				escaped = true
			case quote:
				quote = 0
			default:
				b.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			quoted = true
		case ch == ',':
			fields = append(fields, field{text: strings.TrimSpace(b.String()), quoted: quoted})
			b.Reset()
			quoted = false
		default:
			b.WriteRune(ch)
		}
	}
	if quote != 0 {
		return nil, ErrUnterminatedQuote
	}
	return append(fields, field{text: strings.TrimSpace(b.String()), quoted: quoted}), nil
}
