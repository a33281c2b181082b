package value

import (
	"encoding/json"
	"strconv"

	"github.com/wippyai/sassbridge/errors"
)

// Type is the wire tag of a value.
type Type string

const (
	TypeBoolean Type = "boolean"
	TypeNumber  Type = "number"
	TypeColor   Type = "color"
	TypeString  Type = "string"
	TypeList    Type = "list"
	TypeMap     Type = "map"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeNull    Type = "null"
)

// Value is a Sass value. The set of implementations is closed.
type Value interface {
	json.Marshaler
	Type() Type
	sealed()
}

// Boolean is one of True or False.
type Boolean struct {
	v bool
}

var (
	True  = &Boolean{v: true}
	False = &Boolean{v: false}
)

// NewBoolean returns True or False.
func NewBoolean(b bool) *Boolean {
	if b {
		return True
	}
	return False
}

func (*Boolean) Type() Type    { return TypeBoolean }
func (*Boolean) sealed()       {}
func (b *Boolean) Value() bool { return b.v }

func (b *Boolean) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  Type `json:"_type"`
		Value bool `json:"_value"`
	}{TypeBoolean, b.v})
}

// Number is a number with an optional unit.
type Number struct {
	unit  string
	value float64
}

func NewNumber(v float64, unit string) *Number {
	return &Number{value: v, unit: unit}
}

func (*Number) Type() Type { return TypeNumber }
func (*Number) sealed()    {}

func (n *Number) Value() float64     { return n.value }
func (n *Number) SetValue(v float64) { n.value = v }
func (n *Number) Unit() string       { return n.unit }
func (n *Number) SetUnit(u string)   { n.unit = u }

func (n *Number) String() string {
	return strconv.FormatFloat(n.value, 'g', -1, 64) + n.unit
}

func (n *Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  Type    `json:"_type"`
		Value float64 `json:"_value"`
		Unit  string  `json:"_unit"`
	}{TypeNumber, n.value, n.unit})
}

// Color is an RGBA color. Channels are 0-255, alpha is 0-1.
type Color struct {
	r, g, b, a float64
}

// NewColor builds a color from 0, 1, 3 or 4 components. No components give
// opaque black, one is an ARGB integer, three are RGB with alpha 1 and four
// are RGBA.
func NewColor(c ...float64) (*Color, error) {
	switch len(c) {
	case 0:
		return &Color{a: 1}, nil
	case 1:
		argb := uint32(int64(c[0]))
		return &Color{
			a: float64((argb>>24)&0xff) / 0xff,
			r: float64((argb >> 16) & 0xff),
			g: float64((argb >> 8) & 0xff),
			b: float64(argb & 0xff),
		}, nil
	case 3:
		return &Color{r: c[0], g: c[1], b: c[2], a: 1}, nil
	case 4:
		return &Color{r: c[0], g: c[1], b: c[2], a: c[3]}, nil
	default:
		return nil, errors.InvalidInput(errors.PhaseValue, "Color should be constructed with 0, 1, 3 or 4 arguments")
	}
}

func (*Color) Type() Type { return TypeColor }
func (*Color) sealed()    {}

func (c *Color) R() float64     { return c.r }
func (c *Color) G() float64     { return c.g }
func (c *Color) B() float64     { return c.b }
func (c *Color) A() float64     { return c.a }
func (c *Color) SetR(v float64) { c.r = v }
func (c *Color) SetG(v float64) { c.g = v }
func (c *Color) SetB(v float64) { c.b = v }
func (c *Color) SetA(v float64) { c.a = v }

func (c *Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Type    `json:"_type"`
		R    float64 `json:"_r"`
		G    float64 `json:"_g"`
		B    float64 `json:"_b"`
		A    float64 `json:"_a"`
	}{TypeColor, c.r, c.g, c.b, c.a})
}

// String is a Sass string. New strings are unquoted.
type String struct {
	value  string
	quoted bool
}

func NewString(s string) *String {
	return &String{value: s}
}

func (*String) Type() Type { return TypeString }
func (*String) sealed()    {}

func (s *String) Value() string     { return s.value }
func (s *String) SetValue(v string) { s.value = v }
func (s *String) Quoted() bool      { return s.quoted }
func (s *String) SetQuoted(q bool)  { s.quoted = q }

func (s *String) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   Type   `json:"_type"`
		Value  string `json:"_value"`
		Quoted bool   `json:"_quoted"`
	}{TypeString, s.value, s.quoted})
}

// List is a fixed-length list. Entries start out as Null.
type List struct {
	values    []Value
	comma     bool
	bracketed bool
}

func NewList(length int, comma bool) *List {
	return &List{values: nulls(length), comma: comma}
}

func (*List) Type() Type { return TypeList }
func (*List) sealed()    {}

func (l *List) Len() int            { return len(l.values) }
func (l *List) Value(i int) Value   { return l.values[i] }
func (l *List) Comma() bool         { return l.comma }
func (l *List) SetComma(c bool)     { l.comma = c }
func (l *List) Bracketed() bool     { return l.bracketed }
func (l *List) SetBracketed(b bool) { l.bracketed = b }
func (l *List) SetValue(i int, v Value) error {
	return setItem(l.values, "list", i, v)
}

// Values returns the entries. The slice must not be modified.
func (l *List) Values() []Value {
	return l.values
}

func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      Type    `json:"_type"`
		Values    []Value `json:"_values"`
		Separator bool    `json:"_separator"`
		Bracketed bool    `json:"_isBracketed"`
	}{TypeList, l.values, l.comma, l.bracketed})
}

// Map is a fixed-length ordered map. Keys and values start out as Null.
type Map struct {
	keys   []Value
	values []Value
}

func NewMap(length int) *Map {
	return &Map{keys: nulls(length), values: nulls(length)}
}

func (*Map) Type() Type { return TypeMap }
func (*Map) sealed()    {}

func (m *Map) Len() int          { return len(m.values) }
func (m *Map) Key(i int) Value   { return m.keys[i] }
func (m *Map) Value(i int) Value { return m.values[i] }
func (m *Map) SetKey(i int, v Value) error {
	return setItem(m.keys, "map key", i, v)
}
func (m *Map) SetValue(i int, v Value) error {
	return setItem(m.values, "map value", i, v)
}

func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   Type    `json:"_type"`
		Keys   []Value `json:"_keys"`
		Values []Value `json:"_values"`
	}{TypeMap, m.keys, m.values})
}

// Error makes the enclosing function call fail with Message.
type Error struct {
	Message string
}

func NewError(msg string) *Error { return &Error{Message: msg} }

func (*Error) Type() Type { return TypeError }
func (*Error) sealed()    {}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    Type   `json:"_type"`
		Message string `json:"_message"`
	}{TypeError, e.Message})
}

// Warning emits Message as a compiler warning.
type Warning struct {
	Message string
}

func NewWarning(msg string) *Warning { return &Warning{Message: msg} }

func (*Warning) Type() Type { return TypeWarning }
func (*Warning) sealed()    {}

func (w *Warning) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    Type   `json:"_type"`
		Message string `json:"_message"`
	}{TypeWarning, w.Message})
}

type null struct{}

// Null is the only null value. It encodes as JSON null.
var Null Value = null{}

func (null) Type() Type                   { return TypeNull }
func (null) sealed()                      {}
func (null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Encode serializes v. A nil v encodes as Null.
func Encode(v Value) ([]byte, error) {
	if v == nil {
		v = Null
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseValue, errors.KindInvalidData, err, "encode value")
	}
	return b, nil
}

func nulls(n int) []Value {
	if n < 0 {
		n = 0
	}
	out := make([]Value, n)
	for i := range out {
		out[i] = Null
	}
	return out
}

// setItem stores v at index i. A nil v is stored as Null.
func setItem(items []Value, what string, i int, v Value) error {
	if i < 0 || i >= len(items) {
		return errors.OutOfBounds(errors.PhaseValue, []string{what}, i, len(items))
	}
	if v == nil {
		v = Null
	}
	items[i] = v
	return nil
}
