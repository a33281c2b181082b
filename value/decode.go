package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wippyai/sassbridge/errors"
)

// Decode revives a serialized value. JSON null decodes to Null.
func Decode(data []byte) (Value, error) {
	return decode(data, "value")
}

// DecodeList revives a serialized value that must be a list, as custom
// function arguments are.
func DecodeList(data []byte) (*List, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	l, ok := v.(*List)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseValue, "Expected a list from libsass")
	}
	return l, nil
}

type fields struct {
	m    map[string]json.RawMessage
	typ  Type
	path string
}

func decode(data []byte, path string) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Null, nil
	}
	if data[0] != '{' {
		return nil, errors.InvalidData(errors.PhaseValue, []string{path}, "Sass value is not an object")
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.PhaseValue, errors.KindInvalidData, err, "decode value")
	}

	var typ Type
	if raw, ok := m["_type"]; !ok || json.Unmarshal(raw, &typ) != nil {
		return nil, errors.InvalidData(errors.PhaseValue, []string{path}, "Invalid _type")
	}
	f := fields{m: m, typ: typ, path: path}

	switch typ {
	case TypeBoolean:
		b, err := f.bool("_value")
		if err != nil {
			return nil, err
		}
		return NewBoolean(b), nil

	case TypeNumber:
		v, err := f.number("_value")
		if err != nil {
			return nil, err
		}
		unit, err := f.string("_unit")
		if err != nil {
			return nil, err
		}
		return NewNumber(v, unit), nil

	case TypeColor:
		var c [4]float64
		for i, name := range []string{"_r", "_g", "_b", "_a"} {
			v, err := f.number(name)
			if err != nil {
				return nil, err
			}
			c[i] = v
		}
		return &Color{r: c[0], g: c[1], b: c[2], a: c[3]}, nil

	case TypeString:
		s, err := f.string("_value")
		if err != nil {
			return nil, err
		}
		q, err := f.bool("_quoted")
		if err != nil {
			return nil, err
		}
		return &String{value: s, quoted: q}, nil

	case TypeList:
		values, err := f.values("_values")
		if err != nil {
			return nil, err
		}
		comma, err := f.bool("_separator")
		if err != nil {
			return nil, err
		}
		bracketed, err := f.bool("_isBracketed")
		if err != nil {
			return nil, err
		}
		return &List{values: values, comma: comma, bracketed: bracketed}, nil

	case TypeMap:
		keys, err := f.values("_keys")
		if err != nil {
			return nil, err
		}
		values, err := f.values("_values")
		if err != nil {
			return nil, err
		}
		if len(keys) != len(values) {
			return nil, errors.InvalidData(errors.PhaseValue, []string{path},
				fmt.Sprintf("map has %d keys and %d values", len(keys), len(values)))
		}
		return &Map{keys: keys, values: values}, nil

	case TypeError:
		msg, err := f.string("_message")
		if err != nil {
			return nil, err
		}
		return NewError(msg), nil

	case TypeWarning:
		msg, err := f.string("_message")
		if err != nil {
			return nil, err
		}
		return NewWarning(msg), nil

	default:
		return nil, errors.InvalidData(errors.PhaseValue, []string{path}, "Invalid _type")
	}
}

func (f fields) missing(name, want string) error {
	return errors.InvalidData(errors.PhaseValue, []string{f.path, name},
		fmt.Sprintf("%s.%s is missing or not a %s", f.typ, name, want))
}

func (f fields) string(name string) (string, error) {
	var s string
	raw, ok := f.m[name]
	if !ok || json.Unmarshal(raw, &s) != nil {
		return "", f.missing(name, "string")
	}
	return s, nil
}

func (f fields) bool(name string) (bool, error) {
	var b bool
	raw, ok := f.m[name]
	if !ok || json.Unmarshal(raw, &b) != nil {
		return false, f.missing(name, "bool")
	}
	return b, nil
}

func (f fields) number(name string) (float64, error) {
	var v float64
	raw, ok := f.m[name]
	if !ok || json.Unmarshal(raw, &v) != nil {
		return 0, f.missing(name, "number")
	}
	return v, nil
}

func (f fields) values(name string) ([]Value, error) {
	var raw []json.RawMessage
	r, ok := f.m[name]
	if !ok || json.Unmarshal(r, &raw) != nil || raw == nil {
		return nil, f.missing(name, "array")
	}
	out := make([]Value, len(raw))
	for i, item := range raw {
		v, err := decode(item, fmt.Sprintf("%s[%d]", name, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
