package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MarshalJSON implements json.Marshaler using the natural JSON rendering:
// null, numbers, strings, booleans, arrays and objects.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull, KindInvalid:
		return []byte("null"), nil
	case KindInt:
		return strconv.AppendInt(nil, v.I64, 10), nil
	case KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return nil, fmt.Errorf("metadata: unsupported float value %v", v.F64)
		}
		return strconv.AppendFloat(nil, v.F64, 'g', -1, 64), nil
	case KindString:
		return json.Marshal(v.s.Value())
	case KindBool:
		return strconv.AppendBool(nil, v.B), nil
	case KindArray:
		if v.A == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.A)
	case KindDocument:
		if v.D == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(map[string]Value(v.D))
	default:
		return nil, fmt.Errorf("metadata: unknown kind %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
//
// Integral numbers without a fraction or exponent decode as KindInt, every
// other number as KindFloat.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("metadata: empty JSON value")
	}

	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '[':
		var arr []Value
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		if arr == nil {
			arr = []Value{}
		}
		*v = Array(arr)
		return nil
	case '{':
		var doc map[string]Value
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		*v = Doc(Document(doc))
		return nil
	default:
		if !bytes.ContainsAny(data, ".eE") {
			if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
				*v = Int(i)
				return nil
			}
		}
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("metadata: invalid JSON number %q: %w", data, err)
		}
		*v = Float(f)
		return nil
	}
}

// ParseJSON decodes a JSON object into a Document.
func ParseJSON(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return d, nil
}
