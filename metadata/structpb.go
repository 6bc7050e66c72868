package metadata

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// FromStruct converts a protobuf Struct, the metadata type of the wire
// contract, into a Document. Integral numbers become KindInt.
func FromStruct(s *structpb.Struct) Document {
	if s == nil {
		return nil
	}
	d := make(Document, len(s.GetFields()))
	for k, v := range s.GetFields() {
		d[k] = FromProtoValue(v)
	}
	return d
}

// FromProtoValue converts a protobuf Value into a Value.
func FromProtoValue(v *structpb.Value) Value {
	switch x := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return Number(x.NumberValue)
	case *structpb.Value_StringValue:
		return String(x.StringValue)
	case *structpb.Value_BoolValue:
		return Bool(x.BoolValue)
	case *structpb.Value_ListValue:
		items := x.ListValue.GetValues()
		arr := make([]Value, len(items))
		for i := range items {
			arr[i] = FromProtoValue(items[i])
		}
		return Array(arr)
	case *structpb.Value_StructValue:
		return Doc(FromStruct(x.StructValue))
	default:
		return Null()
	}
}

// ToStruct converts a Document into a protobuf Struct.
func ToStruct(d Document) (*structpb.Struct, error) {
	if d == nil {
		return nil, nil
	}
	fields := make(map[string]*structpb.Value, len(d))
	for k, v := range d {
		pv, err := ToProtoValue(v)
		if err != nil {
			return nil, fmt.Errorf("metadata field %q: %w", k, err)
		}
		fields[k] = pv
	}
	return &structpb.Struct{Fields: fields}, nil
}

// ToProtoValue converts a Value into a protobuf Value.
func ToProtoValue(v Value) (*structpb.Value, error) {
	switch v.Kind {
	case KindNull:
		return structpb.NewNullValue(), nil
	case KindInt:
		return structpb.NewNumberValue(float64(v.I64)), nil
	case KindFloat:
		return structpb.NewNumberValue(v.F64), nil
	case KindString:
		return structpb.NewStringValue(v.s.Value()), nil
	case KindBool:
		return structpb.NewBoolValue(v.B), nil
	case KindArray:
		items := make([]*structpb.Value, len(v.A))
		for i := range v.A {
			pv, err := ToProtoValue(v.A[i])
			if err != nil {
				return nil, err
			}
			items[i] = pv
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items}), nil
	case KindDocument:
		s, err := ToStruct(v.D)
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = &structpb.Struct{}
		}
		return structpb.NewStructValue(s), nil
	default:
		return nil, fmt.Errorf("unsupported metadata kind %s", v.Kind)
	}
}
