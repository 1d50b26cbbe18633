package plugin

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"eosearch/internal/transform"
)

// Struct fields of the converter service messages.
const (
	fieldConverter  = "converter"
	fieldValue      = "value"
	fieldArgs       = "args"
	fieldConverters = "converters"
	fieldName       = "name"
	fieldMinArgs    = "min_args"
	fieldMaxArgs    = "max_args"
)

// wireValue encodes v as a protobuf value. Values with no JSON shape
// (geometries, XML nodes, markers) travel as their text form.
func wireValue(v any) *structpb.Value {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv
	}
	return structpb.NewStringValue(transform.Text(v))
}

func wireList(vs []any) *structpb.Value {
	items := make([]*structpb.Value, len(vs))
	for i, v := range vs {
		items[i] = wireValue(v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: items})
}

func encodeConvert(name string, value any, args []any) (*structpb.Struct, error) {
	if name == "" {
		return nil, errors.New("converter name is empty")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldConverter: structpb.NewStringValue(name),
		fieldValue:     wireValue(value),
		fieldArgs:      wireList(args),
	}}, nil
}

func decodeConvert(in *structpb.Struct) (name string, value any, args []any) {
	f := in.GetFields()
	name = f[fieldConverter].GetStringValue()
	value = f[fieldValue].AsInterface()
	args = f[fieldArgs].GetListValue().AsSlice()
	return name, value, args
}

func encodeDescriptors(ds []Descriptor) *structpb.Struct {
	items := make([]*structpb.Value, len(ds))
	for i, d := range ds {
		items[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldName:    structpb.NewStringValue(d.Name),
			fieldMinArgs: structpb.NewNumberValue(float64(d.MinArgs)),
			fieldMaxArgs: structpb.NewNumberValue(float64(d.MaxArgs)),
		}})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldConverters: structpb.NewListValue(&structpb.ListValue{Values: items}),
	}}
}

func decodeDescriptors(in *structpb.Struct) ([]Descriptor, error) {
	list := in.GetFields()[fieldConverters].GetListValue()
	out := make([]Descriptor, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		f := v.GetStructValue().GetFields()
		d := Descriptor{
			Name:    f[fieldName].GetStringValue(),
			MinArgs: int(f[fieldMinArgs].GetNumberValue()),
			MaxArgs: int(f[fieldMaxArgs].GetNumberValue()),
		}
		if d.Name == "" {
			return nil, fmt.Errorf("converter %d has no name", i)
		}
		out = append(out, d)
	}
	return out, nil
}
