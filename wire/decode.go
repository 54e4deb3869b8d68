package wire

import (
	"fmt"

	"github.com/chertdb/chert/entity"
)

// Decode converts an encoded entity back into the property-bag form,
// reattaching the key out of band. Value types survive the round trip
// exactly; in particular integers and doubles stay distinct.
func Decode(we *Entity) (*entity.Entity, error) {
	props, err := decodeProperties(we.Properties)
	if err != nil {
		return nil, err
	}
	return entity.New(we.Key, props), nil
}

func decodeProperties(props map[string]Value) (map[string]any, error) {
	decoded := make(map[string]any, len(props))
	for name, v := range props {
		value, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		decoded[name] = value
	}
	return decoded, nil
}

func decodeValue(v Value) (any, error) {
	switch v.Type {
	case TypeNull:
		return nil, nil
	case TypeBool:
		return v.Bool, nil
	case TypeInteger:
		return v.Integer, nil
	case TypeDouble:
		return v.Double, nil
	case TypeString:
		return v.String, nil
	case TypeBytes:
		return v.Bytes, nil
	case TypeTimestamp:
		return v.Timestamp, nil
	case TypeGeoPoint:
		return v.Geo, nil
	case TypeKey:
		return v.Key, nil
	case TypeEntity:
		props, err := decodeProperties(v.Entity.Properties)
		if err != nil {
			return nil, err
		}
		return entity.New(v.Entity.Key, props), nil
	case TypeArray:
		arr := make([]any, 0, len(v.Array))
		for i, el := range v.Array {
			decoded, err := decodeValue(el)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			arr = append(arr, decoded)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unknown value type tag %d", v.Type)
	}
}

// Clone returns a deep copy of the encoded entity. The store hands out
// clones so that callers cannot alias its records.
func (we *Entity) Clone() *Entity {
	if we == nil {
		return nil
	}
	props := make(map[string]Value, len(we.Properties))
	for name, v := range we.Properties {
		props[name] = v.clone()
	}
	return &Entity{Key: we.Key, Properties: props}
}

func (v Value) clone() Value {
	switch v.Type {
	case TypeBytes:
		v.Bytes = append([]byte(nil), v.Bytes...)
	case TypeEntity:
		v.Entity = v.Entity.Clone()
	case TypeArray:
		arr := make([]Value, 0, len(v.Array))
		for _, el := range v.Array {
			arr = append(arr, el.clone())
		}
		v.Array = arr
	}
	return v
}
