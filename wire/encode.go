package wire

import (
	"fmt"
	"time"

	"github.com/chertdb/chert/entity"
)

// Encode converts an entity into its encoded form, resolving index
// participation for every value occurrence against the exclude-from-indexes
// path expressions.
//
// Encode rejects property values outside the supported set and arrays
// nested inside arrays. It does not enforce MaxIndexedValueBytes; if an
// indexed value exceeds the store's limit, the store rejects the save and
// the error is surfaced to the caller untouched.
func Encode(e *entity.Entity, exclude []string) (*Entity, error) {
	root, err := parseExclusions(exclude)
	if err != nil {
		return nil, err
	}
	props, err := encodeProperties(e.Properties, root)
	if err != nil {
		return nil, err
	}
	return &Entity{Key: e.Key(), Properties: props}, nil
}

func encodeProperties(props map[string]any, m *matcher) (map[string]Value, error) {
	encoded := make(map[string]Value, len(props))
	for name, v := range props {
		if name == entity.KeyProperty {
			return nil, fmt.Errorf("property name %q is reserved", name)
		}
		value, err := encodeValue(v, m.prop(name), true)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		encoded[name] = value
	}
	return encoded, nil
}

func encodeValue(v any, m *matcher, allowArray bool) (Value, error) {
	value := Value{Indexed: !m.excluded()}
	switch v := v.(type) {
	case nil:
		value.Type = TypeNull
	case bool:
		value.Type = TypeBool
		value.Bool = v
	case int:
		value.Type = TypeInteger
		value.Integer = int64(v)
	case int64:
		value.Type = TypeInteger
		value.Integer = v
	case float64:
		value.Type = TypeDouble
		value.Double = v
	case string:
		value.Type = TypeString
		value.String = v
	case []byte:
		value.Type = TypeBytes
		value.Bytes = v
	case time.Time:
		value.Type = TypeTimestamp
		value.Timestamp = v
	case entity.GeoPoint:
		value.Type = TypeGeoPoint
		value.Geo = v
	case *entity.Key:
		if err := v.Validate(); err != nil {
			return Value{}, err
		}
		value.Type = TypeKey
		value.Key = v
	case *entity.Entity:
		props, err := encodeProperties(v.Properties, m)
		if err != nil {
			return Value{}, err
		}
		value.Type = TypeEntity
		value.Entity = &Entity{Key: v.Key(), Properties: props}
	case []any:
		if !allowArray {
			return Value{}, fmt.Errorf("array nested inside array")
		}
		value.Type = TypeArray
		value.Array = make([]Value, 0, len(v))
		for i, el := range v {
			encoded, err := encodeValue(el, m.elem(), false)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			value.Array = append(value.Array, encoded)
		}
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", v)
	}
	return value, nil
}
