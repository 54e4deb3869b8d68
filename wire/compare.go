package wire

import (
	"bytes"
	"sort"
	"strings"
)

// EncodeValue encodes a single bare value, such as a filter operand. The
// result is marked indexed.
func EncodeValue(v any) (Value, error) {
	return encodeValue(v, nil, true)
}

// Compare defines the total order over encoded values used for sorting and
// relational filters. Values of different types order by type tag, except
// that integers and doubles compare with each other numerically. Keys
// compare in key order (ancestor path, then kind, then identifier).
func Compare(a, b Value) int {
	ra, rb := a.Type.rank(), b.Type.rank()
	if ra != rb {
		return int(ra) - int(rb)
	}
	switch {
	case ra == TypeInteger.rank():
		return compareNumbers(a, b)
	case a.Type == TypeTimestamp:
		return a.Timestamp.Compare(b.Timestamp)
	case a.Type == TypeBool:
		return compareBools(a.Bool, b.Bool)
	case a.Type == TypeString:
		return strings.Compare(a.String, b.String)
	case a.Type == TypeBytes:
		return bytes.Compare(a.Bytes, b.Bytes)
	case a.Type == TypeGeoPoint:
		if c := compareFloats(a.Geo.Lat, b.Geo.Lat); c != 0 {
			return c
		}
		return compareFloats(a.Geo.Lng, b.Geo.Lng)
	case a.Type == TypeKey:
		return strings.Compare(a.Key.Encode(), b.Key.Encode())
	case a.Type == TypeEntity:
		return compareEntities(a.Entity, b.Entity)
	case a.Type == TypeArray:
		return compareArrays(a.Array, b.Array)
	default: // TypeNull
		return 0
	}
}

// rank folds the two number types into one position of the type order.
func (t Type) rank() Type {
	if t == TypeDouble {
		return TypeInteger
	}
	return t
}

func compareNumbers(a, b Value) int {
	if a.Type == TypeInteger && b.Type == TypeInteger {
		switch {
		case a.Integer < b.Integer:
			return -1
		case a.Integer > b.Integer:
			return 1
		default:
			return 0
		}
	}
	return compareFloats(a.number(), b.number())
}

func (v Value) number() float64 {
	if v.Type == TypeInteger {
		return float64(v.Integer)
	}
	return v.Double
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBools(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	default:
		return 0
	}
}

func compareArrays(a, b []Value) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareEntities(a, b *Entity) int {
	namesA, namesB := sortedNames(a), sortedNames(b)
	for i := 0; i < len(namesA) && i < len(namesB); i++ {
		if c := strings.Compare(namesA[i], namesB[i]); c != 0 {
			return c
		}
		if c := Compare(a.Properties[namesA[i]], b.Properties[namesB[i]]); c != 0 {
			return c
		}
	}
	return len(namesA) - len(namesB)
}

func sortedNames(e *Entity) []string {
	names := make([]string, 0, len(e.Properties))
	for name := range e.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
