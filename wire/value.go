// Package wire converts entities between the in-memory property-bag form
// and the encoded form exchanged with the store.
//
// The encoded form is wire-agnostic: it fixes the type tags, the nesting
// structure and the per-occurrence index participation of every value, and
// leaves serialization to the transport. Index participation is decided at
// encoding time from exclude-from-indexes path expressions; it never
// affects round-trip fidelity.
package wire

import (
	"time"

	"github.com/chertdb/chert/entity"
)

// MaxIndexedValueBytes is the longest string or byte value the store
// accepts as an indexed value. The codec does not enforce it: an oversized
// indexed value is rejected by the store at commit time.
const MaxIndexedValueBytes = 1500

// Type is the tag of an encoded value.
type Type uint8

// Value type tags, in comparison order. Numbers (TypeInteger and
// TypeDouble) share one position: they compare by numeric value.
const (
	TypeNull Type = iota
	TypeInteger
	TypeDouble
	TypeTimestamp
	TypeBool
	TypeString
	TypeBytes
	TypeGeoPoint
	TypeKey
	TypeEntity
	TypeArray
)

// Value is one encoded property value occurrence. Exactly one of the
// payload fields is meaningful, selected by Type.
//
// Indexed records whether this occurrence participates in the store's
// secondary indexes. For arrays the flag is tracked per element; the array
// value itself carries the flag produced by a bare path match on the array
// property.
type Value struct {
	Type    Type
	Indexed bool

	Bool      bool
	Integer   int64
	Double    float64
	String    string
	Bytes     []byte
	Timestamp time.Time
	Geo       entity.GeoPoint
	Key       *entity.Key
	Entity    *Entity
	Array     []Value
}

// Entity is the encoded form of an entity: its key (nil when embedded) and
// encoded property values.
type Entity struct {
	Key        *entity.Key
	Properties map[string]Value
}
