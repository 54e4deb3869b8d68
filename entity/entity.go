// Package entity defines the data model of the store: hierarchical keys and
// schemaless property-bag entities.
//
// An entity is a mapping from property names to values. A value is one of:
//
//   - nil
//   - bool
//   - int64 (plain int is accepted on input and widened)
//   - float64 (kept distinct from int64 even when numerically equal)
//   - string
//   - []byte
//   - time.Time
//   - GeoPoint
//   - *Key (a reference to another entity)
//   - *Entity (an embedded entity, usually with a nil key)
//   - []any of any of the above (arrays do not nest)
//
// The key of an entity is carried alongside the property map, never inside
// it; queries can still address it through the __key__ pseudo-property.
package entity

// KeyProperty is the pseudo-property name under which queries address the
// entity key. It never appears in a property map.
const KeyProperty = "__key__"

// GeoPoint is a geographical point.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Entity is a schemaless property bag with an attached key.
//
// The property map may be read and modified freely until the entity is
// saved. Embedded entities used as property values normally have a nil key.
type Entity struct {
	key *Key

	Properties map[string]any
}

// New creates an entity with the given key. A nil property map is replaced
// with an empty one.
func New(key *Key, properties map[string]any) *Entity {
	if properties == nil {
		properties = map[string]any{}
	}
	return &Entity{key: key, Properties: properties}
}

// Key returns the key associated with the entity, nil for an embedded
// entity.
func (e *Entity) Key() *Key {
	return e.key
}

// SetKey replaces the key associated with the entity. The commit path uses
// it to apply store-assigned identifiers to entities saved under incomplete
// keys.
func (e *Entity) SetKey(key *Key) {
	e.key = key
}
