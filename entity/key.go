package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned when a key has an empty kind, a malformed
// identifier, or an incomplete non-final path element.
var ErrInvalidKey = errors.New("chert: invalid key")

// ErrKeyComplete is returned when trying to assign an identifier to a key
// that already has one.
var ErrKeyComplete = errors.New("chert: key is already complete")

// Key is the identifier of an entity. It is a chain of (kind, identifier)
// path elements, linked leaf to root through Parent, optionally scoped to a
// namespace.
//
// The identifier of an element is either a numeric ID, a name, or absent.
// A key whose last element has no identifier is incomplete: it does not
// denote a stored entity yet, and saving under it makes the store assign a
// numeric ID. All non-final elements must be complete.
//
// Keys are value objects: never modify a Key after creating it. The only
// sanctioned way to complete an incomplete key is WithID, which returns a
// new key.
type Key struct {
	Kind string
	ID   int64
	Name string

	Parent    *Key
	Namespace string
}

// IDKey creates a key with a numeric identifier.
func IDKey(kind string, id int64, parent *Key) *Key {
	return &Key{Kind: kind, ID: id, Parent: parent, Namespace: namespaceOf(parent)}
}

// NameKey creates a key with a string identifier.
func NameKey(kind, name string, parent *Key) *Key {
	return &Key{Kind: kind, Name: name, Parent: parent, Namespace: namespaceOf(parent)}
}

// IncompleteKey creates a key without an identifier. The store assigns a
// numeric ID when an entity is first saved under it.
func IncompleteKey(kind string, parent *Key) *Key {
	return &Key{Kind: kind, Parent: parent, Namespace: namespaceOf(parent)}
}

func namespaceOf(parent *Key) string {
	if parent == nil {
		return ""
	}
	return parent.Namespace
}

// WithNamespace returns a copy of the key (and its ancestors) scoped to the
// given namespace.
func (k *Key) WithNamespace(namespace string) *Key {
	if k == nil {
		return nil
	}
	clone := *k
	clone.Namespace = namespace
	clone.Parent = k.Parent.WithNamespace(namespace)
	return &clone
}

// Incomplete reports whether the key lacks an identifier in its last
// element.
func (k *Key) Incomplete() bool {
	return k.ID == 0 && k.Name == ""
}

// Validate checks the path invariants: every element has a kind, no element
// carries both a numeric ID and a name, numeric IDs are positive, and only
// the last element may lack an identifier. All elements must agree on the
// namespace.
func (k *Key) Validate() error {
	if k == nil {
		return fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	for cur := k; cur != nil; cur = cur.Parent {
		switch {
		case cur.Kind == "":
			return fmt.Errorf("%w: empty kind", ErrInvalidKey)
		case cur.ID != 0 && cur.Name != "":
			return fmt.Errorf("%w: %s has both ID and name", ErrInvalidKey, cur.Kind)
		case cur.ID < 0:
			return fmt.Errorf("%w: %s has negative ID %d", ErrInvalidKey, cur.Kind, cur.ID)
		case cur != k && cur.Incomplete():
			return fmt.Errorf("%w: non-final element %s is incomplete", ErrInvalidKey, cur.Kind)
		case cur.Namespace != k.Namespace:
			return fmt.Errorf("%w: namespace mismatch between %s and %s", ErrInvalidKey, cur.Kind, k.Kind)
		}
	}
	return nil
}

// WithID returns a copy of the key with the numeric identifier assigned to
// its last element. Fails with ErrKeyComplete if the key already has an
// identifier. Used by the commit and allocation paths; an identifier, once
// assigned, is permanent.
func (k *Key) WithID(id int64) (*Key, error) {
	if !k.Incomplete() {
		return nil, fmt.Errorf("%w: %s", ErrKeyComplete, k)
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: non-positive ID %d", ErrInvalidKey, id)
	}
	clone := *k
	clone.ID = id
	return &clone, nil
}

// Equal reports whether two keys have the same namespace and the same
// sequence of (kind, identifier) path elements.
func (k *Key) Equal(o *Key) bool {
	for k != nil && o != nil {
		if k.Kind != o.Kind || k.ID != o.ID || k.Name != o.Name || k.Namespace != o.Namespace {
			return false
		}
		k, o = k.Parent, o.Parent
	}
	return k == nil && o == nil
}

// AncestorOf reports whether k's path is a strict prefix of o's path. A key
// is not its own ancestor.
func (k *Key) AncestorOf(o *Key) bool {
	for cur := o.Parent; cur != nil; cur = cur.Parent {
		if cur.Equal(k) {
			return true
		}
	}
	return false
}

// path returns the elements root first.
func (k *Key) path() []*Key {
	var elems []*Key
	for cur := k; cur != nil; cur = cur.Parent {
		elems = append(elems, cur)
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return elems
}

// Encode returns a stable textual form of the key, unique per key. The
// result sorts lexicographically in key order: ancestor path first, then
// kind, then identifier, with numeric identifiers ordered before names.
// The encoding is an internal bookkeeping token; callers must not parse it.
func (k *Key) Encode() string {
	var b strings.Builder
	b.WriteString(k.Namespace)
	for _, elem := range k.path() {
		b.WriteByte(1)
		b.WriteString(elem.Kind)
		b.WriteByte(2)
		switch {
		case elem.Name != "":
			b.WriteByte('n')
			b.WriteString(elem.Name)
		case elem.ID != 0:
			b.WriteByte('i')
			fmt.Fprintf(&b, "%020d", elem.ID)
		}
	}
	return b.String()
}

// String returns a readable form such as /Post,6749/Comment,hello.
// Incomplete elements render with an empty identifier.
func (k *Key) String() string {
	if k == nil {
		return ""
	}
	var b strings.Builder
	for _, elem := range k.path() {
		b.WriteByte('/')
		b.WriteString(elem.Kind)
		b.WriteByte(',')
		if elem.Name != "" {
			b.WriteString(elem.Name)
		} else if elem.ID != 0 {
			fmt.Fprintf(&b, "%d", elem.ID)
		}
	}
	return b.String()
}
