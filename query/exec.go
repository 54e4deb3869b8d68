package query

import (
	"fmt"

	"github.com/chertdb/chert/entity"
	"github.com/chertdb/chert/wire"
	"golang.org/x/exp/slices"
)

// Result is one page of query results.
type Result struct {
	// Entities are the matching entities in result order, each carrying its
	// key. For keys-only queries the property maps are empty; for
	// projection queries they contain only the projected properties.
	Entities []*wire.Entity

	// EndCursor marks the position immediately after the last entity of the
	// page. Resuming from it yields the remaining results with no gaps and
	// no duplicates.
	EndCursor Cursor

	// More reports whether results remain beyond EndCursor.
	More bool
}

// Execute evaluates the query against the given dataset: the encoded
// entities of the store's logical dataset, in any order. The pipeline is
// fixed: kind and ancestor restriction, filter predicates, ordering (by key
// unless explicit sort keys are given, with key as the final tie-break),
// distinct-on grouping, cursor positioning, offset, limit, projection.
func Execute(q *Query, dataset []*wire.Entity) (*Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	if q.kind == "" {
		return nil, fmt.Errorf("query has no kind")
	}

	matched, err := q.match(dataset)
	if err != nil {
		return nil, err
	}
	matched = q.sort(matched)
	matched = q.groupDistinct(matched)

	matched, err = q.sliceByCursors(matched)
	if err != nil {
		return nil, err
	}

	if int(q.offset) >= len(matched) {
		matched = nil
	} else {
		matched = matched[q.offset:]
	}
	page := matched
	if q.limit >= 0 && int(q.limit) < len(page) {
		page = page[:q.limit]
	}

	res := &Result{
		EndCursor: q.start,
		More:      len(matched) > len(page),
	}
	if len(page) > 0 {
		res.EndCursor = makeCursor(page[len(page)-1].Key.Encode())
	}
	for _, e := range page {
		res.Entities = append(res.Entities, q.project(e))
	}
	return res, nil
}

func (q *Query) match(dataset []*wire.Entity) ([]*wire.Entity, error) {
	operands := make([]wire.Value, len(q.filters))
	for i, f := range q.filters {
		v, err := wire.EncodeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", f.Property, err)
		}
		operands[i] = v
	}

	var matched []*wire.Entity
entities:
	for _, e := range dataset {
		if e.Key == nil || e.Key.Kind != q.kind || e.Key.Namespace != q.namespace {
			continue
		}
		if q.ancestor != nil && !q.ancestor.AncestorOf(e.Key) {
			continue
		}
		for i, f := range q.filters {
			if !matchFilter(e, f, operands[i]) {
				continue entities
			}
		}
		matched = append(matched, e)
	}
	return matched, nil
}

// matchFilter evaluates one predicate against one entity. Only indexed
// value occurrences are visible to predicates; an array property matches if
// any of its indexed elements does.
func matchFilter(e *wire.Entity, f Filter, operand wire.Value) bool {
	v, ok := propertyValue(e, f.Property)
	if !ok {
		return false
	}
	if v.Type == wire.TypeArray {
		for _, el := range v.Array {
			if el.Indexed && opHolds(wire.Compare(el, operand), f.Op) {
				return true
			}
		}
		return false
	}
	return v.Indexed && opHolds(wire.Compare(v, operand), f.Op)
}

func propertyValue(e *wire.Entity, property string) (wire.Value, bool) {
	if property == entity.KeyProperty {
		return wire.Value{Type: wire.TypeKey, Indexed: true, Key: e.Key}, true
	}
	v, ok := e.Properties[property]
	return v, ok
}

func opHolds(cmp int, op Op) bool {
	switch op {
	case OpEqual:
		return cmp == 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	default:
		return false
	}
}

// sort orders the matched entities. Without explicit sort keys the order is
// by key; with them, the key is the final tie-break so that the total order
// is deterministic and cursors are unambiguous. Entities lacking an indexed
// value for an explicit sort property are dropped, as the index that would
// order them has no entry.
func (q *Query) sort(matched []*wire.Entity) []*wire.Entity {
	if len(q.orders) > 0 {
		kept := matched[:0]
		for _, e := range matched {
			visible := true
			for _, o := range q.orders {
				if _, ok := orderValue(e, o); !ok {
					visible = false
					break
				}
			}
			if visible {
				kept = append(kept, e)
			}
		}
		matched = kept
	}

	slices.SortStableFunc(matched, func(a, b *wire.Entity) bool {
		for _, o := range q.orders {
			va, _ := orderValue(a, o)
			vb, _ := orderValue(b, o)
			if c := wire.Compare(va, vb); c != 0 {
				if o.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return a.Key.Encode() < b.Key.Encode()
	})
	return matched
}

// orderValue picks the value occurrence that represents an entity in the
// order defined by one sort key. An array is represented by its smallest
// indexed element for ascending order and its largest for descending.
func orderValue(e *wire.Entity, o Order) (wire.Value, bool) {
	v, ok := propertyValue(e, o.Property)
	if !ok {
		return wire.Value{}, false
	}
	if v.Type != wire.TypeArray {
		return v, v.Indexed
	}
	var best wire.Value
	found := false
	for _, el := range v.Array {
		if !el.Indexed {
			continue
		}
		if !found {
			best, found = el, true
			continue
		}
		c := wire.Compare(el, best)
		if (o.Descending && c > 0) || (!o.Descending && c < 0) {
			best = el
		}
	}
	return best, found
}

// groupDistinct collapses runs of entities that share equal values for the
// distinct-on properties, keeping the first entity of each run.
func (q *Query) groupDistinct(matched []*wire.Entity) []*wire.Entity {
	if len(q.distinctOn) == 0 {
		return matched
	}
	var out []*wire.Entity
	for _, e := range matched {
		if len(out) > 0 && sameGroup(out[len(out)-1], e, q.distinctOn) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func sameGroup(a, b *wire.Entity, properties []string) bool {
	for _, p := range properties {
		va, oka := propertyValue(a, p)
		vb, okb := propertyValue(b, p)
		if oka != okb || wire.Compare(va, vb) != 0 {
			return false
		}
	}
	return true
}

// sliceByCursors applies the start and end positions to the ordered,
// grouped result list. A cursor position is "immediately after the entity
// with this key"; as a start it is exclusive, as an end inclusive.
func (q *Query) sliceByCursors(matched []*wire.Entity) ([]*wire.Entity, error) {
	if q.end != "" {
		after, err := cursorPosition(q.end)
		if err != nil {
			return nil, err
		}
		for i, e := range matched {
			if e.Key.Encode() == after {
				matched = matched[:i+1]
				break
			}
		}
	}
	if q.start != "" {
		after, err := cursorPosition(q.start)
		if err != nil {
			return nil, err
		}
		matched = skipToCursor(matched, after, len(q.orders) == 0)
	}
	return matched, nil
}

func skipToCursor(matched []*wire.Entity, after string, keyOrdered bool) []*wire.Entity {
	for i, e := range matched {
		if e.Key.Encode() == after {
			return matched[i+1:]
		}
	}
	// The entity at the cursor position is gone. For key-ordered results
	// the position is still well defined by key comparison.
	if keyOrdered {
		for i, e := range matched {
			if e.Key.Encode() > after {
				return matched[i:]
			}
		}
		return nil
	}
	return matched
}

// project shapes one result entity: full entity, keys only, or the
// projected subset of properties.
func (q *Query) project(e *wire.Entity) *wire.Entity {
	switch {
	case q.keysOnly:
		return &wire.Entity{Key: e.Key, Properties: map[string]wire.Value{}}
	case len(q.projection) > 0:
		props := make(map[string]wire.Value, len(q.projection))
		for _, p := range q.projection {
			if v, ok := e.Properties[p]; ok {
				props[p] = v
			}
		}
		return &wire.Entity{Key: e.Key, Properties: props}
	default:
		return e
	}
}
