// Package query builds and evaluates queries over the store's logical
// dataset.
//
// A Query is an immutable descriptor. Every builder method returns a
// derived copy, so queries can be shared and extended without affecting
// each other:
//
//	base := query.NewQuery("Post").Ancestor(blog)
//	recent := base.Order("-published").Limit(10)
//	popular := base.Filter("stars >=", 20)
//
// Builder methods never consult the dataset; a malformed call is remembered
// and reported when the query is executed.
package query

import (
	"fmt"
	"strings"

	"github.com/chertdb/chert/entity"
)

// Op is a filter comparison operator.
type Op string

// Supported filter operators.
const (
	OpEqual        Op = "="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Filter is one property predicate of a query.
type Filter struct {
	Property string
	Op       Op
	Value    any
}

// Order is one sort key of a query.
type Order struct {
	Property   string
	Descending bool
}

// Query describes a query over entities of one kind. The zero value is not
// usable; start from NewQuery.
type Query struct {
	kind       string
	namespace  string
	ancestor   *entity.Key
	filters    []Filter
	orders     []Order
	projection []string
	distinctOn []string
	keysOnly   bool
	limit      int32
	offset     int32
	start, end Cursor

	err error
}

// NewQuery creates a query for entities of the given kind.
func NewQuery(kind string) *Query {
	return &Query{kind: kind, limit: -1}
}

func (q *Query) clone() *Query {
	x := *q
	// Slices are append-only through the builder, but two derived queries
	// must never share backing arrays.
	x.filters = append([]Filter(nil), q.filters...)
	x.orders = append([]Order(nil), q.orders...)
	x.projection = append([]string(nil), q.projection...)
	x.distinctOn = append([]string(nil), q.distinctOn...)
	return &x
}

func (q *Query) fail(err error) *Query {
	x := q.clone()
	if x.err == nil {
		x.err = err
	}
	return x
}

// Filter adds a predicate. The filter string combines a property name with
// an optional trailing operator; a bare property name means equality:
//
//	q.Filter("appearances >=", 20)
//	q.Filter("name", "Gopher")
//
// The pseudo-property __key__ can be filtered like any other property with
// a *entity.Key operand.
func (q *Query) Filter(filterStr string, value any) *Query {
	property, op, err := parseFilter(filterStr)
	if err != nil {
		return q.fail(err)
	}
	x := q.clone()
	x.filters = append(x.filters, Filter{Property: property, Op: op, Value: value})
	return x
}

func parseFilter(filterStr string) (string, Op, error) {
	filterStr = strings.TrimSpace(filterStr)
	property, opStr, found := strings.Cut(filterStr, " ")
	if !found {
		return filterStr, OpEqual, nil
	}
	switch op := Op(strings.TrimSpace(opStr)); op {
	case OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return property, op, nil
	default:
		return "", "", fmt.Errorf("invalid filter operator in %q", filterStr)
	}
}

// Order adds a sort key. A leading minus sign requests descending order:
//
//	q.Order("published").Order("-stars")
func (q *Query) Order(property string) *Query {
	property = strings.TrimSpace(property)
	o := Order{Property: property}
	if strings.HasPrefix(property, "-") {
		o = Order{Property: strings.TrimSpace(property[1:]), Descending: true}
	}
	if o.Property == "" {
		return q.fail(fmt.Errorf("empty order property %q", property))
	}
	x := q.clone()
	x.orders = append(x.orders, o)
	return x
}

// Ancestor restricts the query to entities whose key path strictly extends
// the given key's path.
func (q *Query) Ancestor(key *entity.Key) *Query {
	if err := key.Validate(); err != nil {
		return q.fail(err)
	}
	if key.Incomplete() {
		return q.fail(fmt.Errorf("incomplete ancestor key %s", key))
	}
	x := q.clone()
	x.ancestor = key
	return x
}

// Namespace restricts the query to one namespace.
func (q *Query) Namespace(namespace string) *Query {
	x := q.clone()
	x.namespace = namespace
	return x
}

// Project restricts results to the named properties. Projecting only the
// __key__ pseudo-property is equivalent to KeysOnly.
func (q *Query) Project(properties ...string) *Query {
	if len(properties) == 1 && properties[0] == entity.KeyProperty {
		return q.KeysOnly()
	}
	for _, p := range properties {
		if p == entity.KeyProperty {
			return q.fail(fmt.Errorf("%s cannot be combined with other projected properties", entity.KeyProperty))
		}
	}
	x := q.clone()
	x.projection = append([]string(nil), properties...)
	return x
}

// DistinctOn collapses results that share equal values for the named
// properties, keeping the first occurrence of each distinct combination.
func (q *Query) DistinctOn(properties ...string) *Query {
	x := q.clone()
	x.distinctOn = append([]string(nil), properties...)
	return x
}

// KeysOnly makes the query return keys without properties.
func (q *Query) KeysOnly() *Query {
	x := q.clone()
	x.keysOnly = true
	return x
}

// Limit caps the number of results. A negative limit means no cap.
func (q *Query) Limit(n int) *Query {
	if n > int(int32max) {
		return q.fail(fmt.Errorf("limit %d overflows", n))
	}
	x := q.clone()
	x.limit = int32(n)
	if n < 0 {
		x.limit = -1
	}
	return x
}

// Offset skips the first n results. Skipped results count after filtering,
// ordering and grouping.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail(fmt.Errorf("negative offset %d", n))
	}
	if n > int(int32max) {
		return q.fail(fmt.Errorf("offset %d overflows", n))
	}
	x := q.clone()
	x.offset = int32(n)
	return x
}

const int32max = 1<<31 - 1

// Start resumes the query immediately after the position the cursor
// encodes.
func (q *Query) Start(c Cursor) *Query {
	x := q.clone()
	x.start = c
	return x
}

// End bounds the query at the position the cursor encodes.
func (q *Query) End(c Cursor) *Query {
	x := q.clone()
	x.end = c
	return x
}

// Kind returns the target kind of the query.
func (q *Query) Kind() string {
	return q.kind
}

// Err returns the first error accumulated by builder calls, nil if the
// query is well formed.
func (q *Query) Err() error {
	return q.err
}
