package wire

import (
	"fmt"
	"strings"
)

// A matcher is a position in the value tree reachable by exclusion path
// expressions. Expressions are dotted property paths where a segment
// suffixed with [] descends into the elements of an array:
//
//	a        the value of property a
//	a[]      every element of the array at a
//	a.b      property b of the embedded entity at a
//	a.b[].c  property c of every entity element of the array at a.b
//
// Matching is purely structural: an expression either terminates at the
// current position (excluding that occurrence from indexes) or names a
// deeper position, regardless of the runtime type found there.
type matcher struct {
	exclude bool
	props   map[string]*matcher
	elems   *matcher
}

func (m *matcher) prop(name string) *matcher {
	if m == nil {
		return nil
	}
	return m.props[name]
}

func (m *matcher) elem() *matcher {
	if m == nil {
		return nil
	}
	return m.elems
}

func (m *matcher) excluded() bool {
	return m != nil && m.exclude
}

// parseExclusions builds the matcher tree for a set of path expressions.
func parseExclusions(exprs []string) (*matcher, error) {
	root := &matcher{}
	for _, expr := range exprs {
		if err := addExclusion(root, expr); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func addExclusion(root *matcher, expr string) error {
	cur := root
	for _, segment := range strings.Split(expr, ".") {
		array := false
		if strings.HasSuffix(segment, "[]") {
			array = true
			segment = strings.TrimSuffix(segment, "[]")
		}
		if segment == "" || strings.ContainsAny(segment, "[]") {
			return fmt.Errorf("malformed exclusion path %q", expr)
		}
		if cur.props == nil {
			cur.props = map[string]*matcher{}
		}
		next := cur.props[segment]
		if next == nil {
			next = &matcher{}
			cur.props[segment] = next
		}
		cur = next
		if array {
			if cur.elems == nil {
				cur.elems = &matcher{}
			}
			cur = cur.elems
		}
	}
	cur.exclude = true
	return nil
}
