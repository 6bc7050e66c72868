package metadata

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Operator represents a filter operator.
type Operator string

const (
	// OpEqual matches when the field equals the operand.
	OpEqual Operator = "$eq"
	// OpNotEqual matches when the field is present and differs from the operand.
	OpNotEqual Operator = "$ne"
	// OpGreaterThan represents the greater than operator (numbers only).
	OpGreaterThan Operator = "$gt"
	// OpGreaterEqual represents the greater than or equal operator (numbers only).
	OpGreaterEqual Operator = "$gte"
	// OpLessThan represents the less than operator (numbers only).
	OpLessThan Operator = "$lt"
	// OpLessEqual represents the less than or equal operator (numbers only).
	OpLessEqual Operator = "$lte"
	// OpIn matches when the field equals any element of the operand list.
	OpIn Operator = "$in"
	// OpNotIn matches when the field is present and equals no element of the operand list.
	OpNotIn Operator = "$nin"
	// OpExists matches on field presence (true) or absence (false).
	OpExists Operator = "$exists"
	// OpAnd requires all sub-filters to match.
	OpAnd Operator = "$and"
	// OpOr requires at least one sub-filter to match.
	OpOr Operator = "$or"
	// OpNot negates a sub-filter.
	OpNot Operator = "$not"
)

// Filter is a compiled metadata predicate.
//
// A nil *Filter matches every document. Filters are immutable after Compile and
// safe for concurrent use.
type Filter struct {
	src  Document
	root node
}

// Compile turns a filter expression into a Filter.
//
// Compile never fails: operators it does not know and operands of the wrong
// shape become nodes that match nothing, so a malformed filter only narrows
// the result set. An empty expression compiles to nil (match all).
func Compile(expr Document) *Filter {
	if len(expr) == 0 {
		return nil
	}
	return &Filter{src: expr.Clone(), root: compileDocument(expr)}
}

// Source returns the expression the filter was compiled from.
func (f *Filter) Source() Document {
	if f == nil {
		return nil
	}
	return f.src
}

// Matches reports whether doc satisfies the filter.
func (f *Filter) Matches(doc Document) bool {
	if f == nil {
		return true
	}
	return f.root.matches(doc)
}

// MatchesNothing reports whether the filter is statically known to reject every document.
func (f *Filter) MatchesNothing() bool {
	if f == nil {
		return false
	}
	_, ok := f.root.(noneNode)
	return ok
}

// Candidates returns a superset of the ids that can match, computed from the
// inverted index, or false when the filter cannot be answered from the index
// and the caller has to scan. The returned bitmap must not be modified.
func (f *Filter) Candidates(ix *InvertedIndex) (*roaring.Bitmap, bool) {
	if f == nil || ix == nil {
		return nil, false
	}
	return f.root.candidates(ix)
}

type node interface {
	matches(doc Document) bool
	candidates(ix *InvertedIndex) (*roaring.Bitmap, bool)
}

func compileDocument(expr Document) node {
	if len(expr) == 0 {
		return allNode{}
	}

	children := make([]node, 0, len(expr))
	for _, key := range expr.Keys() {
		operand := expr[key]
		switch Operator(key) {
		case OpAnd, OpOr:
			children = append(children, compileLogical(Operator(key), operand))
		case OpNot:
			sub, ok := operand.AsDocument()
			if !ok {
				children = append(children, noneNode{})
				continue
			}
			children = append(children, notNode{child: compileDocument(sub)})
		default:
			if strings.HasPrefix(key, "$") {
				children = append(children, noneNode{})
				continue
			}
			children = append(children, compileField(key, operand))
		}
	}

	if len(children) == 1 {
		return children[0]
	}
	return andNode{children: children}
}

func compileLogical(op Operator, operand Value) node {
	items, ok := operand.AsArray()
	if !ok {
		return noneNode{}
	}
	if len(items) == 0 {
		if op == OpAnd {
			return allNode{}
		}
		return noneNode{}
	}

	children := make([]node, 0, len(items))
	for _, item := range items {
		sub, ok := item.AsDocument()
		if !ok {
			children = append(children, noneNode{})
			continue
		}
		children = append(children, compileDocument(sub))
	}
	if op == OpAnd {
		return andNode{children: children}
	}
	return orNode{children: children}
}

func compileField(field string, operand Value) node {
	ops, ok := operand.AsDocument()
	if !ok || !isOperatorObject(ops) {
		// Shorthand: {"field": value} means {"field": {"$eq": value}}.
		return fieldNode{field: field, op: OpEqual, operand: operand}
	}

	children := make([]node, 0, len(ops))
	for _, key := range ops.Keys() {
		children = append(children, compileOperator(field, Operator(key), ops[key]))
	}
	if len(children) == 1 {
		return children[0]
	}
	return andNode{children: children}
}

func isOperatorObject(d Document) bool {
	if len(d) == 0 {
		return false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func compileOperator(field string, op Operator, operand Value) node {
	switch op {
	case OpEqual, OpNotEqual:
		return fieldNode{field: field, op: op, operand: operand}
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual:
		if !operand.IsNumber() {
			return noneNode{}
		}
		return fieldNode{field: field, op: op, operand: operand}
	case OpIn, OpNotIn:
		if operand.Kind != KindArray {
			return noneNode{}
		}
		return fieldNode{field: field, op: op, operand: operand}
	case OpExists:
		if operand.Kind != KindBool {
			return noneNode{}
		}
		return fieldNode{field: field, op: op, operand: operand}
	case OpNot:
		sub, ok := operand.AsDocument()
		if !ok || !isOperatorObject(sub) {
			return noneNode{}
		}
		return notNode{child: compileField(field, operand)}
	default:
		return noneNode{}
	}
}

// allNode matches everything.
type allNode struct{}

func (allNode) matches(Document) bool { return true }

func (allNode) candidates(*InvertedIndex) (*roaring.Bitmap, bool) { return nil, false }

// noneNode matches nothing. Malformed filter parts compile to it.
type noneNode struct{}

func (noneNode) matches(Document) bool { return false }

func (noneNode) candidates(*InvertedIndex) (*roaring.Bitmap, bool) { return roaring.New(), true }

type andNode struct {
	children []node
}

func (n andNode) matches(doc Document) bool {
	for _, c := range n.children {
		if !c.matches(doc) {
			return false
		}
	}
	return true
}

func (n andNode) candidates(ix *InvertedIndex) (*roaring.Bitmap, bool) {
	var sets []*roaring.Bitmap
	for _, c := range n.children {
		if bm, ok := c.candidates(ix); ok {
			if bm.IsEmpty() {
				return bm, true
			}
			sets = append(sets, bm)
		}
	}
	switch len(sets) {
	case 0:
		return nil, false
	case 1:
		return sets[0], true
	default:
		return roaring.FastAnd(sets...), true
	}
}

type orNode struct {
	children []node
}

func (n orNode) matches(doc Document) bool {
	for _, c := range n.children {
		if c.matches(doc) {
			return true
		}
	}
	return false
}

func (n orNode) candidates(ix *InvertedIndex) (*roaring.Bitmap, bool) {
	sets := make([]*roaring.Bitmap, 0, len(n.children))
	for _, c := range n.children {
		bm, ok := c.candidates(ix)
		if !ok {
			return nil, false
		}
		sets = append(sets, bm)
	}
	return roaring.FastOr(sets...), true
}

type notNode struct {
	child node
}

func (n notNode) matches(doc Document) bool { return !n.child.matches(doc) }

func (notNode) candidates(*InvertedIndex) (*roaring.Bitmap, bool) { return nil, false }

type fieldNode struct {
	field   string
	op      Operator
	operand Value
}

func (n fieldNode) matches(doc Document) bool {
	value, exists := doc.Lookup(n.field)
	if n.op == OpExists {
		return exists == n.operand.B
	}
	if !exists {
		return false
	}

	switch n.op {
	case OpEqual:
		return matchEqual(value, n.operand)
	case OpNotEqual:
		return comparable(value, n.operand) && !matchEqual(value, n.operand)
	case OpGreaterThan:
		return compareNumbers(value, n.operand, func(a, b float64) bool { return a > b })
	case OpGreaterEqual:
		return compareNumbers(value, n.operand, func(a, b float64) bool { return a >= b })
	case OpLessThan:
		return compareNumbers(value, n.operand, func(a, b float64) bool { return a < b })
	case OpLessEqual:
		return compareNumbers(value, n.operand, func(a, b float64) bool { return a <= b })
	case OpIn:
		for _, item := range n.operand.A {
			if matchEqual(value, item) {
				return true
			}
		}
		return false
	case OpNotIn:
		if len(n.operand.A) == 0 {
			return true
		}
		anyComparable := false
		for _, item := range n.operand.A {
			if matchEqual(value, item) {
				return false
			}
			if comparable(value, item) {
				anyComparable = true
			}
		}
		return anyComparable
	default:
		return false
	}
}

func (n fieldNode) candidates(ix *InvertedIndex) (*roaring.Bitmap, bool) {
	if strings.Contains(n.field, ".") {
		return nil, false
	}
	switch n.op {
	case OpEqual:
		if n.operand.Kind == KindDocument {
			return nil, false
		}
		return ix.Lookup(n.field, n.operand), true
	case OpIn:
		sets := make([]*roaring.Bitmap, 0, len(n.operand.A))
		for _, item := range n.operand.A {
			if item.Kind == KindDocument {
				return nil, false
			}
			sets = append(sets, ix.Lookup(n.field, item))
		}
		return roaring.FastOr(sets...), true
	case OpExists:
		if n.operand.B {
			return ix.LookupField(n.field), true
		}
		return nil, false
	default:
		return nil, false
	}
}

// matchEqual compares a stored value with an operand. A stored list matches a
// scalar operand when any of its elements does.
func matchEqual(stored, operand Value) bool {
	if stored.Equal(operand) {
		return true
	}
	if stored.Kind == KindArray && operand.Kind != KindArray {
		for _, item := range stored.A {
			if item.Equal(operand) {
				return true
			}
		}
	}
	return false
}

// comparable reports whether stored and operand belong to the same type family.
// Inequality operators only match across comparable values.
func comparable(stored, operand Value) bool {
	if stored.IsNumber() && operand.IsNumber() {
		return true
	}
	if stored.Kind == operand.Kind {
		return true
	}
	if stored.Kind == KindArray {
		for _, item := range stored.A {
			if comparable(item, operand) {
				return true
			}
		}
	}
	return false
}

func compareNumbers(stored, operand Value, cmp func(a, b float64) bool) bool {
	a, ok := stored.AsFloat64()
	if !ok {
		return false
	}
	b, ok := operand.AsFloat64()
	if !ok {
		return false
	}
	return cmp(a, b)
}
