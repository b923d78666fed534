// Package ops is the reference implementation of the query-execution
// operator contract the storage core treats as an external collaborator:
// lazy, restartable tuple iterators built on top of godb.BufferPool and
// godb.HeapFile (see the Operator interface below).
package ops

import (
	"fmt"

	"heapdb/godb"
)

// Expr evaluates to a single godb.Field given a tuple. A nil tuple is valid
// for an expression that does not reference any field, such as a constant.
type Expr interface {
	EvalExpr(t *godb.Tuple) (godb.Field, error)
	Type() godb.Type
}

// ConstExpr always evaluates to the same field value, independent of the
// tuple supplied.
type ConstExpr struct {
	Value godb.Field
}

func (e *ConstExpr) EvalExpr(t *godb.Tuple) (godb.Field, error) { return e.Value, nil }
func (e *ConstExpr) Type() godb.Type                            { return e.Value.Type() }

// FieldExpr extracts the value of one named field from a tuple. The field's
// index is resolved once, against the TupleDesc supplied at construction,
// rather than by name on every evaluation.
type FieldExpr struct {
	name  string
	index int
	ftype godb.Type
}

// NewFieldExpr resolves name against desc and returns an Expr that reads
// that field out of any tuple sharing desc's schema.
func NewFieldExpr(desc *godb.TupleDesc, name string) (*FieldExpr, error) {
	idx, err := desc.FieldIndex(name)
	if err != nil {
		return nil, err
	}
	return &FieldExpr{name: name, index: idx, ftype: desc.Fields[idx].Ftype}, nil
}

func (e *FieldExpr) EvalExpr(t *godb.Tuple) (godb.Field, error) {
	if t == nil || e.index >= len(t.Fields) {
		return nil, fmt.Errorf("field %s not present in tuple", e.name)
	}
	return t.Fields[e.index], nil
}

func (e *FieldExpr) Type() godb.Type { return e.ftype }
func (e *FieldExpr) Name() string    { return e.name }

// BoolOp is a comparison operator usable by Filter and the min/max
// aggregate states.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// EvalPred compares a and b under op. Both fields must be the same
// underlying kind (int or string); a type mismatch is treated as not
// satisfying the predicate rather than a panic, since a malformed query
// plan is a caller bug, not a storage-layer concern.
func EvalPred(a, b godb.Field, op BoolOp) bool {
	switch av := a.(type) {
	case godb.IntField:
		bv, ok := b.(godb.IntField)
		if !ok {
			return false
		}
		return compareOrdered(av.Value, bv.Value, op)
	case godb.StringField:
		bv, ok := b.(godb.StringField)
		if !ok {
			return false
		}
		return compareOrdered(av.Value, bv.Value, op)
	default:
		return false
	}
}

func compareOrdered[T int32 | string](a, b T, op BoolOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

// compareTo returns -1, 0, or 1, used by OrderBy and the sort-merge join to
// establish a total order rather than just a boolean predicate.
func compareTo(a, b godb.Field) int {
	switch av := a.(type) {
	case godb.IntField:
		bv := b.(godb.IntField)
		switch {
		case av.Value < bv.Value:
			return -1
		case av.Value > bv.Value:
			return 1
		default:
			return 0
		}
	case godb.StringField:
		bv := b.(godb.StringField)
		switch {
		case av.Value < bv.Value:
			return -1
		case av.Value > bv.Value:
			return 1
		default:
			return 0
		}
	}
	return 0
}
