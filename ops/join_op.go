package ops

import (
	"sort"

	"heapdb/godb"
)

// EqualityJoin is a sort-merge equi-join: both children are drained,
// sorted by their join expression, and merged, rather than a nested-loops
// scan.
type EqualityJoin struct {
	left, right           Operator
	leftField, rightField Expr
}

func NewEqualityJoin(left Operator, leftField Expr, right Operator, rightField Expr) (*EqualityJoin, error) {
	if leftField.Type().Kind != rightField.Type().Kind {
		return nil, godb.Errorf(godb.DbErrorKind, "join fields have incompatible types")
	}
	return &EqualityJoin{left: left, right: right, leftField: leftField, rightField: rightField}, nil
}

func (j *EqualityJoin) Descriptor() *godb.TupleDesc {
	return j.left.Descriptor().Merge(j.right.Descriptor())
}

func (j *EqualityJoin) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	leftIter, err := j.left.Iterator(tid)
	if err != nil {
		return nil, err
	}
	leftTuples, err := drainAll(leftIter)
	if err != nil {
		return nil, err
	}
	rightIter, err := j.right.Iterator(tid)
	if err != nil {
		return nil, err
	}
	rightTuples, err := drainAll(rightIter)
	if err != nil {
		return nil, err
	}

	sortByExpr(leftTuples, j.leftField)
	sortByExpr(rightTuples, j.rightField)

	joined := mergeJoin(leftTuples, rightTuples, j.leftField, j.rightField)
	i := 0
	return func() (*godb.Tuple, error) {
		if i >= len(joined) {
			return nil, nil
		}
		t := joined[i]
		i++
		return t, nil
	}, nil
}

func sortByExpr(tuples []*godb.Tuple, e Expr) {
	sort.SliceStable(tuples, func(i, j int) bool {
		vi, _ := e.EvalExpr(tuples[i])
		vj, _ := e.EvalExpr(tuples[j])
		return compareTo(vi, vj) < 0
	})
}

func mergeJoin(left, right []*godb.Tuple, leftField, rightField Expr) []*godb.Tuple {
	var out []*godb.Tuple
	li, ri := 0, 0
	for li < len(left) && ri < len(right) {
		lv, _ := leftField.EvalExpr(left[li])
		rv, _ := rightField.EvalExpr(right[ri])
		switch c := compareTo(lv, rv); {
		case c < 0:
			li++
		case c > 0:
			ri++
		default:
			lEnd := equalRunEnd(left, li, leftField)
			rEnd := equalRunEnd(right, ri, rightField)
			for a := li; a < lEnd; a++ {
				for b := ri; b < rEnd; b++ {
					out = append(out, joinTuples(left[a], right[b]))
				}
			}
			li, ri = lEnd, rEnd
		}
	}
	return out
}

// equalRunEnd returns the exclusive end of the run of tuples starting at
// start that share the same value of e.
func equalRunEnd(tuples []*godb.Tuple, start int, e Expr) int {
	v0, _ := e.EvalExpr(tuples[start])
	end := start + 1
	for end < len(tuples) {
		v, _ := e.EvalExpr(tuples[end])
		if compareTo(v0, v) != 0 {
			break
		}
		end++
	}
	return end
}
