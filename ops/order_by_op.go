package ops

import (
	"golang.org/x/exp/slices"

	"heapdb/godb"
)

// OrderBy materializes the child's tuples and sorts them by a sequence of
// expressions, each independently ascending or descending. Sorting is
// blocking: nothing is returned from Iterator until the child is fully
// drained.
type OrderBy struct {
	orderBy   []Expr
	ascending []bool
	child     Operator
}

func NewOrderBy(orderBy []Expr, ascending []bool, child Operator) (*OrderBy, error) {
	if len(orderBy) != len(ascending) {
		return nil, godb.Errorf(godb.DbErrorKind, "OrderBy: got %d expressions but %d ascending flags", len(orderBy), len(ascending))
	}
	return &OrderBy{orderBy: orderBy, ascending: ascending, child: child}, nil
}

func (o *OrderBy) Descriptor() *godb.TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := o.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	tuples, err := drainAll(childIter)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(tuples, func(a, b *godb.Tuple) int {
		for i, e := range o.orderBy {
			va, _ := e.EvalExpr(a)
			vb, _ := e.EvalExpr(b)
			c := compareTo(va, vb)
			if c == 0 {
				continue
			}
			if o.ascending[i] {
				return c
			}
			return -c
		}
		return 0
	})

	i := 0
	return func() (*godb.Tuple, error) {
		if i >= len(tuples) {
			return nil, nil
		}
		t := tuples[i]
		i++
		return t, nil
	}, nil
}
