package ops

import "heapdb/godb"

// Filter passes through only the child's tuples for which left op right
// holds.
type Filter struct {
	left, right Expr
	op          BoolOp
	child       Operator
}

func NewFilter(left Expr, op BoolOp, right Expr, child Operator) (*Filter, error) {
	return &Filter{left: left, op: op, right: right, child: child}, nil
}

func (f *Filter) Descriptor() *godb.TupleDesc {
	return f.child.Descriptor()
}

func (f *Filter) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := f.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	return func() (*godb.Tuple, error) {
		for {
			t, err := childIter()
			if err != nil || t == nil {
				return nil, err
			}
			lv, err := f.left.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			rv, err := f.right.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			if EvalPred(lv, rv, f.op) {
				return t, nil
			}
		}
	}, nil
}
