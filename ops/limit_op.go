package ops

import "heapdb/godb"

// Limit passes through at most count tuples from its child.
type Limit struct {
	count int
	child Operator
}

func NewLimit(count int, child Operator) *Limit {
	return &Limit{count: count, child: child}
}

func (l *Limit) Descriptor() *godb.TupleDesc {
	return l.child.Descriptor()
}

func (l *Limit) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := l.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	seen := 0
	return func() (*godb.Tuple, error) {
		if seen >= l.count {
			return nil, nil
		}
		t, err := childIter()
		if err != nil || t == nil {
			return nil, err
		}
		seen++
		return t, nil
	}, nil
}
