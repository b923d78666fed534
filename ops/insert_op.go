package ops

import "heapdb/godb"

var countDesc = &godb.TupleDesc{Fields: []godb.FieldDesc{{Name: "count", Ftype: godb.IntT()}}}

// Insert inserts every tuple produced by its child into a table via the
// buffer pool, yielding a single "count" tuple on the first call to the
// returned iterator.
type Insert struct {
	bp      *godb.BufferPool
	tableID int32
	child   Operator
}

func NewInsert(bp *godb.BufferPool, tableID int32, child Operator) *Insert {
	return &Insert{bp: bp, tableID: tableID, child: child}
}

func (i *Insert) Descriptor() *godb.TupleDesc { return countDesc }

func (i *Insert) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := i.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	done := false
	return func() (*godb.Tuple, error) {
		if done {
			return nil, nil
		}
		count := int32(0)
		for {
			t, err := childIter()
			if err != nil {
				return nil, err
			}
			if t == nil {
				break
			}
			if err := i.bp.InsertTuple(tid, i.tableID, t); err != nil {
				return nil, err
			}
			count++
		}
		done = true
		return godb.NewTuple(*countDesc, []godb.Field{godb.IntField{Value: count}})
	}, nil
}
