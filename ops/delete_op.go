package ops

import "heapdb/godb"

// Delete deletes every tuple produced by its child via the buffer pool,
// yielding a single "count" tuple on the first call to the returned
// iterator. Child tuples must carry a RecordId (e.g. come from a Scan),
// since deletion is by record id, not by value.
type Delete struct {
	bp    *godb.BufferPool
	child Operator
}

func NewDelete(bp *godb.BufferPool, child Operator) *Delete {
	return &Delete{bp: bp, child: child}
}

func (d *Delete) Descriptor() *godb.TupleDesc { return countDesc }

func (d *Delete) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := d.child.Iterator(tid)
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
			if err := d.bp.DeleteTuple(tid, t); err != nil {
				return nil, err
			}
			count++
		}
		done = true
		return godb.NewTuple(*countDesc, []godb.Field{godb.IntField{Value: count}})
	}, nil
}
