package ops

import "heapdb/godb"

// Operator is the pull-based, lazy, restartable tuple source every query
// execution stage implements: Scan at the leaves, the rest composing a
// child Operator. Iterator may be called more than once per transaction;
// each call starts an independent cursor.
type Operator interface {
	Descriptor() *godb.TupleDesc
	Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error)
}

// Scan is the leaf Operator: every tuple of a HeapFile, read through the
// buffer pool under tid.
type Scan struct {
	file *godb.HeapFile
}

func NewScan(file *godb.HeapFile) *Scan {
	return &Scan{file: file}
}

func (s *Scan) Descriptor() *godb.TupleDesc {
	return s.file.Descriptor()
}

func (s *Scan) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	it, err := s.file.Iterator(tid)
	if err != nil {
		return nil, err
	}
	return it.Next, nil
}

// joinTuples concatenates two tuples' fields and schemas, matching
// TupleDesc.Merge. A nil operand returns the other tuple unmodified.
func joinTuples(t1, t2 *godb.Tuple) *godb.Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	desc := t1.Desc.Merge(&t2.Desc)
	fields := make([]godb.Field, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	t, _ := godb.NewTuple(*desc, fields)
	return t
}

func drainAll(it func() (*godb.Tuple, error)) ([]*godb.Tuple, error) {
	var out []*godb.Tuple
	for {
		t, err := it()
		if err != nil {
			return nil, err
		}
		if t == nil {
			return out, nil
		}
		out = append(out, t)
	}
}
