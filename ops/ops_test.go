package ops

import (
	"path/filepath"
	"testing"

	"heapdb/godb"
)

// newTestTable builds a fresh (id int, name string(8)) table backed by a
// temp file and inserts rows (each a 2-tuple of id, name) in one committed
// transaction, returning the HeapFile and BufferPool for building operator
// trees against it.
func newTestTable(t *testing.T, rows [][2]any) (*godb.HeapFile, *godb.BufferPool) {
	t.Helper()
	desc, err := godb.NewTupleDesc(
		godb.FieldDesc{Name: "id", Ftype: godb.IntT()},
		godb.FieldDesc{Name: "name", Ftype: godb.StringT(8)},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	cfg := godb.DefaultConfig()
	bp := godb.NewBufferPool(cfg, godb.NullLogFile{}, nil)
	catalog := godb.NewCatalog()
	file, err := catalog.AddTable(bp, filepath.Join(t.TempDir(), "t.tbl"), desc, "id")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	tid := godb.NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	for _, row := range rows {
		tup, err := godb.NewTuple(*desc, []godb.Field{
			godb.IntField{Value: row[0].(int32)},
			godb.StringField{Value: row[1].(string), Width: 8},
		})
		if err != nil {
			t.Fatalf("NewTuple: %v", err)
		}
		if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}
	return file, bp
}

func drainOperator(t *testing.T, op Operator, tid godb.TransactionID) []*godb.Tuple {
	t.Helper()
	it, err := op.Iterator(tid)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	out, err := drainAll(it)
	if err != nil {
		t.Fatalf("draining operator: %v", err)
	}
	return out
}
