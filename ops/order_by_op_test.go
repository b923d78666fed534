package ops

import (
	"testing"

	"heapdb/godb"
)

func TestOrderByAscending(t *testing.T) {
	file, bp := newTestTable(t, [][2]any{{int32(3), "c"}, {int32(1), "a"}, {int32(2), "b"}})
	scan := NewScan(file)
	idField, _ := NewFieldExpr(scan.Descriptor(), "id")
	order, err := NewOrderBy([]Expr{idField}, []bool{true}, scan)
	if err != nil {
		t.Fatalf("NewOrderBy: %v", err)
	}

	tid := godb.NewTID()
	bp.BeginTransaction(tid)
	rows := drainOperator(t, order, tid)
	bp.TransactionComplete(tid, true)

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []int32{1, 2, 3} {
		if got := rows[i].Fields[0].(godb.IntField).Value; got != want {
			t.Errorf("row %d: want id %d, got %d", i, want, got)
		}
	}
}

func TestOrderByDescending(t *testing.T) {
	file, bp := newTestTable(t, [][2]any{{int32(1), "a"}, {int32(2), "b"}})
	scan := NewScan(file)
	idField, _ := NewFieldExpr(scan.Descriptor(), "id")
	order, _ := NewOrderBy([]Expr{idField}, []bool{false}, scan)

	tid := godb.NewTID()
	bp.BeginTransaction(tid)
	rows := drainOperator(t, order, tid)
	bp.TransactionComplete(tid, true)

	if rows[0].Fields[0].(godb.IntField).Value != 2 {
		t.Errorf("expected descending order to put id=2 first")
	}
}

func TestOrderByArityMismatchErrors(t *testing.T) {
	desc, _ := godb.NewTupleDesc(godb.FieldDesc{Name: "id", Ftype: godb.IntT()})
	fe, _ := NewFieldExpr(desc, "id")
	if _, err := NewOrderBy([]Expr{fe}, []bool{true, false}, nil); err == nil {
		t.Fatalf("expected an error when orderBy and ascending have different lengths")
	}
}
