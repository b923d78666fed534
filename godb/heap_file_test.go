package godb

import (
	"path/filepath"
	"strings"
	"testing"
)

func newTestHeapFile(t *testing.T) (*HeapFile, *BufferPool) {
	t.Helper()
	desc := testPageDesc()
	cfg := DefaultConfig()
	cfg.PageSize = testPageSize
	bp := NewBufferPool(cfg, NullLogFile{}, nil)
	catalog := NewCatalog()
	path := filepath.Join(t.TempDir(), "t.tbl")
	file, err := catalog.AddTable(bp, path, desc, "name")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	return file, bp
}

func TestHeapFileStartsEmpty(t *testing.T) {
	file, _ := newTestHeapFile(t)
	n, err := file.NumPages()
	if err != nil {
		t.Fatalf("NumPages: %v", err)
	}
	if n != 0 {
		t.Errorf("expected a freshly created heap file to have 0 pages, got %d", n)
	}
}

func TestHeapFileInsertExtendsFile(t *testing.T) {
	file, bp := newTestHeapFile(t)
	desc := file.Descriptor()

	tid := NewTID()
	bp.BeginTransaction(tid)
	inserted := 0
	for {
		n, _ := file.NumPages()
		if n >= 3 {
			break
		}
		tup, _ := NewTuple(*desc, []Field{StringField{Value: "x", Width: 8}, IntField{Value: int32(inserted)}})
		if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
		inserted++
		if inserted > 100000 {
			t.Fatalf("file never grew past a handful of pages, something is wrong with slot accounting")
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	n, err := file.NumPages()
	if err != nil {
		t.Fatalf("NumPages: %v", err)
	}
	if n < 3 {
		t.Errorf("expected file to have grown to at least 3 pages, got %d", n)
	}
}

func TestHeapFileIteratorSeesAllInsertedTuples(t *testing.T) {
	file, bp := newTestHeapFile(t)
	desc := file.Descriptor()

	const want = 50
	tid := NewTID()
	bp.BeginTransaction(tid)
	for i := 0; i < want; i++ {
		tup, _ := NewTuple(*desc, []Field{StringField{Value: "row", Width: 8}, IntField{Value: int32(i)}})
		if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	bp.TransactionComplete(tid, true)

	tid2 := NewTID()
	bp.BeginTransaction(tid2)
	it, err := file.Iterator(tid2)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	seen := 0
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		seen++
	}
	bp.TransactionComplete(tid2, true)
	if seen != want {
		t.Errorf("expected to see %d tuples, saw %d", want, seen)
	}
}

func TestHeapFileDeleteThenInsertReusesSpace(t *testing.T) {
	file, bp := newTestHeapFile(t)
	desc := file.Descriptor()

	tid := NewTID()
	bp.BeginTransaction(tid)
	tup, _ := NewTuple(*desc, []Field{StringField{Value: "gone", Width: 8}, IntField{Value: 1}})
	if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	bp.TransactionComplete(tid, true)

	tid2 := NewTID()
	bp.BeginTransaction(tid2)
	if err := bp.DeleteTuple(tid2, tup); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}
	bp.TransactionComplete(tid2, true)

	before, _ := file.NumPages()

	tid3 := NewTID()
	bp.BeginTransaction(tid3)
	tup2, _ := NewTuple(*desc, []Field{StringField{Value: "new", Width: 8}, IntField{Value: 2}})
	if err := bp.InsertTuple(tid3, file.TableID(), tup2); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	bp.TransactionComplete(tid3, true)

	after, _ := file.NumPages()
	if after != before {
		t.Errorf("expected the deleted slot to be reused without growing the file, went from %d to %d pages", before, after)
	}
}

func TestHeapFileLoadFromCSV(t *testing.T) {
	file, _ := newTestHeapFile(t)
	csv := "name,age\nalice,30\nbobbyjoe,99\n"
	if err := file.LoadFromCSV(strings.NewReader(csv), true, ",", false); err != nil {
		t.Fatalf("LoadFromCSV: %v", err)
	}
	n, err := file.NumPages()
	if err != nil {
		t.Fatalf("NumPages: %v", err)
	}
	if n == 0 {
		t.Errorf("expected LoadFromCSV to have written at least one page")
	}
}

func TestTableIDForIsStableAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.tbl")
	id1, err := tableIDFor(path)
	if err != nil {
		t.Fatalf("tableIDFor: %v", err)
	}
	id2, err := tableIDFor(path)
	if err != nil {
		t.Fatalf("tableIDFor: %v", err)
	}
	if id1 != id2 {
		t.Errorf("expected the same path to hash to the same table id, got %d and %d", id1, id2)
	}
}
