package godb

import (
	"path/filepath"
	"testing"
)

// These mirror the end-to-end scenarios any legal implementation of the
// storage/transaction core must satisfy, exercised here directly against
// BufferPool/HeapFile/Catalog rather than through package ops.

func intOnlyDesc(t *testing.T) *TupleDesc {
	t.Helper()
	desc, err := NewTupleDesc(FieldDesc{Name: "n", Ftype: IntT()})
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return desc
}

func TestScenarioInsertThenScan(t *testing.T) {
	desc := intOnlyDesc(t)
	bp := NewBufferPool(DefaultConfig(), NullLogFile{}, nil)
	catalog := NewCatalog()
	file, err := catalog.AddTable(bp, filepath.Join(t.TempDir(), "t.tbl"), desc, "n")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	t1 := NewTID()
	bp.BeginTransaction(t1)
	for _, v := range []int32{1, 2, 3} {
		tup, _ := NewTuple(*desc, []Field{IntField{Value: v}})
		if err := bp.InsertTuple(t1, file.TableID(), tup); err != nil {
			t.Fatalf("InsertTuple(%d): %v", v, err)
		}
	}
	if err := bp.TransactionComplete(t1, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	t2 := NewTID()
	bp.BeginTransaction(t2)
	it, err := file.Iterator(t2)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	var got []int32
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		got = append(got, tup.Fields[0].(IntField).Value)
	}
	bp.TransactionComplete(t2, true)

	want := []int32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot order mismatch: got %v, want %v", got, want)
		}
	}
}

func TestScenarioPageSplitByInsert(t *testing.T) {
	desc := intOnlyDesc(t)
	// numSlotsFor(12, 4) == 2: (12*8)/(4*8+1) == 96/33 == 2.
	cfg := DefaultConfig()
	cfg.PageSize = 12
	cfg.BufferPoolPages = 1
	bp := NewBufferPool(cfg, NullLogFile{}, nil)
	catalog := NewCatalog()
	file, err := catalog.AddTable(bp, filepath.Join(t.TempDir(), "t.tbl"), desc, "n")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	tid := NewTID()
	bp.BeginTransaction(tid)
	for _, v := range []int32{1, 2, 3} {
		tup, _ := NewTuple(*desc, []Field{IntField{Value: v}})
		if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
			t.Fatalf("InsertTuple(%d): %v", v, err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	n, err := file.NumPages()
	if err != nil {
		t.Fatalf("NumPages: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 3 tuples at 2 slots/page to split into 2 pages, got %d", n)
	}

	tid2 := NewTID()
	bp.BeginTransaction(tid2)
	it, _ := file.Iterator(tid2)
	count := 0
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	bp.TransactionComplete(tid2, true)
	if count != 3 {
		t.Errorf("expected the iterator to yield all 3 tuples across both pages, got %d", count)
	}
}

func TestScenarioDeadlockAbort(t *testing.T) {
	desc := intOnlyDesc(t)
	cfg := DefaultConfig()
	cfg.PageSize = 12
	bp := NewBufferPool(cfg, NullLogFile{}, nil)
	catalog := NewCatalog()
	file, err := catalog.AddTable(bp, filepath.Join(t.TempDir(), "t.tbl"), desc, "n")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	p0 := PageId{TableID: file.TableID(), PageNo: 0}
	p1 := PageId{TableID: file.TableID(), PageNo: 1}

	t1, t2 := NewTID(), NewTID()
	if _, err := bp.GetPage(t1, p0, ReadWrite); err != nil {
		t.Fatalf("t1 GetPage(p0): %v", err)
	}
	if _, err := bp.GetPage(t2, p1, ReadWrite); err != nil {
		t.Fatalf("t2 GetPage(p1): %v", err)
	}

	err1Ch := make(chan error, 1)
	err2Ch := make(chan error, 1)
	go func() { _, err := bp.GetPage(t1, p1, ReadWrite); err1Ch <- err }()
	go func() { _, err := bp.GetPage(t2, p0, ReadWrite); err2Ch <- err }()

	// The waiter that loses the cycle keeps its locks until it runs
	// TransactionComplete(false), so clean it up as soon as its result
	// arrives; only then can the other waiter be granted.
	var err1, err2 error
	select {
	case err1 = <-err1Ch:
		if err1 != nil {
			bp.TransactionComplete(t1, false)
		}
		err2 = <-err2Ch
	case err2 = <-err2Ch:
		if err2 != nil {
			bp.TransactionComplete(t2, false)
		}
		err1 = <-err1Ch
	}

	aborted := 0
	if err1 != nil {
		aborted++
		bp.TransactionComplete(t1, false)
	} else {
		bp.TransactionComplete(t1, true)
	}
	if err2 != nil {
		aborted++
		bp.TransactionComplete(t2, false)
	} else {
		bp.TransactionComplete(t2, true)
	}

	if aborted != 1 {
		t.Fatalf("expected exactly one of the two transactions to abort on the cycle, got %d", aborted)
	}
}

func TestScenarioEvictionOfDirtyPageForcesWAL(t *testing.T) {
	desc := intOnlyDesc(t)
	cfg := DefaultConfig()
	cfg.PageSize = 12
	cfg.BufferPoolPages = 1
	rec := &RecordingLogFile{}
	bp := NewBufferPool(cfg, rec, nil)
	catalog := NewCatalog()
	file, err := catalog.AddTable(bp, filepath.Join(t.TempDir(), "t.tbl"), desc, "n")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	p0 := PageId{TableID: file.TableID(), PageNo: 0}
	p1 := PageId{TableID: file.TableID(), PageNo: 1}

	tid := NewTID()
	tup, _ := NewTuple(*desc, []Field{IntField{Value: 1}})
	if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	if _, err := bp.GetPage(tid, p1, ReadWrite); err != nil {
		t.Fatalf("GetPage(p1), expected to trigger eviction of p0: %v", err)
	}

	if len(rec.Records) == 0 {
		t.Fatalf("expected evicting dirty p0 to have logged a write record")
	}
	found := false
	for _, r := range rec.Records {
		if r.After == p0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a logged write record for %v before it was evicted", p0)
	}
	if rec.Forces == 0 {
		t.Errorf("expected Force to have been called before the evicted page's disk write")
	}
	cached := bp.CachedPageIds()
	for _, pid := range cached {
		if pid == p0 {
			t.Errorf("expected p0 to have been evicted to make room for p1")
		}
	}
}

func TestScenarioAbortReload(t *testing.T) {
	desc := intOnlyDesc(t)
	bp := NewBufferPool(DefaultConfig(), NullLogFile{}, nil)
	catalog := NewCatalog()
	file, err := catalog.AddTable(bp, filepath.Join(t.TempDir(), "t.tbl"), desc, "n")
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}

	tid := NewTID()
	bp.BeginTransaction(tid)
	tup, _ := NewTuple(*desc, []Field{IntField{Value: 42}})
	if err := bp.InsertTuple(tid, file.TableID(), tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := bp.TransactionComplete(tid, false); err != nil {
		t.Fatalf("TransactionComplete(abort): %v", err)
	}

	t2 := NewTID()
	bp.BeginTransaction(t2)
	it, err := file.Iterator(t2)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	tup2, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	bp.TransactionComplete(t2, true)
	if tup2 != nil {
		t.Errorf("expected a fresh scan after abort to see zero tuples, found %v", tup2)
	}
}
