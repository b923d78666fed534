package wal

import (
	"path/filepath"
	"testing"

	"heapdb/godb"
)

const testPageSize = 4096

func testDesc(t *testing.T) *godb.TupleDesc {
	t.Helper()
	desc, err := godb.NewTupleDesc(
		godb.FieldDesc{Name: "name", Ftype: godb.StringT(8)},
		godb.FieldDesc{Name: "age", Ftype: godb.IntT()},
	)
	if err != nil {
		t.Fatalf("NewTupleDesc: %v", err)
	}
	return desc
}

func emptyPage(t *testing.T, pid godb.PageId, desc *godb.TupleDesc) *godb.HeapPage {
	t.Helper()
	p, err := godb.NewHeapPageFromBytes(pid, desc, testPageSize, make([]byte, testPageSize))
	if err != nil {
		t.Fatalf("NewHeapPageFromBytes: %v", err)
	}
	return p
}

func TestFileLogWriteAndReadAllRoundTrip(t *testing.T) {
	desc := testDesc(t)
	pid := godb.PageId{TableID: 1, PageNo: 0}

	before := emptyPage(t, pid, desc)
	after := emptyPage(t, pid, desc)
	tup, _ := godb.NewTuple(*desc, []godb.Field{godb.StringField{Value: "alice", Width: 8}, godb.IntField{Value: 1}})
	if err := after.InsertTuple(tup); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}

	path := filepath.Join(t.TempDir(), "wal.log")
	log, err := NewFileLog(path, testPageSize)
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	tid := godb.NewTID()
	if err := log.LogWrite(tid, before, after); err != nil {
		t.Fatalf("LogWrite: %v", err)
	}
	if err := log.Force(); err != nil {
		t.Fatalf("Force: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records, err := ReadAll(path, desc, testPageSize)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Tid != tid {
		t.Errorf("expected tid %v, got %v", tid, records[0].Tid)
	}
	if records[0].PageID != pid {
		t.Errorf("expected page id %v, got %v", pid, records[0].PageID)
	}
	if records[0].Before.NumEmptySlots() == records[0].After.NumEmptySlots() {
		t.Errorf("expected the before and after images to differ after an insert")
	}
}

func TestFileLogRejectsMismatchedPageIDs(t *testing.T) {
	desc := testDesc(t)
	before := emptyPage(t, godb.PageId{TableID: 1, PageNo: 0}, desc)
	after := emptyPage(t, godb.PageId{TableID: 1, PageNo: 1}, desc)

	log, err := NewFileLog(filepath.Join(t.TempDir(), "wal.log"), testPageSize)
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	if err := log.LogWrite(godb.NewTID(), before, after); err == nil {
		t.Fatalf("expected an error logging mismatched before/after page ids")
	}
}

func TestFileLogGenerationIsUnique(t *testing.T) {
	l1, err := NewFileLog(filepath.Join(t.TempDir(), "a.log"), testPageSize)
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	l2, err := NewFileLog(filepath.Join(t.TempDir(), "b.log"), testPageSize)
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	if l1.Generation() == l2.Generation() {
		t.Errorf("expected two FileLogs to be tagged with distinct generation ids")
	}
}
