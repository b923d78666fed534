package godb

// LogFile is the write-ahead-log sink the buffer pool appends to before any
// page write reaches disk. It is intentionally opaque beyond this
// contract: redo/undo replay from the log is out of scope. A concrete
// file-backed implementation lives in package wal; tests may also use a
// NullLogFile or a recording fake.
type LogFile interface {
	// LogWrite appends a record capturing before's and after's full page
	// images for the page that tid is about to write to disk. Both before
	// and after must be the same PageId.
	LogWrite(tid TransactionID, before, after *HeapPage) error

	// Force durably persists every record appended so far (e.g. fsync).
	// The buffer pool always calls Force after LogWrite and before issuing
	// the corresponding disk write or releasing the writer's lock at
	// commit.
	Force() error
}

// NullLogFile discards every record. It satisfies the LogFile contract
// without durability, for tests that only care about buffer pool/lock
// manager behavior and is never used as the committed-data guarantee.
type NullLogFile struct{}

func (NullLogFile) LogWrite(TransactionID, *HeapPage, *HeapPage) error { return nil }
func (NullLogFile) Force() error                                      { return nil }

// RecordingLogFile records the sequence of calls it receives, for tests
// that assert the WAL invariant (a forced log_write with a matching
// after-image precedes every disk write).
type RecordingLogFile struct {
	Records []LoggedWrite
	Forces  int
}

type LoggedWrite struct {
	Tid    TransactionID
	Before PageId
	After  PageId
}

func (r *RecordingLogFile) LogWrite(tid TransactionID, before, after *HeapPage) error {
	r.Records = append(r.Records, LoggedWrite{Tid: tid, Before: before.PageId(), After: after.PageId()})
	return nil
}

func (r *RecordingLogFile) Force() error {
	r.Forces++
	return nil
}
