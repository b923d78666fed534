// Package wal is a concrete file-backed godb.LogFile: every record is a
// full before/after page-image pair, appended before the buffer pool
// writes the corresponding page to its HeapFile and fsynced before the
// buffer pool proceeds with the real write or releases the writer's lock.
//
// Replaying the log to redo or undo a crash is out of scope; ReadAll
// exists only so tests can assert what was logged.
package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"heapdb/godb"
)

const writeRecordKind byte = 1

// FileLog appends records to a single regular file. Each FileLog that
// NewFileLog opens is tagged with a fresh generation id (not persisted or
// checked on reopen, since replay is out of scope); it exists to make log
// files from distinct runs distinguishable by inspection.
type FileLog struct {
	mu         sync.Mutex
	f          *os.File
	pageSize   int
	generation uuid.UUID
}

// NewFileLog opens (creating if absent) the log file at path.
func NewFileLog(path string, pageSize int) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0666)
	if err != nil {
		return nil, godb.Errorf(godb.IoErrorKind, "opening log file %s: %v", path, err)
	}
	return &FileLog{f: f, pageSize: pageSize, generation: uuid.New()}, nil
}

func (l *FileLog) Generation() uuid.UUID { return l.generation }

// LogWrite appends one record: [4-byte BE length][1-byte kind][8-byte
// tid][8-byte table id][8-byte page number][pageSize before-image]
// [pageSize after-image]. Length counts everything after the length
// prefix itself.
func (l *FileLog) LogWrite(tid godb.TransactionID, before, after *godb.HeapPage) error {
	if before.PageId() != after.PageId() {
		return godb.Errorf(godb.DbErrorKind, "LogWrite: before/after page id mismatch (%v vs %v)", before.PageId(), after.PageId())
	}
	beforeBytes, err := before.Serialize()
	if err != nil {
		return err
	}
	afterBytes, err := after.Serialize()
	if err != nil {
		return err
	}

	pid := after.PageId()
	body := make([]byte, 0, 1+8+8+8+len(beforeBytes)+len(afterBytes))
	body = append(body, writeRecordKind)
	body = appendBE64(body, uint64(tid))
	body = appendBE64(body, uint64(pid.TableID))
	body = appendBE64(body, uint64(pid.PageNo))
	body = append(body, beforeBytes...)
	body = append(body, afterBytes...)

	l.mu.Lock()
	defer l.mu.Unlock()
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := l.f.Write(lenPrefix[:]); err != nil {
		return godb.Errorf(godb.IoErrorKind, "writing log record length: %v", err)
	}
	if _, err := l.f.Write(body); err != nil {
		return godb.Errorf(godb.IoErrorKind, "writing log record body: %v", err)
	}
	return nil
}

// Force fsyncs every record written so far.
func (l *FileLog) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.f.Sync(); err != nil {
		return godb.Errorf(godb.IoErrorKind, "fsyncing log file: %v", err)
	}
	return nil
}

func (l *FileLog) Close() error {
	return l.f.Close()
}

func appendBE64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

// Record is one parsed log entry, for test assertions.
type Record struct {
	Tid    godb.TransactionID
	PageID godb.PageId
	Before *godb.HeapPage
	After  *godb.HeapPage
}

// ReadAll parses every record in the log file at path under desc/pageSize.
// Test-only: there is no redo/undo replay path in this package.
func ReadAll(path string, desc *godb.TupleDesc, pageSize int) ([]Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, godb.Errorf(godb.IoErrorKind, "reading log file %s: %v", path, err)
	}
	var records []Record
	r := bytes.NewReader(raw)
	for {
		var lenPrefix [4]byte
		_, err := io.ReadFull(r, lenPrefix[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, godb.Errorf(godb.IoErrorKind, "reading log record length: %v", err)
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, godb.Errorf(godb.IoErrorKind, "reading log record body: %v", err)
		}
		rec, err := parseRecord(body, desc, pageSize)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(body []byte, desc *godb.TupleDesc, pageSize int) (Record, error) {
	if len(body) < 1+8+8+8+2*pageSize {
		return Record{}, godb.Errorf(godb.DbErrorKind, "log record too short: %d bytes", len(body))
	}
	if body[0] != writeRecordKind {
		return Record{}, fmt.Errorf("unknown log record kind %d", body[0])
	}
	off := 1
	tid := godb.TransactionID(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	tableID := int32(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	pageNo := int32(binary.BigEndian.Uint64(body[off : off+8]))
	off += 8
	pid := godb.PageId{TableID: tableID, PageNo: pageNo}

	beforeBytes := body[off : off+pageSize]
	off += pageSize
	afterBytes := body[off : off+pageSize]

	before, err := godb.NewHeapPageFromBytes(pid, desc, pageSize, beforeBytes)
	if err != nil {
		return Record{}, err
	}
	after, err := godb.NewHeapPageFromBytes(pid, desc, pageSize, afterBytes)
	if err != nil {
		return Record{}, err
	}
	return Record{Tid: tid, PageID: pid, Before: before, After: after}, nil
}
