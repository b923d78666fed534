package godb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// HeapFile is an unordered collection of tuples backed by one regular file:
// a sequence of HeapPages, each exactly Config.PageSize bytes, knowing its
// table id and schema.
type HeapFile struct {
	path     string
	tableID  int32
	desc     *TupleDesc
	pageSize int
	bp       *BufferPool
	extendMu sync.Mutex // exclusive coordination for appending a new page
}

// NewHeapFile opens (creating if absent) the backing file at path for the
// given schema, fetching its pages through bp. It does not register the
// file with bp; Catalog.AddTable does that. tableID is normally produced
// by tableIDFor(path).
func NewHeapFile(path string, tableID int32, desc *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, wrapErr(IoErrorKind, err, "opening heap file %s", path)
	}
	f.Close()
	return &HeapFile{path: path, tableID: tableID, desc: desc, pageSize: bp.cfg.PageSize, bp: bp}, nil
}

func (f *HeapFile) TableID() int32         { return f.tableID }
func (f *HeapFile) Descriptor() *TupleDesc { return f.desc }
func (f *HeapFile) Path() string           { return f.path }

// NumPages is floor(file length / PageSize).
func (f *HeapFile) NumPages() (int, error) {
	fi, err := os.Stat(f.path)
	if err != nil {
		return 0, wrapErr(IoErrorKind, err, "stat %s", f.path)
	}
	return int(fi.Size() / int64(f.pageSize)), nil
}

// readPage seeks to pid's offset and reads exactly PageSize bytes,
// zero-filling on a short read at EOF.
func (f *HeapFile) readPage(pid PageId) (*HeapPage, error) {
	if pid.TableID != f.tableID {
		return nil, newErr(NotFoundKind, "page %v does not belong to table %d", pid, f.tableID)
	}
	file, err := os.OpenFile(f.path, os.O_RDONLY, 0666)
	if err != nil {
		return nil, wrapErr(IoErrorKind, err, "opening %s for read", f.path)
	}
	defer file.Close()

	offset := int64(pid.PageNo) * int64(f.pageSize)
	buf := make([]byte, f.pageSize)
	n, err := file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, wrapErr(IoErrorKind, err, "reading page %v", pid)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return newHeapPageFromBytes(pid, f.desc, f.pageSize, buf)
}

// writePage writes PageSize bytes at pid's offset, extending the file if
// needed.
func (f *HeapFile) writePage(p *HeapPage) error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return wrapErr(IoErrorKind, err, "opening %s for write", f.path)
	}
	defer file.Close()

	raw, err := p.Serialize()
	if err != nil {
		return err
	}
	offset := int64(p.id.PageNo) * int64(f.pageSize)
	if _, err := file.WriteAt(raw, offset); err != nil {
		return wrapErr(IoErrorKind, err, "writing page %v", p.id)
	}
	return nil
}

// insertTuple scans pages 0..numPages under READ_WRITE looking for space;
// if none has room it writes a fresh empty page at the end, extending the
// file under exclusive coordination, and inserts into the in-memory copy
// of that page. Returns the single page that was dirtied.
func (f *HeapFile) insertTuple(tid TransactionID, t *Tuple) (*HeapPage, error) {
	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	for i := 0; i < numPages; i++ {
		page, err := f.bp.GetPage(tid, PageId{TableID: f.tableID, PageNo: int32(i)}, ReadWrite)
		if err != nil {
			return nil, err
		}
		if page.NumEmptySlots() == 0 {
			continue
		}
		if err := page.InsertTuple(t); err != nil {
			return nil, err
		}
		return page, nil
	}

	f.extendMu.Lock()
	defer f.extendMu.Unlock()
	// Re-check: another goroutine may have extended the file while we
	// waited for the lock.
	numPages, err = f.NumPages()
	if err != nil {
		return nil, err
	}
	newPage := newEmptyHeapPage(PageId{TableID: f.tableID, PageNo: int32(numPages)}, f.desc, f.pageSize)
	if err := f.writePage(newPage); err != nil {
		return nil, err
	}
	if err := newPage.InsertTuple(t); err != nil {
		return nil, err
	}
	return newPage, nil
}

// deleteTuple fetches t.Rid.Page under READ_WRITE and deletes t from it,
// returning the dirtied page.
func (f *HeapFile) deleteTuple(tid TransactionID, t *Tuple) (*HeapPage, error) {
	if t.Rid == nil {
		return nil, newErr(NotFoundKind, "tuple has no record id")
	}
	page, err := f.bp.GetPage(tid, t.Rid.Page, ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := page.DeleteTuple(t); err != nil {
		return nil, err
	}
	return page, nil
}

// heapFileIterator is a restartable iterator over all tuples of a HeapFile,
// concatenating per-page iterators across page numbers 0..numPages, each
// page fetched through the buffer pool with READ_ONLY.
type heapFileIterator struct {
	f        *HeapFile
	tid      TransactionID
	pageNo   int
	numPages int
	cur      func() (*Tuple, error)
}

// Iterator returns a lazy, finite, restartable sequence over the file's
// tuples.
func (f *HeapFile) Iterator(tid TransactionID) (*heapFileIterator, error) {
	numPages, err := f.NumPages()
	if err != nil {
		return nil, err
	}
	return &heapFileIterator{f: f, tid: tid, numPages: numPages}, nil
}

func (it *heapFileIterator) Rewind() error {
	numPages, err := it.f.NumPages()
	if err != nil {
		return err
	}
	it.pageNo = 0
	it.numPages = numPages
	it.cur = nil
	return nil
}

func (it *heapFileIterator) Next() (*Tuple, error) {
	for {
		if it.cur == nil {
			if it.pageNo >= it.numPages {
				return nil, nil
			}
			page, err := it.f.bp.GetPage(it.tid, PageId{TableID: it.f.tableID, PageNo: int32(it.pageNo)}, ReadOnly)
			if err != nil {
				return nil, err
			}
			it.cur = page.Iterator()
		}
		t, err := it.cur()
		if err != nil {
			return nil, err
		}
		if t == nil {
			it.cur = nil
			it.pageNo++
			continue
		}
		return t, nil
	}
}

// LoadFromCSV loads rows from a comma-or-sep-delimited file into the heap
// file under a single committed transaction. hasHeader skips the first
// line; skipLastField drops a trailing empty column some exported datasets
// carry.
func (f *HeapFile) LoadFromCSV(r io.Reader, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	tid := NewTID()
	if err := f.bp.BeginTransaction(tid); err != nil {
		return err
	}
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		cols := strings.Split(line, sep)
		if skipLastField && len(cols) > 0 {
			cols = cols[:len(cols)-1]
		}
		if lineNo == 1 && hasHeader {
			continue
		}
		if len(cols) != len(f.desc.Fields) {
			f.bp.TransactionComplete(tid, false)
			return newErr(DbErrorKind, "LoadFromCSV: line %d has %d fields, want %d", lineNo, len(cols), len(f.desc.Fields))
		}
		fields := make([]Field, len(cols))
		for i, raw := range cols {
			switch f.desc.Fields[i].Ftype.Kind {
			case IntType:
				v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
				if err != nil {
					f.bp.TransactionComplete(tid, false)
					return newErr(DbErrorKind, "LoadFromCSV: line %d: %v", lineNo, err)
				}
				fields[i] = IntField{Value: int32(v)}
			case StringType:
				width := f.desc.Fields[i].Ftype.Len
				if len(raw) > width {
					raw = raw[:width]
				}
				fields[i] = StringField{Value: raw, Width: width}
			}
		}
		t, err := NewTuple(*f.desc, fields)
		if err != nil {
			f.bp.TransactionComplete(tid, false)
			return err
		}
		if err := f.bp.InsertTuple(tid, f.tableID, t); err != nil {
			f.bp.TransactionComplete(tid, false)
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		f.bp.TransactionComplete(tid, false)
		return wrapErr(IoErrorKind, err, "scanning csv")
	}
	f.bp.TransactionComplete(tid, true)
	return nil
}

func (f *HeapFile) String() string {
	return fmt.Sprintf("HeapFile(%s, table=%d)", f.path, f.tableID)
}
