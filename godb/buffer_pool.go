package godb

import (
	"log"
	"math/rand"
	"sync"
)

// BufferPool is the bounded cache of pages that mediates every tuple read
// and write between operators and disk. It routes
// page fetches through the LockManager, loads misses via the owning
// HeapFile, performs random-choice eviction under STEAL semantics (a dirty
// page is flushed -- logged and forced -- before it may be evicted), and
// orchestrates commit/abort.
type BufferPool struct {
	cfg    Config
	lm     *LockManager
	logf   LogFile
	logger *log.Logger
	rng    *rand.Rand

	mu    sync.Mutex
	cache map[PageId]*HeapPage
	files map[int32]*HeapFile
}

// NewBufferPool constructs a pool bounded at cfg.BufferPoolPages, logging
// WAL and eviction events through logger (nil disables logging) and
// appending write-ahead records to wal.
func NewBufferPool(cfg Config, wal LogFile, logger *log.Logger) *BufferPool {
	seed := cfg.EvictionSeed
	if seed == 0 {
		seed = 1
	}
	return &BufferPool{
		cfg:    cfg,
		lm:     NewLockManager(cfg, logger),
		logf:   wal,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		cache:  make(map[PageId]*HeapPage),
		files:  make(map[int32]*HeapFile),
	}
}

func (bp *BufferPool) logln(format string, args ...any) {
	if bp.logger != nil {
		bp.logger.Printf(format, args...)
	}
}

// registerFile makes f's pages loadable on a cache miss. Called by
// Catalog.AddTable.
func (bp *BufferPool) registerFile(f *HeapFile) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.files[f.TableID()] = f
}

func (bp *BufferPool) fileFor(tableID int32) (*HeapFile, error) {
	bp.mu.Lock()
	f, ok := bp.files[tableID]
	bp.mu.Unlock()
	if !ok {
		return nil, newErr(NotFoundKind, "no HeapFile registered for table %d", tableID)
	}
	return f, nil
}

// BeginTransaction is a bookkeeping no-op in this design -- TransactionID
// values are self-contained and lock/page tracking is created lazily on
// first acquire -- kept as an explicit call so callers have one clear place
// to mark a transaction's start.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	return nil
}

// GetPage acquires the permission-appropriate lock (blocking, possibly
// aborting with TransactionAborted), then returns the cached page for pid;
// on a miss it evicts pages while the cache is full and loads pid from its
// HeapFile. The returned pointer is an aliasable, logically borrowed reference
// valid until TransactionComplete(tid, ...) is called.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageId, perm RWPerm) (*HeapPage, error) {
	lockType := Shared
	if perm == ReadWrite {
		lockType = Exclusive
	}
	if err := bp.lm.Acquire(tid, pid, lockType); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if page, ok := bp.cache[pid]; ok {
		return page, nil
	}

	for len(bp.cache) >= bp.cfg.BufferPoolPages {
		if err := bp.evictOneLocked(); err != nil {
			return nil, err
		}
	}

	f, ok := bp.files[pid.TableID]
	if !ok {
		return nil, newErr(NotFoundKind, "no HeapFile registered for table %d", pid.TableID)
	}
	page, err := f.readPage(pid)
	if err != nil {
		return nil, err
	}
	bp.cache[pid] = page
	return page, nil
}

// evictOneLocked removes one page chosen uniformly at random from the
// cache. A dirty page is flushed first (STEAL). Caller holds bp.mu.
func (bp *BufferPool) evictOneLocked() error {
	if len(bp.cache) == 0 {
		return newErr(NotEnoughSpaceKind, "NoEvictable: buffer pool cache is empty, nothing to evict")
	}
	victims := make([]PageId, 0, len(bp.cache))
	for pid := range bp.cache {
		victims = append(victims, pid)
	}
	pid := victims[bp.rng.Intn(len(victims))]
	page := bp.cache[pid]
	if dirty, _ := page.IsDirty(); dirty {
		if err := bp.flushPageLocked(pid); err != nil {
			return err
		}
	}
	bp.logln("buffer pool: evicting %v", pid)
	delete(bp.cache, pid)
	return nil
}

// InsertTuple delegates to tableID's HeapFile, then marks the returned page
// dirty under tid and ensures it is tracked by the lock manager and cache
// (the HeapFile's extend-the-file path writes a fresh page directly to
// disk without going through GetPage, so it needs to be picked up here).
func (bp *BufferPool) InsertTuple(tid TransactionID, tableID int32, t *Tuple) error {
	f, err := bp.fileFor(tableID)
	if err != nil {
		return err
	}
	page, err := f.insertTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.adoptDirtyPage(tid, page)
}

// DeleteTuple delegates to t.Rid.Page's HeapFile and marks the returned
// page dirty under tid.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t *Tuple) error {
	if t.Rid == nil {
		return newErr(NotFoundKind, "tuple has no record id")
	}
	f, err := bp.fileFor(t.Rid.Page.TableID)
	if err != nil {
		return err
	}
	page, err := f.deleteTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.adoptDirtyPage(tid, page)
}

// adoptDirtyPage ensures the lock manager and cache both track page (the
// HeapFile may have fetched it through GetPage already, in which case this
// is idempotent, or synthesized and written it directly while extending
// the file, in which case this is the first time it is tracked) and marks
// it dirty under tid.
func (bp *BufferPool) adoptDirtyPage(tid TransactionID, page *HeapPage) error {
	if err := bp.lm.Acquire(tid, page.PageId(), Exclusive); err != nil {
		return err
	}
	bp.mu.Lock()
	if _, cached := bp.cache[page.PageId()]; !cached {
		for len(bp.cache) >= bp.cfg.BufferPoolPages {
			if err := bp.evictOneLocked(); err != nil {
				bp.mu.Unlock()
				return err
			}
		}
		bp.cache[page.PageId()] = page
	}
	bp.mu.Unlock()
	page.MarkDirty(true, tid)
	return nil
}

// flushPageLocked logs (before-image, after-image, dirtying tid), forces
// the log, then writes the page to its HeapFile and clears its dirty flag.
// No-op for a clean or uncached page. Caller holds bp.mu.
func (bp *BufferPool) flushPageLocked(pid PageId) error {
	page, ok := bp.cache[pid]
	if !ok {
		return nil
	}
	dirty, tid := page.IsDirty()
	if !dirty {
		return nil
	}
	before, err := page.GetBeforeImage()
	if err != nil {
		return err
	}
	if err := bp.logf.LogWrite(tid, before, page); err != nil {
		return wrapErr(IoErrorKind, err, "logging write for %v", pid)
	}
	if err := bp.logf.Force(); err != nil {
		return wrapErr(IoErrorKind, err, "forcing WAL for %v", pid)
	}
	bp.logln("buffer pool: flushing %v dirtied by %v", pid, tid)
	f, err := bp.fileFor(pid.TableID)
	if err != nil {
		return err
	}
	if err := f.writePage(page); err != nil {
		return err
	}
	page.MarkDirty(false, 0)
	return nil
}

// FlushPage is the exported, lock-guarded form of flushPageLocked.
func (bp *BufferPool) FlushPage(pid PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushPageLocked(pid)
}

// FlushAllPages flushes every cached page.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid := range bp.cache {
		if err := bp.flushPageLocked(pid); err != nil {
			return err
		}
	}
	return nil
}

// flushPages flushes every page tid has touched that is still cached and
// still dirty by tid.
func (bp *BufferPool) flushPages(tid TransactionID) error {
	for _, pid := range bp.lm.TxnPages(tid) {
		bp.mu.Lock()
		page, ok := bp.cache[pid]
		if !ok {
			bp.mu.Unlock()
			continue
		}
		dirty, dirtier := page.IsDirty()
		if !dirty || dirtier != tid {
			bp.mu.Unlock()
			continue
		}
		err := bp.flushPageLocked(pid)
		bp.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without flushing it, for callers
// that know better than the pool (tests constructing specific disk states).
func (bp *BufferPool) DiscardPage(pid PageId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.cache, pid)
}

// TransactionComplete finishes tid's transaction. On commit, every cached
// page still dirtied by tid is logged, forced, and written to its HeapFile;
// every page tid touched that is still cached gets a fresh before-image and
// stays cached, now clean; then all of tid's locks are released. On abort, every page tid touched is reloaded
// from disk -- undo-from-disk -- before its lock is released.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	pages := bp.lm.TxnPages(tid)
	if commit {
		if err := bp.flushPages(tid); err != nil {
			return err
		}
		bp.mu.Lock()
		for _, pid := range pages {
			if page, ok := bp.cache[pid]; ok {
				page.SetBeforeImage()
			}
		}
		bp.mu.Unlock()
	} else {
		bp.mu.Lock()
		for _, pid := range pages {
			if _, cached := bp.cache[pid]; !cached {
				continue
			}
			f, err := bp.fileFor(pid.TableID)
			if err != nil {
				bp.mu.Unlock()
				return err
			}
			fresh, err := f.readPage(pid)
			if err != nil {
				bp.mu.Unlock()
				return err
			}
			bp.cache[pid] = fresh
			bp.logln("buffer pool: reloaded %v from disk aborting %v", pid, tid)
		}
		bp.mu.Unlock()
	}
	for _, pid := range pages {
		bp.lm.Release(tid, pid)
	}
	bp.lm.TransactionComplete(tid)
	return nil
}

// ReleasePage directly releases tid's lock on pid, bypassing
// TransactionComplete's flush/reload bookkeeping. Documented as unsafe for
// correctness; it exists only so tests can construct specific
// interleavings.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageId) {
	bp.lm.Release(tid, pid)
}

// CachedPageIds returns a snapshot of the page ids currently cached, for
// tests asserting the cache-bound invariant.
func (bp *BufferPool) CachedPageIds() []PageId {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	ids := make([]PageId, 0, len(bp.cache))
	for pid := range bp.cache {
		ids = append(ids, pid)
	}
	return ids
}
