package godb

import (
	"log"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// LockType distinguishes a shared (read) lock from an exclusive (write)
// lock.
type LockType int

const (
	Shared LockType = iota
	Exclusive
)

// lockEntry holds the current holders of one page's lock: invariant is
// (exclusive == nil) XOR (shared is empty).
type lockEntry struct {
	shared    map[TransactionID]struct{}
	exclusive *TransactionID
}

func newLockEntry() *lockEntry {
	return &lockEntry{shared: make(map[TransactionID]struct{})}
}

func (e *lockEntry) empty() bool {
	return e.exclusive == nil && len(e.shared) == 0
}

// LockManager enforces two-phase locking at page granularity with
// cycle-based deadlock detection and a bounded-wait timeout backstop.
// Acquisition and release are linearized behind a single mutex/condition
// pair; no lock is ever held across blocking I/O.
type LockManager struct {
	cfg Config
	log *log.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	locks     map[PageId]*lockEntry
	txnPages  map[TransactionID]map[PageId]struct{}
	waitsFor  map[TransactionID]map[TransactionID]struct{}
}

func NewLockManager(cfg Config, logger *log.Logger) *LockManager {
	lm := &LockManager{
		cfg:      cfg,
		log:      logger,
		locks:    make(map[PageId]*lockEntry),
		txnPages: make(map[TransactionID]map[PageId]struct{}),
		waitsFor: make(map[TransactionID]map[TransactionID]struct{}),
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

func (lm *LockManager) logf(format string, args ...any) {
	if lm.log != nil {
		lm.log.Printf(format, args...)
	}
}

// Acquire blocks the calling goroutine until tid holds `typ` on pid, or
// returns TransactionAborted if a deadlock is detected or the bounded-wait
// backstop elapses.
func (lm *LockManager) Acquire(tid TransactionID, pid PageId, typ LockType) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	deadline := time.Now().Add(time.Duration(lm.cfg.MaxLockWaitRounds) * lm.cfg.LockWaitUnit)

	// A single timer broadcasts once the bounded-wait backstop elapses, so
	// a blocked waiter is woken even if no other transaction ever releases
	// a lock. Ordinary releases also broadcast (see Release).
	timer := time.AfterFunc(time.Until(deadline), func() {
		lm.mu.Lock()
		lm.cond.Broadcast()
		lm.mu.Unlock()
	})
	defer timer.Stop()

	for {
		entry := lm.locks[pid]
		if entry == nil {
			entry = newLockEntry()
			lm.locks[pid] = entry
		}

		if lm.tryGrantLocked(tid, pid, entry, typ) {
			lm.recordTxnPageLocked(tid, pid)
			return nil
		}

		// Record waits-for edges against every current holder, then check
		// for a cycle involving tid.
		added := lm.addWaitsForLocked(tid, entry)
		if lm.hasCycleFromLocked(tid) {
			lm.rollbackWaitsForLocked(tid, added)
			lm.logf("lock manager: aborting %v, deadlock on %v", tid, pid)
			return newErr(TransactionAbortedKind, "deadlock detected acquiring %v on %v", typ, pid)
		}

		if !time.Now().Before(deadline) {
			lm.rollbackWaitsForLocked(tid, added)
			lm.logf("lock manager: aborting %v, wait timeout on %v", tid, pid)
			return newErr(TransactionAbortedKind, "timed out acquiring %v on %v", typ, pid)
		}

		// Wait releases lm.mu while blocked and reacquires it before
		// returning, so no lock is held across this suspension point.
		lm.cond.Wait()
		lm.rollbackWaitsForLocked(tid, added)
	}
}

// tryGrantLocked implements the lock compatibility and upgrade rules.
// Caller holds lm.mu.
func (lm *LockManager) tryGrantLocked(tid TransactionID, pid PageId, e *lockEntry, typ LockType) bool {
	if e.exclusive != nil && *e.exclusive != tid {
		return false
	}
	switch typ {
	case Shared:
		// The outer check above already ensures that if e.exclusive is set,
		// it's tid's own: grant without adding tid to e.shared too, or the
		// entry would hold both an exclusive and a shared slot for tid at
		// once.
		if e.exclusive != nil {
			return true
		}
		e.shared[tid] = struct{}{}
		return true
	case Exclusive:
		if len(e.shared) > 1 {
			return false
		}
		if len(e.shared) == 1 {
			if _, onlyHolder := e.shared[tid]; !onlyHolder {
				return false
			}
		}
		if e.exclusive != nil && *e.exclusive != tid {
			return false
		}
		delete(e.shared, tid)
		tidCopy := tid
		e.exclusive = &tidCopy
		return true
	}
	return false
}

func (lm *LockManager) recordTxnPageLocked(tid TransactionID, pid PageId) {
	pages, ok := lm.txnPages[tid]
	if !ok {
		pages = make(map[PageId]struct{})
		lm.txnPages[tid] = pages
	}
	pages[pid] = struct{}{}
	delete(lm.waitsFor[tid], tid)
}

// addWaitsForLocked adds an edge tid -> holder for every transaction
// currently blocking tid on pid, returning the set of edges it added (so
// they can be rolled back if this acquire attempt fails).
func (lm *LockManager) addWaitsForLocked(tid TransactionID, e *lockEntry) []TransactionID {
	var added []TransactionID
	edges, ok := lm.waitsFor[tid]
	if !ok {
		edges = make(map[TransactionID]struct{})
		lm.waitsFor[tid] = edges
	}
	holders := make(map[TransactionID]struct{})
	if e.exclusive != nil {
		holders[*e.exclusive] = struct{}{}
	}
	for h := range e.shared {
		holders[h] = struct{}{}
	}
	for h := range holders {
		if h == tid {
			continue
		}
		if _, already := edges[h]; !already {
			edges[h] = struct{}{}
			added = append(added, h)
		}
	}
	return added
}

func (lm *LockManager) rollbackWaitsForLocked(tid TransactionID, added []TransactionID) {
	edges := lm.waitsFor[tid]
	if edges == nil {
		return
	}
	for _, h := range added {
		delete(edges, h)
	}
}

// hasCycleFromLocked runs a DFS over the waits-for graph starting at tid,
// reporting whether tid is part of a cycle.
func (lm *LockManager) hasCycleFromLocked(tid TransactionID) bool {
	visiting := make(map[TransactionID]bool)
	var dfs func(TransactionID) bool
	dfs = func(cur TransactionID) bool {
		if cur == tid && visiting[cur] {
			return true
		}
		if visiting[cur] {
			return false
		}
		visiting[cur] = true
		for next := range lm.waitsFor[cur] {
			if next == tid {
				return true
			}
			if dfs(next) {
				return true
			}
		}
		visiting[cur] = false
		return false
	}
	for next := range lm.waitsFor[tid] {
		if dfs(next) {
			return true
		}
	}
	return false
}

// Release removes tid from whichever side of pid's lock entry holds it,
// independent of which branch. Waiters are broadcast so they can
// re-evaluate.
func (lm *LockManager) Release(tid TransactionID, pid PageId) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.releaseLocked(tid, pid)
	lm.cond.Broadcast()
}

func (lm *LockManager) releaseLocked(tid TransactionID, pid PageId) {
	e, ok := lm.locks[pid]
	if !ok {
		return
	}
	delete(e.shared, tid)
	if e.exclusive != nil && *e.exclusive == tid {
		e.exclusive = nil
	}
	if e.empty() {
		delete(lm.locks, pid)
	}
	if pages, ok := lm.txnPages[tid]; ok {
		delete(pages, pid)
	}
}

// HoldsLock reports whether tid currently holds any lock on pid.
func (lm *LockManager) HoldsLock(tid TransactionID, pid PageId) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	e, ok := lm.locks[pid]
	if !ok {
		return false
	}
	if e.exclusive != nil && *e.exclusive == tid {
		return true
	}
	_, ok = e.shared[tid]
	return ok
}

// TxnPages returns a snapshot copy of the pages touched under any lock by
// tid.
func (lm *LockManager) TxnPages(tid TransactionID) []PageId {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pages := lm.txnPages[tid]
	if pages == nil {
		return nil
	}
	return maps.Keys(pages)
}

// TransactionComplete removes all remaining bookkeeping for tid: it
// releases any lock tid still holds, then drops tid's txnPages entry and
// every waits-for edge tid has as a source. The buffer pool calls it after
// its own per-page Release calls; used alone it releases everything.
func (lm *LockManager) TransactionComplete(tid TransactionID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for pid := range maps.Clone(lm.txnPages[tid]) {
		lm.releaseLocked(tid, pid)
	}
	delete(lm.txnPages, tid)
	delete(lm.waitsFor, tid)
	lm.cond.Broadcast()
}
