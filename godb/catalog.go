package godb

import (
	"hash/fnv"
	"path/filepath"
	"sync"
)

// catalogEntry is one table's registration: its HeapFile, schema, and
// primary key field name.
type catalogEntry struct {
	file       *HeapFile
	desc       *TupleDesc
	primaryKey string
}

// Catalog is a registry mapping table id to HeapFile, schema, and primary
// key name. It is an explicitly-constructed object rather than a
// package-level singleton, so a process may run more than one
// Catalog/BufferPool pair.
type Catalog struct {
	mu      sync.RWMutex
	entries map[int32]*catalogEntry
	byPath  map[string]int32
}

func NewCatalog() *Catalog {
	return &Catalog{
		entries: make(map[int32]*catalogEntry),
		byPath:  make(map[string]int32),
	}
}

// tableIDFor derives a stable table id from the canonical absolute path of
// path, so that restarts of the same file reproduce the same id.
func tableIDFor(path string) (int32, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, wrapErr(IoErrorKind, err, "resolving canonical path for %s", path)
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	// Clear the sign bit so table ids are always non-negative; the low 31
	// bits of a well-distributed 32 bit hash are still effectively unique
	// for the number of tables a single process will ever register.
	return int32(h.Sum32() & 0x7fffffff), nil
}

// AddTable registers a HeapFile at path with the given schema and primary
// key field name (which need not currently exist as a unique-constraint
// enforcement -- the core does not enforce uniqueness, only remembers the
// name for the embedding layer).
func (c *Catalog) AddTable(bp *BufferPool, path string, desc *TupleDesc, primaryKey string) (*HeapFile, error) {
	id, err := tableIDFor(path)
	if err != nil {
		return nil, err
	}
	file, err := NewHeapFile(path, id, desc, bp)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = &catalogEntry{file: file, desc: desc, primaryKey: primaryKey}
	c.byPath[path] = id
	bp.registerFile(file)
	return file, nil
}

// GetFile returns the HeapFile registered for tableID.
func (c *Catalog) GetFile(tableID int32) (*HeapFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[tableID]
	if !ok {
		return nil, newErr(NotFoundKind, "no table registered with id %d", tableID)
	}
	return e.file, nil
}

// GetFileByPath returns the HeapFile registered at path.
func (c *Catalog) GetFileByPath(path string) (*HeapFile, error) {
	c.mu.RLock()
	id, ok := c.byPath[path]
	c.mu.RUnlock()
	if !ok {
		return nil, newErr(NotFoundKind, "no table registered at path %q", path)
	}
	return c.GetFile(id)
}

// PrimaryKey returns the primary key field name registered for tableID.
func (c *Catalog) PrimaryKey(tableID int32) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[tableID]
	if !ok {
		return "", newErr(NotFoundKind, "no table registered with id %d", tableID)
	}
	return e.primaryKey, nil
}
