package godb

import "time"

// Config holds the tunables spec'd in the external interfaces section: page
// size, buffer pool capacity, and the lock manager's bounded-wait backstop.
// It is passed explicitly wherever it is needed instead of living behind a
// package-level singleton, so a process can run more than one database.
type Config struct {
	PageSize          int
	BufferPoolPages   int
	LockWaitUnit      time.Duration
	MaxLockWaitRounds int
	EvictionSeed      int64
}

// DefaultConfig returns sane defaults: 4096 byte pages, a 50 page buffer
// pool, and two 10 second rounds of lock waiting before a blocked acquire
// is aborted as a backstop against missed deadlock edges.
func DefaultConfig() Config {
	return Config{
		PageSize:          4096,
		BufferPoolPages:   50,
		LockWaitUnit:      10 * time.Second,
		MaxLockWaitRounds: 2,
	}
}
