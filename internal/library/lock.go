package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockFileName = ".mptreasury.lock"

// Lock is an advisory lock on a library root, held while an album is
// checked for duplicates, relocated and persisted. It excludes other
// processes through a lock file and other goroutines through a semaphore.
type Lock struct {
	path string
	file *flock.Flock
	sem  chan struct{}
}

// NewLock creates the lock for the library at root.
func NewLock(root string) *Lock {
	path := filepath.Join(root, lockFileName)
	return &Lock{path: path, file: flock.New(path), sem: make(chan struct{}, 1)}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *Lock) Lock(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		<-l.sem
		return fmt.Errorf("create library directory: %w", err)
	}
	ok, err := l.file.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil || !ok {
		<-l.sem
		if err == nil {
			err = fmt.Errorf("held by another process")
		}
		return fmt.Errorf("acquire library lock %s: %w", l.path, err)
	}
	return nil
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	defer func() { <-l.sem }()
	return l.file.Unlock()
}
