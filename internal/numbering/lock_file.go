package numbering

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileLocker serializes allocations on one host with flock(2) on
// <dir>/<key>.lock.
type FileLocker struct {
	dir   string
	wait  time.Duration
	retry time.Duration
}

// NewFileLocker creates dir when missing. wait bounds how long Acquire
// polls for a held lock (default 5s).
func NewFileLocker(dir string, wait time.Duration) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &FileLocker{dir: dir, wait: wait, retry: 20 * time.Millisecond}, nil
}

func (l *FileLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	path := filepath.Join(l.dir, lockName(key)+".lock")
	// One Flock per attempt: a shared instance would not exclude goroutines.
	fl := flock.New(path)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ok, err := fl.TryLockContext(waitCtx, l.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLockNotObtained, path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, path)
	}
	return func(context.Context) error {
		return fl.Unlock()
	}, nil
}
