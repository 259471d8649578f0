package numbering

import (
	"context"
	"errors"
)

// ErrLockNotObtained is returned when the allocation lock is held elsewhere
// for longer than the caller was willing to wait.
var ErrLockNotObtained = errors.New("numbering lock not obtained")

// Locker serializes allocations per key. The returned release func must be
// called once the issued row has been appended (or the attempt given up).
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// NoopLocker never blocks. Concurrent issuers may produce the same number.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// lockName turns a key into something safe for a file name or redis key.
func lockName(key string) string {
	b := []byte(key)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		return "default"
	}
	return string(b)
}
