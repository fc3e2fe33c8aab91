// Package flock serializes work on shared on-disk state across processes
// using advisory file locks.
package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Defaults for Options fields left at zero.
const (
	DefaultWait       = 10 * time.Second
	DefaultRetryDelay = 100 * time.Millisecond
	DefaultRetries    = 10
)

// ErrTimeout is returned when the lock could not be acquired within
// Retries+1 wait windows.
var ErrTimeout = errors.New("timed out waiting for lock")

// Options bounds lock acquisition.
type Options struct {
	// Wait is the length of one acquisition attempt.
	Wait time.Duration

	// RetryDelay is the polling interval within an attempt.
	RetryDelay time.Duration

	// Retries is the number of additional attempts after the first one.
	Retries int
}

func (o Options) withDefaults() Options {
	if o.Wait <= 0 {
		o.Wait = DefaultWait
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = DefaultRetries
	}
	return o
}

// WithLock acquires an exclusive lock on path, runs fn and releases the lock,
// whether fn returns an error or panics. The parent directory of path is
// created if needed.
func WithLock(ctx context.Context, path string, opts Options, fn func() error) (err error) {
	opts = opts.withDefaults()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %s: %w", path, err)
	}

	lock := flock.New(path)
	if err := acquire(ctx, lock, opts); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("failed to release lock %s: %w", path, unlockErr)
		}
	}()

	return fn()
}

func acquire(ctx context.Context, lock *flock.Flock, opts Options) error {
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, opts.Wait)
		locked, err := lock.TryLockContext(attemptCtx, opts.RetryDelay)
		cancel()
		if locked {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return ErrTimeout
}
