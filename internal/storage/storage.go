// Package storage deletes stored avatar files.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrInvalidKey is returned when a key is empty, malformed or escapes the
// store root.
var ErrInvalidKey = errors.New("invalid storage key")

// Store removes previously stored files. Deleting a key that does not exist
// succeeds.
type Store interface {
	Delete(ctx context.Context, key string) error
}

// Remover deletes files in the background, detached from the request that
// scheduled them. Failures are logged and never reported to the caller.
type Remover struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRemover creates a Remover that gives each deletion at most timeout.
func NewRemover(store Store, timeout time.Duration, logger *slog.Logger) *Remover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remover{store: store, timeout: timeout, logger: logger}
}

// Schedule queues key for deletion. Empty keys and remote URLs are ignored.
func (r *Remover) Schedule(key string) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "://") {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.store.Delete(ctx, key); err != nil {
			r.logger.Error("failed to delete avatar",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return
		}
		r.logger.Debug("avatar deleted", slog.String("key", key))
	}()
}

// Wait blocks until every scheduled deletion finished or ctx is done.
func (r *Remover) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
