package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
)

// Store is the durable storage of an engine.
type Store interface {
	// Begin begins a transaction, which is bound to the given context.
	Begin(ctx context.Context) (Tx, error)

	Close()
}

// TransientErrorDetector is implemented by stores, which produce spurious serialization conflicts.
// If a store implements it and retries are enabled, failed commands are retried.
type TransientErrorDetector interface {
	IsTransient(err error) bool
}

// Tx is a storage transaction, which provides the repositories.
type Tx interface {
	Commit() error
	Rollback() error

	EventSubscriptions() EventSubscriptionRepository
	Executions() ExecutionRepository
	Processes() ProcessRepository
	Variables() VariableRepository
}

// LockManager manages named advisory locks, which are visible to all engines sharing a store.
type LockManager interface {
	// TryAcquire tries to acquire a lock without waiting. If the lock is held by another owner, false is returned.
	TryAcquire(ctx context.Context, name string) (Lock, bool, error)
}

type Lock interface {
	Release() error
}

// PollLock acquires a lock by polling the lock manager with a fixed interval.
// If the lock cannot be acquired within the wait timeout, an error of type [engine.ErrorConflict] is returned.
func PollLock(ctx context.Context, lockManager LockManager, name string, pollInterval time.Duration, waitTimeout time.Duration) (Lock, error) {
	deadline := time.Now().Add(waitTimeout)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		lock, ok, err := lockManager.TryAcquire(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			return lock, nil
		}

		if !time.Now().Before(deadline) {
			return nil, engine.Error{
				Type:           engine.ErrorConflict,
				Title:          "failed to acquire lock",
				Detail:         fmt.Sprintf("lock %s could not be acquired within %s", name, waitTimeout),
				ReduceLogLevel: true,
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
