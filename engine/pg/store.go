package pg

import (
	"context"
	"errors"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type pgStore struct {
	pool           *pgxpool.Pool
	isolationLevel pgx.TxIsoLevel
	timeout        time.Duration // utilized when the context has no deadline
}

func (s *pgStore) Begin(ctx context.Context) (internal.Tx, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		cancel = func() {}
	} else {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: s.isolationLevel})
	if err != nil {
		cancel()
		return nil, err
	}

	return &pgTx{tx: tx, txCtx: ctx, cancel: cancel}, nil
}

func (s *pgStore) Close() {
	s.pool.Close()
}

// IsTransient reports whether err is a serialization failure or a detected deadlock.
// Such errors are spurious under serializable isolation and the command can be retried.
func (s *pgStore) IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

type pgTx struct {
	tx     pgx.Tx
	txCtx  context.Context
	cancel context.CancelFunc
}

func (tx *pgTx) Commit() error {
	defer tx.cancel()
	return tx.tx.Commit(tx.txCtx)
}

func (tx *pgTx) Rollback() error {
	defer tx.cancel()
	return tx.tx.Rollback(tx.txCtx)
}

func (tx *pgTx) EventSubscriptions() internal.EventSubscriptionRepository {
	return eventSubscriptionRepository{tx: tx.tx, txCtx: tx.txCtx}
}

func (tx *pgTx) Executions() internal.ExecutionRepository {
	return executionRepository{tx: tx.tx, txCtx: tx.txCtx}
}

func (tx *pgTx) Processes() internal.ProcessRepository {
	return processRepository{tx: tx.tx, txCtx: tx.txCtx}
}

func (tx *pgTx) Variables() internal.VariableRepository {
	return variableRepository{tx: tx.tx, txCtx: tx.txCtx}
}
