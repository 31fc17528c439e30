package pg

import (
	"context"
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5/pgxpool"
)

// lockManager provides session level advisory locks. Each lock is bound to a dedicated pooled connection, which is
// returned to the pool when the lock is released.
type lockManager struct {
	pool *pgxpool.Pool
}

func (m *lockManager) TryAcquire(ctx context.Context, name string) (internal.Lock, bool, error) {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", name).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, err
	}

	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	return &lock{conn: conn, name: name}, true, nil
}

type lock struct {
	conn *pgxpool.Conn
	name string
}

func (l *lock) Release() error {
	defer l.conn.Release()

	var released bool
	if err := l.conn.QueryRow(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", l.name).Scan(&released); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.name, err)
	}
	if !released {
		return fmt.Errorf("lock %s was not held", l.name)
	}
	return nil
}
