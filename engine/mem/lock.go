package mem

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/sasha-s/go-deadlock"
)

func newLockManager() *lockManager {
	return &lockManager{held: make(map[string]bool)}
}

// lockManager provides advisory locks within a single process.
type lockManager struct {
	mutex deadlock.Mutex
	held  map[string]bool
}

func (m *lockManager) TryAcquire(_ context.Context, name string) (internal.Lock, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.held[name] {
		return nil, false, nil
	}

	m.held[name] = true
	return &lock{m: m, name: name}, true, nil
}

type lock struct {
	m    *lockManager
	name string
}

func (l *lock) Release() error {
	l.m.mutex.Lock()
	defer l.m.mutex.Unlock()

	delete(l.m.held, l.name)
	return nil
}
