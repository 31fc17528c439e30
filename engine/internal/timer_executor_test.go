package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerExecutor(t *testing.T) {
	store := newFakeStore()
	runtime := mustCreateRuntime(t, RuntimeConfig{Store: store})

	executor := NewTimerExecutor(runtime, time.Millisecond, 10)
	executor.Execute()

	assert.Eventually(t, func() bool {
		store.mutex.Lock()
		defer store.mutex.Unlock()
		return store.selectDueCalls >= 2
	}, time.Second, time.Millisecond)

	executor.Stop()

	store.mutex.Lock()
	calls := store.selectDueCalls
	store.mutex.Unlock()

	time.Sleep(5 * time.Millisecond)

	store.mutex.Lock()
	defer store.mutex.Unlock()
	assert.Equal(t, calls, store.selectDueCalls)
}
