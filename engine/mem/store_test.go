package mem

import (
	"context"
	"testing"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCreateRuntime(t *testing.T) *internal.Runtime {
	store, err := newStore()
	require.NoError(t, err)

	runtime, err := internal.NewRuntime(internal.RuntimeConfig{
		Options:     NewOptions().Common,
		Store:       store,
		LockManager: newLockManager(),
	})
	require.NoError(t, err)

	return runtime
}

func TestNestedCommand(t *testing.T) {
	ctx := context.Background()

	process := &internal.ProcessEntity{Id: "process", BpmnProcessId: "userTaskTest", Version: "1"}

	createProcessInstance := internal.NamedCommand("CreateProcessInstance", func(cc *internal.CommandContext) (any, error) {
		tree, err := cc.ExecutionTree()
		if err != nil {
			return nil, err
		}
		return tree.CreateProcessInstance(process, "", "").Id, nil
	})

	selectExecution := func(t *testing.T, runtime *internal.Runtime, id string) error {
		_, err := runtime.Executor().Execute(ctx, internal.NamedCommand("SelectExecution", func(cc *internal.CommandContext) (any, error) {
			return cc.Tx().Executions().Select(id)
		}))
		return err
	}

	t.Run("reuses transaction", func(t *testing.T) {
		runtime := mustCreateRuntime(t)
		executor := runtime.Executor()

		result, err := executor.Execute(ctx, internal.NamedCommand("Outer", func(cc *internal.CommandContext) (any, error) {
			return executor.Execute(cc.Context(), createProcessInstance)
		}))
		require.NoError(t, err)

		assert.NoError(t, selectExecution(t, runtime, result.(string)))
	})

	t.Run("returns error when new transaction is required", func(t *testing.T) {
		runtime := mustCreateRuntime(t)
		executor := runtime.Executor()

		var (
			id        string
			nestedErr error
		)

		done := make(chan error, 1)
		go func() {
			_, err := executor.Execute(ctx, internal.NamedCommand("Outer", func(cc *internal.CommandContext) (any, error) {
				_, nestedErr = executor.ExecuteWithConfig(cc.Context(), executor.DefaultConfig().RequiresNew(), createProcessInstance)

				result, err := executor.Execute(cc.Context(), createProcessInstance)
				if err != nil {
					return nil, err
				}
				id = result.(string)
				return nil, nil
			}))
			done <- err
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("nested command did not return")
		}

		var engineErr engine.Error
		require.ErrorAs(t, nestedErr, &engineErr)
		assert.Equal(t, engine.ErrorBug, engineErr.Type)

		// outer transaction is committed
		assert.NoError(t, selectExecution(t, runtime, id))

		// a new transaction can be begun afterwards
		_, err := executor.ExecuteWithConfig(ctx, executor.DefaultConfig().RequiresNew(), createProcessInstance)
		assert.NoError(t, err)
	})
}
