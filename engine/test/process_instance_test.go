package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessInstance(t *testing.T) {
	engines, engineTypes := mustCreateEngines(t)
	for _, e := range engines {
		defer e.Shutdown()
	}

	for i, e := range engines {
		userTaskTest := mustCreateProcess(t, e, "task/user.bpmn", "userTaskTest")
		serviceTest := mustCreateProcess(t, e, "task/service.bpmn", "serviceTest")

		t.Run(engineTypes[i]+"start and get", func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			processInstance, err := e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
				BpmnProcessId: userTaskTest.BpmnProcessId,
				BusinessKey:   "order-1",
				TenantId:      "tenant-a",
				Version:       userTaskTest.Version,
				WorkerId:      testWorkerId,
			})
			require.NoError(err)

			assert.Equal(engine.ProcessInstance{
				Id: processInstance.Id,

				ProcessId: userTaskTest.Id,

				BpmnProcessId: userTaskTest.BpmnProcessId,
				BusinessKey:   "order-1",
				CreatedAt:     processInstance.CreatedAt,
				TenantId:      "tenant-a",
				Version:       userTaskTest.Version,
			}, processInstance)

			selected, err := e.GetProcessInstance(context.Background(), engine.GetProcessInstanceCmd{ProcessInstanceId: processInstance.Id})
			require.NoError(err)
			assert.Equal(processInstance.Id, selected.Id)
			assert.Equal("order-1", selected.BusinessKey)
			assert.False(selected.IsEnded)
			assert.Nil(selected.EndedAt)
		})

		t.Run(engineTypes[i]+"ended", func(t *testing.T) {
			assert := assert.New(t)

			piAssert := mustStartProcessInstance(t, e, serviceTest)
			piAssert.IsEnded()

			processInstance := piAssert.ProcessInstance()
			assert.NotNil(processInstance.EndedAt)

			// executions of an ended process instance are removed, except the root
			executions := piAssert.Executions()
			if assert.Len(executions, 1) {
				assert.Equal(processInstance.Id, executions[0].Id)
			}
		})

		t.Run(engineTypes[i]+"delete", func(t *testing.T) {
			require := require.New(t)

			piAssert := mustStartProcessInstance(t, e, userTaskTest, map[string]any{"a": "b"})
			piAssert.IsWaitingAt("userTask")

			processInstanceId := piAssert.ProcessInstance().Id

			require.NoError(e.DeleteProcessInstance(context.Background(), engine.DeleteProcessInstanceCmd{
				ProcessInstanceId: processInstanceId,
				Reason:            "test",
			}))

			piAssert.IsEnded()
			assert.Equal(t, "b", piAssert.HasProcessVariable("a"))

			// when deleted again
			err := e.DeleteProcessInstance(context.Background(), engine.DeleteProcessInstanceCmd{ProcessInstanceId: processInstanceId})
			assert.Equal(t, engine.ErrorConflict, errorType(err))
		})

		t.Run(engineTypes[i]+"returns error when process instance not exists", func(t *testing.T) {
			assert := assert.New(t)

			_, err := e.GetProcessInstance(context.Background(), engine.GetProcessInstanceCmd{ProcessInstanceId: "not-existing"})
			assert.Equal(engine.ErrorNotFound, errorType(err))

			err = e.DeleteProcessInstance(context.Background(), engine.DeleteProcessInstanceCmd{ProcessInstanceId: "not-existing"})
			assert.Equal(engine.ErrorNotFound, errorType(err))

			_, err = e.GetExecutions(context.Background(), engine.GetExecutionsCmd{ProcessInstanceId: "not-existing"})
			assert.Equal(engine.ErrorNotFound, errorType(err))
		})

		t.Run(engineTypes[i]+"returns error when process not exists", func(t *testing.T) {
			_, err := e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
				BpmnProcessId: "notExisting",
				Version:       "1",
				WorkerId:      testWorkerId,
			})
			assert.Equal(t, engine.ErrorNotFound, errorType(err))
		})

		t.Run(engineTypes[i]+"returns error when variable name is invalid", func(t *testing.T) {
			_, err := e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
				BpmnProcessId: userTaskTest.BpmnProcessId,
				Variables:     map[string]any{"a-b": 1},
				Version:       userTaskTest.Version,
				WorkerId:      testWorkerId,
			})

			var engineErr engine.Error
			require.ErrorAs(t, err, &engineErr)
			assert.Equal(t, engine.ErrorValidation, engineErr.Type)
			if assert.Len(t, engineErr.Causes, 1) {
				assert.Equal(t, "#/variables/a-b", engineErr.Causes[0].Pointer)
				assert.Equal(t, "variable_name", engineErr.Causes[0].Type)
			}
		})
	}
}

func TestTriggerExecution(t *testing.T) {
	engines, engineTypes := mustCreateEngines(t)
	for _, e := range engines {
		defer e.Shutdown()
	}

	for i, e := range engines {
		userTaskTest := mustCreateProcess(t, e, "task/user.bpmn", "userTaskTest")

		t.Run(engineTypes[i]+"returns error when execution not exists", func(t *testing.T) {
			err := e.TriggerExecution(context.Background(), engine.TriggerExecutionCmd{ExecutionId: "not-existing"})
			assert.Equal(t, engine.ErrorNotFound, errorType(err))
		})

		t.Run(engineTypes[i]+"returns error when process instance is triggered", func(t *testing.T) {
			piAssert := mustStartProcessInstance(t, e, userTaskTest)

			err := e.TriggerExecution(context.Background(), engine.TriggerExecutionCmd{ExecutionId: piAssert.ProcessInstance().Id})
			assert.Equal(t, engine.ErrorValidation, errorType(err))
		})

		t.Run(engineTypes[i]+"returns error when process instance is ended", func(t *testing.T) {
			piAssert := mustStartProcessInstance(t, e, userTaskTest)

			executionId := piAssert.WaitingExecutions("userTask")[0].Id
			mustTrigger(t, e, executionId, nil)
			piAssert.IsEnded()

			err := e.TriggerExecution(context.Background(), engine.TriggerExecutionCmd{ExecutionId: piAssert.ProcessInstance().Id})
			assert.Equal(t, engine.ErrorConflict, errorType(err))
		})
	}
}
