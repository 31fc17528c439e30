package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
)

func newTaskTest(t *testing.T, e engine.Engine) taskTest {
	return taskTest{
		e: e,

		conditionalTest: mustCreateProcess(t, e, "task/conditional.bpmn", "conditionalFlowTest"),
		forkTest:        mustCreateProcess(t, e, "task/fork.bpmn", "forkTest"),
		serviceTest:     mustCreateProcess(t, e, "task/service.bpmn", "serviceTest"),
		userTaskTest:    mustCreateProcess(t, e, "task/user.bpmn", "userTaskTest"),
	}
}

type taskTest struct {
	e engine.Engine

	conditionalTest engine.Process
	forkTest        engine.Process
	serviceTest     engine.Process
	userTaskTest    engine.Process
}

// conditional takes all outgoing sequence flows, whose condition is satisfied.
func (x taskTest) conditional(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.conditionalTest, map[string]any{"a": true, "b": true})

	piAssert.IsWaitingAt("userTaskA")
	piAssert.IsWaitingAt("userTaskB")
	piAssert.IsNotWaitingAt("userTaskDefault")
}

func (x taskTest) conditionalDefault(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.conditionalTest, map[string]any{"a": false, "b": false})

	piAssert.IsNotWaitingAt("userTaskA")
	piAssert.IsNotWaitingAt("userTaskB")
	piAssert.IsWaitingAt("userTaskDefault")
}

func (x taskTest) conditionalMissingVariable(t *testing.T) {
	_, err := x.e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
		BpmnProcessId: x.conditionalTest.BpmnProcessId,
		Version:       x.conditionalTest.Version,
		Variables:     map[string]any{"a": true},
		WorkerId:      testWorkerId,
	})
	assert.NotNil(t, err)
}

// fork takes all unconditional outgoing sequence flows concurrently.
func (x taskTest) fork(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.forkTest)

	piAssert.IsWaitingAt("userTaskA")
	piAssert.IsWaitingAt("userTaskB")

	executions := piAssert.Executions()
	if !assert.Len(executions, 3) {
		return
	}

	assert.True(executions[0].IsScope)
	for _, execution := range executions[1:] {
		assert.Equal(executions[0].Id, execution.ParentId)
		assert.True(execution.IsConcurrent)
		assert.True(execution.IsActive)
	}

	// an activity without outgoing sequence flows ends its execution
	piAssert.IsWaitingAt("userTaskA")
	piAssert.Trigger()
	piAssert.IsNotEnded()

	executions = piAssert.Executions()
	if assert.Len(executions, 2) {
		assert.Equal("userTaskB", executions[1].ElementId)
		assert.False(executions[1].IsConcurrent)
	}

	piAssert.IsWaitingAt("userTaskB")
	piAssert.Trigger()
	piAssert.IsEnded()
}

func (x taskTest) service(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.serviceTest)
	piAssert.IsEnded()

	assert.Len(t, piAssert.Executions(), 1)
}

func (x taskTest) userTask(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.userTaskTest)

	piAssert.IsWaitingAt("userTask")
	piAssert.Trigger(map[string]any{"approved": true})
	piAssert.IsEnded()

	assert.Equal(t, true, piAssert.HasProcessVariable("approved"))
}
