package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMultiInstanceTest(t *testing.T, e engine.Engine) multiInstanceTest {
	return multiInstanceTest{
		e: e,

		collectionTest: mustCreateProcess(t, e, "multi-instance/collection.bpmn", "collectionMultiInstanceTest"),
		parallelTest:   mustCreateProcess(t, e, "multi-instance/parallel.bpmn", "parallelMultiInstanceTest"),
		sequentialTest: mustCreateProcess(t, e, "multi-instance/sequential.bpmn", "sequentialMultiInstanceTest"),
		subProcessTest: mustCreateProcess(t, e, "multi-instance/sub-process.bpmn", "multiInstanceSubProcessTest"),
	}
}

type multiInstanceTest struct {
	e engine.Engine

	collectionTest engine.Process
	parallelTest   engine.Process
	sequentialTest engine.Process
	subProcessTest engine.Process
}

// parallel verifies the loop variables and the aggregation of instance variables, ordered by loop counter.
func (x multiInstanceTest) parallel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.parallelTest)

	instances := piAssert.WaitingExecutions("userTask")
	require.Len(instances, 3)

	root := piAssert.Executions()[1]
	assert.Equal("userTask", root.ElementId)
	assert.True(root.IsMultiInstanceRoot)
	assert.True(root.IsScope)
	assert.False(root.IsActive)

	rootVariables := mustGetVariables(t, x.e, root.Id)
	assert.Equal(float64(3), rootVariables["nrOfInstances"])
	assert.Equal(float64(0), rootVariables["nrOfCompletedInstances"])
	assert.Equal(float64(3), rootVariables["nrOfActiveInstances"])

	// complete in reverse order
	for i := len(instances) - 1; i >= 0; i-- {
		instance := instances[i]
		assert.Equal(root.Id, instance.ParentId)
		assert.True(instance.IsConcurrent)

		variables := mustGetVariables(t, x.e, instance.Id, "loopCounter", "index")
		assert.Equal(variables["loopCounter"], variables["index"])

		loopCounter := int(variables["loopCounter"].(float64))
		mustTrigger(t, x.e, instance.Id, map[string]any{"result": fmt.Sprintf("result-%d", loopCounter)})
	}

	piAssert.IsWaitingAt("userTaskAfter")

	assert.Equal([]any{"result-0", "result-1", "result-2"}, piAssert.HasProcessVariable("results"))

	piAssert.HasNoProcessVariable("nrOfInstances")
	piAssert.HasNoProcessVariable("loopCounter")
}

// collection creates an instance per item and completes, when the completion condition is satisfied.
func (x multiInstanceTest) collection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.collectionTest, map[string]any{"items": []any{"a", "b", "c"}})

	instances := piAssert.WaitingExecutions("userTask")
	require.Len(instances, 3)

	var items []any
	for _, instance := range instances {
		items = append(items, mustGetVariables(t, x.e, instance.Id, "item")["item"])
	}
	assert.Equal([]any{"a", "b", "c"}, items)

	mustTrigger(t, x.e, instances[0].Id, nil)
	piAssert.IsNotWaitingAt("userTaskAfter")
	assert.Len(piAssert.WaitingExecutions("userTask"), 2)

	mustTrigger(t, x.e, instances[2].Id, nil)

	// remaining instance is cancelled
	piAssert.IsNotWaitingAt("userTask")
	piAssert.IsWaitingAt("userTaskAfter")
	assert.Len(piAssert.Executions(), 2)
}

func (x multiInstanceTest) collectionEmpty(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.collectionTest, map[string]any{"items": []any{}})

	piAssert.IsNotWaitingAt("userTask")
	piAssert.IsWaitingAt("userTaskAfter")
}

func (x multiInstanceTest) collectionNotList(t *testing.T) {
	_, err := x.e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
		BpmnProcessId: x.collectionTest.BpmnProcessId,
		Version:       x.collectionTest.Version,
		Variables:     map[string]any{"items": "abc"},
		WorkerId:      testWorkerId,
	})
	assert.Equal(t, engine.ErrorProcessModel, errorType(err))
}

// sequential creates the next instance, when the previous one completed.
func (x multiInstanceTest) sequential(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.sequentialTest, map[string]any{"count": 3})

	for i := 0; i < 3; i++ {
		instances := piAssert.WaitingExecutions("userTask")
		if !assert.Len(instances, 1) {
			return
		}

		assert.False(instances[0].IsConcurrent)
		assert.Equal(float64(i), mustGetVariables(t, x.e, instances[0].Id, "loopCounter")["loopCounter"])

		mustTrigger(t, x.e, instances[0].Id, nil)
	}

	piAssert.IsEnded()
}

func (x multiInstanceTest) sequentialZero(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.sequentialTest, map[string]any{"count": 0})
	piAssert.IsEnded()
}

// subProcess executes a sub process per instance. Each instance is a scope.
func (x multiInstanceTest) subProcess(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.subProcessTest)

	innerExecutions := piAssert.WaitingExecutions("subProcessUserTask")
	if !assert.Len(innerExecutions, 2) {
		return
	}

	for _, execution := range piAssert.Executions() {
		if execution.ElementId == "subProcess" && !execution.IsMultiInstanceRoot {
			assert.True(execution.IsScope)
		}
	}

	mustTrigger(t, x.e, innerExecutions[0].Id, nil)
	piAssert.IsNotEnded()
	assert.Len(piAssert.WaitingExecutions("subProcessUserTask"), 1)

	mustTrigger(t, x.e, innerExecutions[1].Id, nil)
	piAssert.IsEnded()
}
