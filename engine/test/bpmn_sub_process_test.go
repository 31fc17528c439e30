package test

import (
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
)

func newSubProcessTest(t *testing.T, e engine.Engine) subProcessTest {
	return subProcessTest{
		e: e,

		subProcessTest: mustCreateProcess(t, e, "sub-process/sub-process.bpmn", "subProcessTest"),
	}
}

type subProcessTest struct {
	e engine.Engine

	subProcessTest engine.Process
}

func (x subProcessTest) subProcess(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.subProcessTest)

	piAssert.IsWaitingAt("subProcessUserTask")

	executions := piAssert.Executions()
	if assert.Len(executions, 3) {
		assert.Equal("subProcess", executions[1].ElementId)
		assert.True(executions[1].IsScope)
		assert.Equal(executions[1].Id, executions[2].ParentId)
	}

	piAssert.Trigger()

	piAssert.IsWaitingAt("userTask")
	assert.Len(piAssert.Executions(), 2)

	piAssert.Trigger()
	piAssert.IsEnded()
}

// variables set within the sub process are created at the process instance, if no scope holds them.
func (x subProcessTest) variables(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.subProcessTest, map[string]any{"a": "x"})

	piAssert.IsWaitingAt("subProcessUserTask")
	piAssert.Trigger(map[string]any{"a": "y", "b": "z"})

	assert.Equal(t, "y", piAssert.HasProcessVariable("a"))
	assert.Equal(t, "z", piAssert.HasProcessVariable("b"))
}
