package test

import (
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
)

func newParallelGatewayTest(t *testing.T, e engine.Engine) parallelGatewayTest {
	return parallelGatewayTest{
		e: e,

		parallelTest: mustCreateProcess(t, e, "gateway/parallel.bpmn", "parallelGatewayTest"),
	}
}

type parallelGatewayTest struct {
	e engine.Engine

	parallelTest engine.Process
}

func (x parallelGatewayTest) forkJoin(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.parallelTest)

	piAssert.IsWaitingAt("userTaskA")
	piAssert.IsWaitingAt("userTaskB")

	piAssert.IsWaitingAt("userTaskB")
	piAssert.Trigger()

	// first arrival waits at the join
	piAssert.IsNotEnded()
	piAssert.IsNotWaitingAt("userTaskB")

	executions := piAssert.Executions()
	if assert.Len(executions, 3) {
		assert.Equal("join", executions[2].ElementId)
		assert.False(executions[2].IsActive)
	}

	piAssert.IsWaitingAt("userTaskA")
	piAssert.Trigger()
	piAssert.IsEnded()
}

func (x parallelGatewayTest) reverse(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.parallelTest)

	piAssert.IsWaitingAt("userTaskA")
	piAssert.Trigger()
	piAssert.IsNotEnded()

	piAssert.IsWaitingAt("userTaskB")
	piAssert.Trigger()
	piAssert.IsEnded()
}
