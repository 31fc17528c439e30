package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
)

func newExclusiveGatewayTest(t *testing.T, e engine.Engine) exclusiveGatewayTest {
	return exclusiveGatewayTest{
		e: e,

		exclusiveTest:          mustCreateProcess(t, e, "gateway/exclusive.bpmn", "exclusiveGatewayTest"),
		exclusiveNoDefaultTest: mustCreateProcess(t, e, "gateway/exclusive-no-default.bpmn", "exclusiveGatewayNoDefaultTest"),
	}
}

type exclusiveGatewayTest struct {
	e engine.Engine

	exclusiveTest          engine.Process
	exclusiveNoDefaultTest engine.Process
}

// first takes only the first sequence flow, whose condition is satisfied.
func (x exclusiveGatewayTest) first(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.exclusiveTest, map[string]any{"a": true, "b": true})

	piAssert.IsWaitingAt("userTaskA")
	piAssert.IsNotWaitingAt("userTaskB")
	piAssert.IsNotWaitingAt("userTaskDefault")

	assert.Len(t, piAssert.Executions(), 2)
}

func (x exclusiveGatewayTest) second(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.exclusiveTest, map[string]any{"a": false, "b": true})

	piAssert.IsNotWaitingAt("userTaskA")
	piAssert.IsWaitingAt("userTaskB")
	piAssert.IsNotWaitingAt("userTaskDefault")
}

func (x exclusiveGatewayTest) defaultFlow(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.exclusiveTest, map[string]any{"a": false, "b": false})

	piAssert.IsWaitingAt("userTaskDefault")
	piAssert.Trigger()
	piAssert.IsEnded()
}

func (x exclusiveGatewayTest) errorNoSequenceFlowSelected(t *testing.T) {
	assert := assert.New(t)

	_, err := x.e.StartProcessInstance(context.Background(), engine.StartProcessInstanceCmd{
		BpmnProcessId: x.exclusiveNoDefaultTest.BpmnProcessId,
		Version:       x.exclusiveNoDefaultTest.Version,
		Variables:     map[string]any{"a": false, "b": false},
		WorkerId:      testWorkerId,
	})
	assert.Equal(engine.ErrorProcessModel, errorType(err))
}
