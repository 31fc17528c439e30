package test

import (
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
)

func newInclusiveGatewayTest(t *testing.T, e engine.Engine) inclusiveGatewayTest {
	return inclusiveGatewayTest{
		e: e,

		inclusiveTest: mustCreateProcess(t, e, "gateway/inclusive.bpmn", "inclusiveGatewayTest"),
	}
}

type inclusiveGatewayTest struct {
	e engine.Engine

	inclusiveTest engine.Process
}

func (x inclusiveGatewayTest) all(t *testing.T) {
	assert := assert.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.inclusiveTest, map[string]any{"a": true, "b": true})

	piAssert.IsWaitingAt("userTaskA")
	piAssert.IsWaitingAt("userTaskB")
	piAssert.IsNotWaitingAt("userTaskDefault")

	for _, execution := range piAssert.Executions()[1:] {
		assert.True(execution.IsConcurrent)
	}
}

func (x inclusiveGatewayTest) one(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.inclusiveTest, map[string]any{"a": false, "b": true})

	piAssert.IsNotWaitingAt("userTaskA")
	piAssert.IsWaitingAt("userTaskB")
	piAssert.IsNotWaitingAt("userTaskDefault")
}

func (x inclusiveGatewayTest) defaultFlow(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.inclusiveTest, map[string]any{"a": false, "b": false})

	piAssert.IsNotWaitingAt("userTaskA")
	piAssert.IsNotWaitingAt("userTaskB")
	piAssert.IsWaitingAt("userTaskDefault")
}
