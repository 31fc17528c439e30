package test

import (
	"context"
	"testing"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompensationTest(t *testing.T, e engine.Engine) compensationTest {
	return compensationTest{
		e: e,

		boundaryTest: mustCreateProcess(t, e, "compensation/boundary.bpmn", "compensationTest"),
	}
}

type compensationTest struct {
	e engine.Engine

	boundaryTest engine.Process
}

func (x compensationTest) boundary(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.boundaryTest)
	piAssert.IsWaitingAt("confirm")

	processInstance := piAssert.ProcessInstance()

	subscriptions, err := x.e.GetEventSubscriptions(context.Background(), engine.GetEventSubscriptionsCmd{ProcessInstanceId: processInstance.Id})
	require.NoError(err)
	require.Len(subscriptions, 2)

	assert.Equal(engine.EventCompensate, subscriptions[0].EventType)
	assert.Equal("bookHotel", subscriptions[0].ActivityId)
	assert.Equal("cancelHotel", subscriptions[0].ElementId)
	assert.Nil(subscriptions[0].DueAt)

	assert.Equal(engine.EventCompensate, subscriptions[1].EventType)
	assert.Equal("bookFlight", subscriptions[1].ActivityId)
	assert.Equal("cancelFlight", subscriptions[1].ElementId)

	// completed activities are kept as inactive event scopes
	var eventScopes int
	for _, execution := range piAssert.Executions() {
		if execution.IsEventScope {
			assert.False(execution.IsActive)
			assert.Equal(processInstance.Id, execution.ParentId)
			eventScopes++
		}
	}
	assert.Equal(2, eventScopes)

	piAssert.Trigger()

	// the throw event does not wait for the compensation handlers
	piAssert.IsWaitingAt("compensated")
	piAssert.IsWaitingAt("cancelFlight")
	piAssert.IsNotWaitingAt("cancelHotel")

	subscriptions, err = x.e.GetEventSubscriptions(context.Background(), engine.GetEventSubscriptionsCmd{ProcessInstanceId: processInstance.Id})
	require.NoError(err)
	assert.Empty(subscriptions)

	for _, execution := range piAssert.Executions() {
		assert.False(execution.IsEventScope)
	}

	piAssert.IsWaitingAt("cancelFlight")
	piAssert.Trigger()
	piAssert.IsNotEnded()

	piAssert.IsWaitingAt("compensated")
	piAssert.Trigger()
	piAssert.IsEnded()
}

// uncompensated ends the process instance without compensation. Remaining subscriptions are removed.
func (x compensationTest) uncompensated(t *testing.T) {
	piAssert := mustStartProcessInstance(t, x.e, x.boundaryTest)
	piAssert.IsWaitingAt("confirm")

	processInstance := piAssert.ProcessInstance()

	if err := x.e.DeleteProcessInstance(context.Background(), engine.DeleteProcessInstanceCmd{ProcessInstanceId: processInstance.Id}); err != nil {
		t.Fatalf("failed to delete process instance: %v", err)
	}

	piAssert.IsEnded()

	subscriptions, err := x.e.GetEventSubscriptions(context.Background(), engine.GetEventSubscriptionsCmd{ProcessInstanceId: processInstance.Id})
	assert.NoError(t, err)
	assert.Empty(t, subscriptions)
}
