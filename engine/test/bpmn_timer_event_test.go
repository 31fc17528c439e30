package test

import (
	"context"
	"testing"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimerEventTest(t *testing.T, e engine.Engine) timerEventTest {
	return timerEventTest{
		e: e,

		catchTest: mustCreateProcess(t, e, "event/timer-catch.bpmn", "timerCatchTest"),
		cycleTest: mustCreateProcess(t, e, "event/timer-cycle.bpmn", "timerCycleTest"),
	}
}

type timerEventTest struct {
	e engine.Engine

	catchTest engine.Process
	cycleTest engine.Process
}

func (x timerEventTest) catch(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.catchTest)
	piAssert.IsWaitingAt("timerCatchEvent")

	processInstance := piAssert.ProcessInstance()

	subscription := x.mustGetTimer(t, processInstance.Id)
	assert.Equal(engine.EventTimer, subscription.EventType)
	assert.Equal("timerCatchEvent", subscription.ElementId)
	assert.True(processInstance.CreatedAt.Add(time.Hour).Equal(*subscription.DueAt))

	// not due yet
	triggered, err := x.e.ExecuteTimers(context.Background(), engine.ExecuteTimersCmd{Limit: 100})
	require.NoError(err)
	assert.NotContains(subscriptionIds(triggered), subscription.Id)

	piAssert.IsWaitingAt("timerCatchEvent")

	require.NoError(x.e.SetTime(context.Background(), engine.SetTimeCmd{Time: *subscription.DueAt}))

	triggered, err = x.e.ExecuteTimers(context.Background(), engine.ExecuteTimersCmd{Limit: 100})
	require.NoError(err)
	assert.Contains(subscriptionIds(triggered), subscription.Id)

	piAssert.IsEnded()

	subscriptions, err := x.e.GetEventSubscriptions(context.Background(), engine.GetEventSubscriptionsCmd{ProcessInstanceId: processInstance.Id})
	require.NoError(err)
	assert.Empty(subscriptions)
}

func (x timerEventTest) cycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.cycleTest)
	piAssert.IsWaitingAt("timerCatchEvent")

	processInstance := piAssert.ProcessInstance()

	subscription := x.mustGetTimer(t, processInstance.Id)

	// next full hour
	dueAt := processInstance.CreatedAt.Truncate(time.Hour).Add(time.Hour)
	assert.True(dueAt.Equal(*subscription.DueAt))

	require.NoError(x.e.SetTime(context.Background(), engine.SetTimeCmd{Time: dueAt}))

	triggered, err := x.e.ExecuteTimers(context.Background(), engine.ExecuteTimersCmd{Limit: 100})
	require.NoError(err)
	assert.Contains(subscriptionIds(triggered), subscription.Id)

	piAssert.IsWaitingAt("userTask")
}

// deleted verifies that the timer of a deleted process instance is not triggered.
func (x timerEventTest) deleted(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	piAssert := mustStartProcessInstance(t, x.e, x.catchTest)
	piAssert.IsWaitingAt("timerCatchEvent")

	processInstance := piAssert.ProcessInstance()
	subscription := x.mustGetTimer(t, processInstance.Id)

	require.NoError(x.e.DeleteProcessInstance(context.Background(), engine.DeleteProcessInstanceCmd{
		ProcessInstanceId: processInstance.Id,
		Reason:            "test",
	}))

	require.NoError(x.e.SetTime(context.Background(), engine.SetTimeCmd{Time: *subscription.DueAt}))

	triggered, err := x.e.ExecuteTimers(context.Background(), engine.ExecuteTimersCmd{Limit: 100})
	require.NoError(err)
	assert.NotContains(subscriptionIds(triggered), subscription.Id)

	piAssert.IsEnded()
}

func (x timerEventTest) mustGetTimer(t *testing.T, processInstanceId string) engine.EventSubscription {
	subscriptions, err := x.e.GetEventSubscriptions(context.Background(), engine.GetEventSubscriptionsCmd{ProcessInstanceId: processInstanceId})
	if err != nil {
		t.Fatalf("failed to get event subscriptions: %v", err)
	}
	if len(subscriptions) != 1 {
		t.Fatalf("expected one event subscription, but got %d", len(subscriptions))
	}
	if subscriptions[0].DueAt == nil {
		t.Fatalf("expected timer subscription to have a due date")
	}
	return subscriptions[0]
}

func subscriptionIds(subscriptions []engine.EventSubscription) []string {
	ids := make([]string, len(subscriptions))
	for i, subscription := range subscriptions {
		ids[i] = subscription.Id
	}
	return ids
}
