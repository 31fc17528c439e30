package internal

import (
	"fmt"
	"slices"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
)

// Behavior is executed, when an execution arrives at a BPMN element.
type Behavior interface {
	Execute(*activityContext) error
}

// Leavable is a behavior, which decides itself how an execution leaves its element.
type Leavable interface {
	Leave(*activityContext) error
}

// Triggerable is a behavior of a wait state, which continues when it is triggered.
type Triggerable interface {
	Trigger(actx *activityContext, signal string, data map[string]any) error
}

// MultiInstanceCapable is a behavior, which wraps the behavior of a multi-instance activity.
type MultiInstanceCapable interface {
	InnerBehavior() Behavior
}

// leave continues an execution after its element has been completed.
//
// Compensate boundary events, attached to the element, are executed first. Then an instance of a multi-instance
// activity is completed or the execution leaves via the outgoing sequence flows.
func leave(actx *activityContext) error {
	if err := executeCompensateBoundaryEvents(actx); err != nil {
		return err
	}

	if actx.isMultiInstanceInstance() {
		return actx.node.behavior.(multiInstanceBehavior).leaveInstance(actx)
	}

	if leavable, ok := actx.behavior().(Leavable); ok {
		return leavable.Leave(actx)
	}
	return leaveDefault(actx)
}

// leaveDefault plans to take all outgoing sequence flows, whose conditions are satisfied.
func leaveDefault(actx *activityContext) error {
	sequenceFlowIds, err := selectSequenceFlows(actx, false)
	if err != nil {
		return err
	}
	actx.agenda.PlanTakeOutgoingSequenceFlows(actx.executionId, sequenceFlowIds)
	return nil
}

// selectSequenceFlows evaluates the conditions of the outgoing sequence flows in declaration order.
// A flow without condition is always selected. The default flow is selected only, if no other flow is selected.
// If exclusive, the first selected flow wins.
//
// An element without outgoing sequence flows selects none. An element with outgoing sequence flows, of which none
// can be selected, is an error.
func selectSequenceFlows(actx *activityContext, exclusive bool) ([]string, error) {
	bpmnElement := actx.bpmnElement()

	outgoing := actx.graph.model.Outgoing(bpmnElement.Id)
	if len(outgoing) == 0 {
		return nil, nil
	}

	defaultFlow := bpmnElement.DefaultFlow()

	var selected []string
	for _, sequenceFlow := range outgoing {
		if sequenceFlow.Id == defaultFlow {
			continue
		}

		if sequenceFlow.ConditionExpression != "" {
			ok, err := actx.evaluateCondition(sequenceFlow.ConditionExpression)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		selected = append(selected, sequenceFlow.Id)
		if exclusive {
			break
		}
	}

	if len(selected) == 0 && defaultFlow != "" {
		selected = append(selected, defaultFlow)
	}

	if len(selected) == 0 {
		return nil, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to leave BPMN element",
			Detail: fmt.Sprintf("no outgoing sequence flow of BPMN element %s could be selected", bpmnElement.Id),
		}
	}
	return selected, nil
}

// executeCompensateBoundaryEvents creates a child execution for each compensate boundary event, which is attached
// to the current element, and executes the boundary event behavior immediately.
func executeCompensateBoundaryEvents(actx *activityContext) error {
	for _, boundaryEvent := range actx.graph.model.AttachedTo(actx.bpmnElement().Id) {
		if boundaryEvent.Type != model.ElementCompensateBoundaryEvent {
			continue
		}

		child := actx.tree.CreateChildExecution(actx.executionId)
		actx.tree.SetElement(child.Id, boundaryEvent.Id)

		childCtx, err := actx.forExecution(child.Id)
		if err != nil {
			return err
		}
		if err := childCtx.node.behavior.Execute(childCtx); err != nil {
			return err
		}
	}
	return nil
}

// compensationScope returns the scope, which holds compensation subscriptions of an execution's activities.
// Multi-instance roots are skipped, since they do not outlive their instances.
func compensationScope(tree *ExecutionTree, executionId string) ExecutionEntity {
	parent, ok := tree.Parent(executionId)
	if !ok {
		return tree.Root(executionId)
	}

	scope := tree.Scope(parent.Id)
	for scope.IsMultiInstanceRoot {
		next, ok := tree.Parent(scope.Id)
		if !ok {
			break
		}
		scope = tree.Scope(next.Id)
	}
	return scope
}

// passThroughBehavior leaves immediately. It is used for start events, none intermediate throw events and tasks,
// whose work is done outside of the engine.
type passThroughBehavior struct{}

func (passThroughBehavior) Execute(actx *activityContext) error {
	return leave(actx)
}

// waitStateBehavior waits for an external trigger.
type waitStateBehavior struct{}

func (waitStateBehavior) Execute(*activityContext) error {
	return nil
}

func (waitStateBehavior) Trigger(actx *activityContext, _ string, _ map[string]any) error {
	return leave(actx)
}

type endEventBehavior struct{}

func (endEventBehavior) Execute(actx *activityContext) error {
	actx.agenda.PlanEndExecution(actx.executionId)
	return nil
}

type exclusiveGatewayBehavior struct{}

func (exclusiveGatewayBehavior) Execute(actx *activityContext) error {
	sequenceFlowIds, err := selectSequenceFlows(actx, true)
	if err != nil {
		return err
	}
	actx.agenda.PlanTakeOutgoingSequenceFlows(actx.executionId, sequenceFlowIds)
	return nil
}

type inclusiveGatewayBehavior struct{}

func (inclusiveGatewayBehavior) Execute(actx *activityContext) error {
	sequenceFlowIds, err := selectSequenceFlows(actx, false)
	if err != nil {
		return err
	}
	actx.agenda.PlanTakeOutgoingSequenceFlows(actx.executionId, sequenceFlowIds)
	return nil
}

// parallelGatewayBehavior joins the concurrent executions, which arrive via the incoming sequence flows, and forks
// via all outgoing sequence flows, ignoring conditions.
type parallelGatewayBehavior struct{}

func (parallelGatewayBehavior) Execute(actx *activityContext) error {
	bpmnElement := actx.bpmnElement()
	tree := actx.tree

	if incoming := len(bpmnElement.Incoming); incoming > 1 {
		execution := actx.execution()
		tree.SetActive(execution.Id, false)

		var joined []string
		for _, walker := range tree.Walkers(execution.ParentId.String) {
			if walker.Id != execution.Id && walker.ElementId == bpmnElement.Id && !walker.IsActive {
				joined = append(joined, walker.Id)
			}
		}

		if len(joined)+1 < incoming {
			return nil // wait for the remaining executions
		}

		for _, id := range joined[:incoming-1] {
			tree.DeleteSubtree(id)
		}

		tree.SetActive(execution.Id, true)
		tree.RefreshConcurrency(execution.ParentId.String)
	}

	outgoing := actx.graph.model.Outgoing(bpmnElement.Id)

	sequenceFlowIds := make([]string, len(outgoing))
	for i, sequenceFlow := range outgoing {
		sequenceFlowIds[i] = sequenceFlow.Id
	}

	actx.agenda.PlanTakeOutgoingSequenceFlows(actx.executionId, sequenceFlowIds)
	return nil
}

// processBehavior belongs to the root execution, which is never continued or triggered.
type processBehavior struct{}

func (processBehavior) Execute(actx *activityContext) error {
	return engine.Error{
		Type:   engine.ErrorBug,
		Title:  "failed to continue process",
		Detail: fmt.Sprintf("process instance %s cannot be continued", actx.executionId),
	}
}

// subProcessBehavior turns the execution into a scope and starts a child at the none start event.
// When the last child ends, the scope is triggered and leaves.
type subProcessBehavior struct{}

func (subProcessBehavior) Execute(actx *activityContext) error {
	startEvent, err := actx.graph.startEvent(actx.bpmnElement().Id)
	if err != nil {
		return err
	}

	tree := actx.tree
	tree.SetScope(actx.executionId, true)
	tree.SetActive(actx.executionId, false)

	child := tree.CreateChildExecution(actx.executionId)
	tree.SetElement(child.Id, startEvent.Id)

	actx.agenda.PlanContinueProcess(child.Id)
	return nil
}

func (subProcessBehavior) Trigger(actx *activityContext, _ string, _ map[string]any) error {
	actx.tree.SetScope(actx.executionId, false)
	return leave(actx)
}

// compensateBoundaryBehavior keeps the child execution as an inactive event scope, which holds a compensate
// subscription for the compensation handler.
type compensateBoundaryBehavior struct{}

func (compensateBoundaryBehavior) Execute(actx *activityContext) error {
	boundaryEvent := actx.bpmnElement().Model.(*model.BoundaryEvent)

	tree := actx.tree

	scope := compensationScope(tree, actx.execution().ParentId.String)

	tree.Reparent(actx.executionId, scope.Id)
	tree.SetActive(actx.executionId, false)
	tree.SetEventScope(actx.executionId, true)

	tree.CreateEventSubscription(actx.executionId, engine.EventCompensate, boundaryEvent.Handler, boundaryEvent.AttachedTo, nil)
	return nil
}

// compensateThrowBehavior starts the compensation handlers of the activities, which have been completed within the
// current scope, in reverse order of completion. Then the execution leaves without waiting for the handlers.
type compensateThrowBehavior struct{}

func (compensateThrowBehavior) Execute(actx *activityContext) error {
	throwEvent := actx.bpmnElement().Model.(*model.CompensateThrowEvent)

	tree := actx.tree
	scope := compensationScope(tree, actx.executionId)

	var subscriptions []EventSubscriptionEntity
	for _, child := range tree.Children(scope.Id) {
		if !child.IsEventScope {
			continue
		}
		for _, subscription := range tree.EventSubscriptionsOf(child.Id) {
			if subscription.EventType != engine.EventCompensate {
				continue
			}
			if throwEvent.ActivityRef != "" && subscription.ActivityId.String != throwEvent.ActivityRef {
				continue
			}
			subscriptions = append(subscriptions, subscription)
		}
	}

	slices.Reverse(subscriptions)

	for _, subscription := range subscriptions {
		tree.DeleteSubtree(subscription.ExecutionId)

		handler := tree.CreateChildExecution(scope.Id)
		tree.SetElement(handler.Id, subscription.ElementId)
		actx.agenda.PlanContinueProcess(handler.Id)
	}

	tree.RefreshConcurrency(scope.Id)

	return leave(actx)
}

// timerCatchBehavior creates a timer subscription and waits until the timer is triggered.
type timerCatchBehavior struct{}

func (timerCatchBehavior) Execute(actx *activityContext) error {
	timer := actx.bpmnElement().Model.(*model.TimerEvent)

	dueAt, err := evaluateTimer(timer, actx.cc.Time())
	if err != nil {
		return engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to evaluate timer",
			Detail: fmt.Sprintf("timer catch event %s: %v", actx.bpmnElement().Id, err),
		}
	}

	actx.tree.CreateEventSubscription(actx.executionId, engine.EventTimer, actx.bpmnElement().Id, "", &dueAt)
	return nil
}

func (timerCatchBehavior) Trigger(actx *activityContext, _ string, _ map[string]any) error {
	for _, subscription := range actx.tree.EventSubscriptionsOf(actx.executionId) {
		if subscription.EventType == engine.EventTimer {
			actx.tree.DeleteEventSubscription(subscription.Id)
		}
	}
	return leave(actx)
}
