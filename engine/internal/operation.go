package internal

import (
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
)

// activityContext provides an operation or behavior with everything needed to advance a single execution.
type activityContext struct {
	cc     *CommandContext
	tree   *ExecutionTree
	agenda *Agenda
	graph  *graph

	executionId string
	node        node
}

// newActivityContext returns the context of an execution. If the execution no longer exists, false is returned.
func newActivityContext(cc *CommandContext, executionId string) (*activityContext, bool, error) {
	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, false, err
	}
	agenda, err := cc.Agenda()
	if err != nil {
		return nil, false, err
	}

	execution, ok := tree.Get(executionId)
	if !ok {
		return nil, false, nil
	}

	process, err := cc.Runtime().ProcessCache().GetOrCacheById(cc, execution.ProcessId)
	if err != nil {
		return nil, false, err
	}

	actx := activityContext{
		cc:     cc,
		tree:   tree,
		agenda: agenda,
		graph:  process.graph,

		executionId: executionId,
	}

	if actx.node, err = process.graph.node(execution.ElementId); err != nil {
		return nil, false, err
	}
	return &actx, true, nil
}

// behavior returns the behavior of the current element. For an instance of a multi-instance activity, the behavior
// of the activity itself is returned.
func (actx *activityContext) behavior() Behavior {
	if miCapable, ok := actx.node.behavior.(MultiInstanceCapable); ok && actx.isMultiInstanceInstance() {
		return miCapable.InnerBehavior()
	}
	return actx.node.behavior
}

func (actx *activityContext) bpmnElement() *model.Element {
	return actx.node.bpmnElement
}

// evaluate evaluates an expression, resolving the variables, which are visible from the execution.
func (actx *activityContext) evaluate(expression string) (any, error) {
	evaluator := actx.cc.Options().ExpressionEvaluator

	value, err := evaluator.Evaluate(expression, actx.tree.VariablesOf(actx.executionId))
	if err != nil {
		return nil, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to evaluate expression",
			Detail: fmt.Sprintf("BPMN element %s: expression %s: %v", actx.node.bpmnElement.Id, expression, err),
		}
	}
	return value, nil
}

func (actx *activityContext) evaluateCondition(expression string) (bool, error) {
	value, err := actx.evaluate(expression)
	if err != nil {
		return false, err
	}

	b, err := toBool(value)
	if err != nil {
		return false, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to evaluate condition",
			Detail: fmt.Sprintf("BPMN element %s: condition %s: %v", actx.node.bpmnElement.Id, expression, err),
		}
	}
	return b, nil
}

func (actx *activityContext) execution() ExecutionEntity {
	execution, _ := actx.tree.Get(actx.executionId)
	return execution
}

// forExecution returns the context of another execution of the same process instance.
func (actx *activityContext) forExecution(executionId string) (*activityContext, error) {
	execution, ok := actx.tree.Get(executionId)
	if !ok {
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to resolve execution",
			Detail: fmt.Sprintf("execution %s is not part of the execution tree", executionId),
		}
	}

	n, err := actx.graph.node(execution.ElementId)
	if err != nil {
		return nil, err
	}

	other := *actx
	other.executionId = executionId
	other.node = n
	return &other, nil
}

func (actx *activityContext) isMultiInstanceInstance() bool {
	return actx.tree.IsMultiInstanceInstance(actx.executionId)
}

// continueProcess executes the behavior of the current element of an execution.
type continueProcess struct {
	executionId string
}

func (o continueProcess) ExecutionId() string {
	return o.executionId
}

func (o continueProcess) Execute(cc *CommandContext) error {
	actx, ok, err := newActivityContext(cc, o.executionId)
	if err != nil || !ok {
		return err
	}
	return actx.behavior().Execute(actx)
}

func (o continueProcess) String() string {
	return "ContinueProcess"
}

// takeOutgoingSequenceFlows moves an execution along the selected sequence flows.
//
// Without sequence flows, the execution ends. With a single sequence flow, the execution itself moves to the target.
// With multiple sequence flows, a concurrent child of the parent scope is created for each flow and the execution is
// removed.
type takeOutgoingSequenceFlows struct {
	executionId     string
	sequenceFlowIds []string
}

func (o takeOutgoingSequenceFlows) ExecutionId() string {
	return o.executionId
}

func (o takeOutgoingSequenceFlows) Execute(cc *CommandContext) error {
	actx, ok, err := newActivityContext(cc, o.executionId)
	if err != nil || !ok {
		return err
	}

	targetIds := make([]string, len(o.sequenceFlowIds))
	for i, sequenceFlowId := range o.sequenceFlowIds {
		sequenceFlow := actx.graph.model.SequenceFlowById(sequenceFlowId)
		if sequenceFlow == nil {
			return engine.Error{
				Type:   engine.ErrorProcessModel,
				Title:  "failed to take sequence flow",
				Detail: fmt.Sprintf("BPMN process %s has no sequence flow %s", actx.graph.processElement.Id, sequenceFlowId),
			}
		}
		targetIds[i] = sequenceFlow.TargetId
	}

	tree := actx.tree
	agenda := actx.agenda

	switch len(targetIds) {
	case 0:
		agenda.PlanEndExecution(o.executionId)
	case 1:
		tree.SetElement(o.executionId, targetIds[0])
		tree.SetActive(o.executionId, true)
		agenda.PlanContinueProcess(o.executionId)
	default:
		parent, ok := tree.Parent(o.executionId)
		if !ok {
			return engine.Error{
				Type:   engine.ErrorBug,
				Title:  "failed to take sequence flows",
				Detail: fmt.Sprintf("execution %s has no parent", o.executionId),
			}
		}

		for _, targetId := range targetIds {
			child := tree.CreateChildExecution(parent.Id)
			tree.SetElement(child.Id, targetId)
			agenda.PlanContinueProcess(child.Id)
		}

		tree.DeleteSubtree(o.executionId)
		tree.RefreshConcurrency(parent.Id)
	}

	return nil
}

func (o takeOutgoingSequenceFlows) String() string {
	return fmt.Sprintf("TakeOutgoingSequenceFlows%v", o.sequenceFlowIds)
}

// triggerExecution passes an external or internal signal to the behavior of a waiting execution.
type triggerExecution struct {
	executionId string
	signal      string
	data        map[string]any
}

func (o triggerExecution) ExecutionId() string {
	return o.executionId
}

func (o triggerExecution) Execute(cc *CommandContext) error {
	actx, ok, err := newActivityContext(cc, o.executionId)
	if err != nil || !ok {
		return err
	}

	triggerable, ok := actx.behavior().(Triggerable)
	if !ok {
		return engine.Error{
			Type:   engine.ErrorValidation,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("this activity isn't waiting for a trigger: %s", actx.bpmnElement().Id),
		}
	}
	return triggerable.Trigger(actx, o.signal, o.data)
}

func (o triggerExecution) String() string {
	return "TriggerExecution"
}

// endExecution removes an execution. If its parent scope has no remaining walking children, the scope completes:
// a process instance ends, a sub process scope is left.
type endExecution struct {
	executionId string
}

func (o endExecution) ExecutionId() string {
	return o.executionId
}

func (o endExecution) Execute(cc *CommandContext) error {
	actx, ok, err := newActivityContext(cc, o.executionId)
	if err != nil || !ok {
		return err
	}

	tree := actx.tree

	parent, ok := tree.Parent(o.executionId)
	if !ok {
		endProcessInstance(cc, tree, o.executionId)
		return nil
	}

	tree.DeleteSubtree(o.executionId)
	tree.RefreshConcurrency(parent.Id)

	if len(tree.Walkers(parent.Id)) != 0 {
		return nil
	}

	if parent.IsProcessInstance() {
		endProcessInstance(cc, tree, parent.Id)
		return nil
	}

	for _, child := range tree.Children(parent.Id) {
		tree.DeleteSubtree(child.Id)
	}

	tree.SetActive(parent.Id, true)
	actx.agenda.PlanTriggerExecution(parent.Id, "", nil)
	return nil
}

func (o endExecution) String() string {
	return "EndExecution"
}

// destroyScope cancels all children and event subscriptions of a scope execution and completes the scope.
type destroyScope struct {
	executionId string
}

func (o destroyScope) ExecutionId() string {
	return o.executionId
}

func (o destroyScope) Execute(cc *CommandContext) error {
	actx, ok, err := newActivityContext(cc, o.executionId)
	if err != nil || !ok {
		return err
	}

	tree := actx.tree
	execution := actx.execution()

	if execution.IsProcessInstance() {
		endProcessInstance(cc, tree, execution.Id)
		return nil
	}
	if !execution.IsScope {
		return nil // completed in the meantime
	}

	for _, child := range tree.Children(execution.Id) {
		tree.DeleteSubtree(child.Id)
	}
	for _, subscription := range tree.EventSubscriptionsOf(execution.Id) {
		tree.DeleteEventSubscription(subscription.Id)
	}

	if mi, ok := actx.node.behavior.(multiInstanceBehavior); ok && execution.IsMultiInstanceRoot {
		return mi.complete(actx)
	}

	tree.SetActive(execution.Id, true)
	actx.agenda.PlanTriggerExecution(execution.Id, "", nil)
	return nil
}

func (o destroyScope) String() string {
	return "DestroyScope"
}

// endProcessInstance removes all remaining children and event subscriptions and marks the process instance as ended.
func endProcessInstance(cc *CommandContext, tree *ExecutionTree, processInstanceId string) {
	for _, child := range tree.Children(processInstanceId) {
		tree.DeleteSubtree(child.Id)
	}
	for _, subscription := range tree.EventSubscriptionsOf(processInstanceId) {
		tree.DeleteEventSubscription(subscription.Id)
	}

	tree.End(processInstanceId)

	AddTransactionListener(cc, TransactionCommitted, func(cc *CommandContext) error {
		cc.Runtime().Metrics().ProcessInstancesEnded.Inc()
		return nil
	})

	cc.Logger().Debug("process instance ended", "processInstance", processInstanceId)
}
