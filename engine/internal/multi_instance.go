package internal

import (
	"fmt"
	"strings"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
)

const (
	varLoopCounter            = "loopCounter"
	varNrOfActiveInstances    = "nrOfActiveInstances"
	varNrOfCompletedInstances = "nrOfCompletedInstances"
	varNrOfInstances          = "nrOfInstances"
)

// multiInstanceBehavior executes an activity multiple times, either in parallel or sequentially.
//
// On entry, the execution becomes the multi-instance root: an inactive scope, which holds the loop variables.
// Each instance is a child of the root, which executes the inner behavior of the activity.
type multiInstanceBehavior struct {
	inner         Behavior
	multiInstance *model.MultiInstance
}

func (b multiInstanceBehavior) InnerBehavior() Behavior {
	return b.inner
}

func (b multiInstanceBehavior) Execute(actx *activityContext) error {
	nrOfInstances, err := b.resolveNrOfInstances(actx)
	if err != nil {
		return err
	}
	if nrOfInstances == 0 {
		return leaveDefault(actx)
	}

	tree := actx.tree
	rootId := actx.executionId

	tree.SetMultiInstanceRoot(rootId, true)
	tree.SetScope(rootId, true)
	tree.SetActive(rootId, false)

	nrOfActiveInstances := nrOfInstances
	if b.multiInstance.IsSequential {
		nrOfActiveInstances = 1
	}

	if err := b.setLoopVariables(actx, nrOfInstances, 0, nrOfActiveInstances); err != nil {
		return err
	}

	for i := 0; i < nrOfActiveInstances; i++ {
		if err := b.createInstance(actx, i); err != nil {
			return err
		}
	}

	tree.RefreshConcurrency(rootId)
	return nil
}

// complete removes the loop variables, publishes aggregated variables to the enclosing scope and leaves the
// activity with the root execution.
func (b multiInstanceBehavior) complete(rootCtx *activityContext) error {
	tree := rootCtx.tree
	rootId := rootCtx.executionId

	root := rootCtx.execution()

	for _, aggregation := range b.multiInstance.Aggregations {
		values, ok := tree.VariableLocal(rootId, aggregation.Target)
		if !ok {
			continue
		}
		tree.RemoveVariableLocal(rootId, aggregation.Target)
		if err := tree.SetVariable(root.ParentId.String, aggregation.Target, values); err != nil {
			return err
		}
	}

	tree.RemoveVariableLocal(rootId, varNrOfInstances)
	tree.RemoveVariableLocal(rootId, varNrOfCompletedInstances)
	tree.RemoveVariableLocal(rootId, varNrOfActiveInstances)

	for _, child := range tree.Children(rootId) {
		tree.DeleteSubtree(child.Id)
	}

	tree.SetMultiInstanceRoot(rootId, false)
	tree.SetScope(rootId, false)
	tree.SetActive(rootId, true)

	return leaveDefault(rootCtx)
}

// createInstance creates an instance with the given loop counter and plans its execution.
func (b multiInstanceBehavior) createInstance(rootCtx *activityContext, loopCounter int) error {
	tree := rootCtx.tree

	instance := tree.CreateChildExecution(rootCtx.executionId)
	if err := tree.SetVariableLocal(instance.Id, varLoopCounter, loopCounter); err != nil {
		return err
	}

	mi := b.multiInstance
	if mi.ElementIndexVariable != "" {
		if err := tree.SetVariableLocal(instance.Id, mi.ElementIndexVariable, loopCounter); err != nil {
			return err
		}
	}
	if mi.ElementVariable != "" && mi.Collection != "" {
		items, err := b.resolveCollection(rootCtx)
		if err != nil {
			return err
		}
		if loopCounter < len(items) {
			if err := tree.SetVariableLocal(instance.Id, mi.ElementVariable, items[loopCounter]); err != nil {
				return err
			}
		}
	}

	rootCtx.agenda.PlanContinueProcess(instance.Id)
	return nil
}

// leaveInstance completes an instance. The completion condition is evaluated after each completed instance.
//
// For a parallel activity, a satisfied condition plans the destruction of the root scope, which cancels the
// remaining instances. For a sequential activity, the next instance is created only after the previous one completed.
func (b multiInstanceBehavior) leaveInstance(actx *activityContext) error {
	tree := actx.tree

	root, ok := tree.Parent(actx.executionId)
	if !ok {
		return engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to complete multi-instance",
			Detail: fmt.Sprintf("execution %s has no multi-instance root", actx.executionId),
		}
	}

	rootCtx, err := actx.forExecution(root.Id)
	if err != nil {
		return err
	}

	nrOfInstances, err := b.loopVariable(rootCtx, varNrOfInstances)
	if err != nil {
		return err
	}
	nrOfCompletedInstances, err := b.loopVariable(rootCtx, varNrOfCompletedInstances)
	if err != nil {
		return err
	}
	nrOfActiveInstances, err := b.loopVariable(rootCtx, varNrOfActiveInstances)
	if err != nil {
		return err
	}

	if err := b.aggregate(actx, root.Id, nrOfInstances); err != nil {
		return err
	}

	nrOfCompletedInstances++
	nrOfActiveInstances--

	if err := b.setLoopVariables(rootCtx, nrOfInstances, nrOfCompletedInstances, nrOfActiveInstances); err != nil {
		return err
	}

	tree.DeleteSubtree(actx.executionId)

	satisfied, err := b.isCompletionConditionSatisfied(rootCtx)
	if err != nil {
		return err
	}

	if nrOfCompletedInstances >= nrOfInstances {
		return b.complete(rootCtx)
	}

	if !b.multiInstance.IsSequential {
		if satisfied {
			rootCtx.agenda.PlanDestroyScope(root.Id)
		} else {
			tree.RefreshConcurrency(root.Id)
		}
		return nil
	}

	if satisfied {
		return b.complete(rootCtx)
	}

	if err := b.setLoopVariables(rootCtx, nrOfInstances, nrOfCompletedInstances, 1); err != nil {
		return err
	}
	return b.createInstance(rootCtx, nrOfCompletedInstances)
}

// aggregate collects the source variables of an instance into list variables of the root, ordered by loop counter.
func (b multiInstanceBehavior) aggregate(actx *activityContext, rootId string, nrOfInstances int) error {
	if len(b.multiInstance.Aggregations) == 0 {
		return nil
	}

	tree := actx.tree

	loopCounterValue, _ := tree.VariableLocal(actx.executionId, varLoopCounter)
	loopCounter, err := toInt(loopCounterValue)
	if err != nil {
		return err
	}

	for _, aggregation := range b.multiInstance.Aggregations {
		values := make([]any, nrOfInstances)
		if v, ok := tree.VariableLocal(rootId, aggregation.Target); ok {
			if list, ok := v.([]any); ok && len(list) == nrOfInstances {
				values = list
			}
		}

		if loopCounter >= 0 && loopCounter < nrOfInstances {
			values[loopCounter], _ = tree.Variable(actx.executionId, aggregation.Source)
		}

		if err := tree.SetVariableLocal(rootId, aggregation.Target, values); err != nil {
			return err
		}
	}
	return nil
}

func (b multiInstanceBehavior) isCompletionConditionSatisfied(rootCtx *activityContext) (bool, error) {
	if b.multiInstance.CompletionCondition == "" {
		return false, nil
	}
	return rootCtx.evaluateCondition(b.multiInstance.CompletionCondition)
}

func (b multiInstanceBehavior) loopVariable(rootCtx *activityContext, name string) (int, error) {
	value, ok := rootCtx.tree.VariableLocal(rootCtx.executionId, name)
	if !ok {
		return 0, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to complete multi-instance",
			Detail: fmt.Sprintf("multi-instance root %s has no variable %s", rootCtx.executionId, name),
		}
	}
	return toInt(value)
}

// resolveCollection evaluates the collection, which is either an expression or the name of a variable.
func (b multiInstanceBehavior) resolveCollection(actx *activityContext) ([]any, error) {
	expression := b.multiInstance.Collection
	if !strings.HasPrefix(expression, "${") {
		expression = "${" + expression + "}"
	}

	value, err := actx.evaluate(expression)
	if err != nil {
		return nil, err
	}

	items, ok := value.([]any)
	if !ok {
		return nil, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to resolve multi-instance collection",
			Detail: fmt.Sprintf("BPMN element %s: collection %s is not a list", actx.bpmnElement().Id, b.multiInstance.Collection),
		}
	}
	return items, nil
}

func (b multiInstanceBehavior) resolveNrOfInstances(actx *activityContext) (int, error) {
	mi := b.multiInstance

	if mi.LoopCardinality != "" {
		value, err := actx.evaluate(mi.LoopCardinality)
		if err != nil {
			return 0, err
		}

		n, err := toInt(value)
		if err != nil || n < 0 {
			return 0, engine.Error{
				Type:   engine.ErrorProcessModel,
				Title:  "failed to resolve multi-instance loop cardinality",
				Detail: fmt.Sprintf("BPMN element %s: loop cardinality %s is not a non-negative integer", actx.bpmnElement().Id, mi.LoopCardinality),
			}
		}
		return n, nil
	}

	items, err := b.resolveCollection(actx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (b multiInstanceBehavior) setLoopVariables(rootCtx *activityContext, nrOfInstances int, nrOfCompletedInstances int, nrOfActiveInstances int) error {
	tree := rootCtx.tree
	rootId := rootCtx.executionId

	if err := tree.SetVariableLocal(rootId, varNrOfInstances, nrOfInstances); err != nil {
		return err
	}
	if err := tree.SetVariableLocal(rootId, varNrOfCompletedInstances, nrOfCompletedInstances); err != nil {
		return err
	}
	return tree.SetVariableLocal(rootId, varNrOfActiveInstances, nrOfActiveInstances)
}
