package internal

import (
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/model"
)

// validateProcess validates if the process and its elements can be executed.
// If the process is invalid, causes are returned.
func validateProcess(bpmnModel *model.Model, processElement *model.Element) []engine.ErrorCause {
	var causes []engine.ErrorCause

	if process, ok := processElement.Model.(*model.Process); !ok || !process.IsExecutable {
		causes = append(causes, engine.ErrorCause{
			Pointer: elementPointer(bpmnModel, processElement),
			Type:    "process",
			Detail:  fmt.Sprintf("BPMN process %s is not executable", processElement.Id),
		})
	}

	bpmnElements := bpmnModel.ElementsByProcessId(processElement.Id)

	for _, bpmnElement := range bpmnElements {
		switch bpmnElement.Type {
		case model.ElementProcess, model.ElementSubProcess:
			causes = append(causes, validateScope(bpmnModel, bpmnElement)...)
		}

		switch bpmnElement.Type {
		case model.ElementCompensateBoundaryEvent:
			boundaryEvent := bpmnElement.Model.(*model.BoundaryEvent)

			attachedTo := bpmnModel.ElementById(boundaryEvent.AttachedTo)
			if attachedTo == nil || !attachedTo.Type.IsActivity() {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, bpmnElement),
					Type:    "element",
					Detail:  fmt.Sprintf("boundary event %s is not attached to an activity: %s", bpmnElement.Id, boundaryEvent.AttachedTo),
				})
			}

			handler := bpmnModel.ElementById(boundaryEvent.Handler)
			if handler == nil {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, bpmnElement),
					Type:    "element",
					Detail:  fmt.Sprintf("compensate boundary event %s has no compensation handler", bpmnElement.Id),
				})
			} else if activity, ok := handler.Model.(*model.Activity); !ok || !activity.IsForCompensation {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, handler),
					Type:    "element",
					Detail:  fmt.Sprintf("compensation handler %s is not marked for compensation", handler.Id),
				})
			}
		case model.ElementCompensateThrowEvent:
			throwEvent := bpmnElement.Model.(*model.CompensateThrowEvent)
			if throwEvent.ActivityRef != "" && bpmnModel.ElementById(throwEvent.ActivityRef) == nil {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, bpmnElement),
					Type:    "element",
					Detail:  fmt.Sprintf("compensate throw event %s references no activity: %s", bpmnElement.Id, throwEvent.ActivityRef),
				})
			}
		case model.ElementExclusiveGateway:
			causes = append(causes, validateDefaultFlow(bpmnModel, bpmnElement, "exclusive gateway")...)
		case model.ElementInclusiveGateway:
			causes = append(causes, validateDefaultFlow(bpmnModel, bpmnElement, "inclusive gateway")...)

			if len(bpmnElement.Incoming) > 1 {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, bpmnElement),
					Type:    "element",
					Detail:  fmt.Sprintf("BPMN element %s is not supported: joining inclusive gateway", bpmnElement.Id),
				})
			}
		case model.ElementTimerCatchEvent:
			timer := bpmnElement.Model.(*model.TimerEvent)
			if detail := validateTimer(timer); detail != "" {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, bpmnElement),
					Type:    "timer",
					Detail:  fmt.Sprintf("timer catch event %s: %s", bpmnElement.Id, detail),
				})
			}
		}

		if bpmnElement.Type.IsActivity() {
			causes = append(causes, validateDefaultFlow(bpmnModel, bpmnElement, "activity")...)

			if mi := bpmnElement.MultiInstance(); mi != nil && mi.LoopCardinality == "" && mi.Collection == "" {
				causes = append(causes, engine.ErrorCause{
					Pointer: elementPointer(bpmnModel, bpmnElement),
					Type:    "multi_instance",
					Detail:  fmt.Sprintf("multi-instance activity %s defines neither a loop cardinality nor a collection", bpmnElement.Id),
				})
			}
		}
	}

	return causes
}

// validateScope validates the start events and sequence flows of a process or sub process.
func validateScope(bpmnModel *model.Model, scope *model.Element) []engine.ErrorCause {
	var causes []engine.ErrorCause

	var startEvents int
	for _, child := range bpmnModel.Children(scope.Id) {
		if child.Type == model.ElementNoneStartEvent {
			startEvents++
		}
	}

	switch {
	case startEvents == 0:
		causes = append(causes, engine.ErrorCause{
			Pointer: elementPointer(bpmnModel, scope),
			Type:    "element",
			Detail:  fmt.Sprintf("BPMN element %s has no none start event", scope.Id),
		})
	case startEvents > 1:
		causes = append(causes, engine.ErrorCause{
			Pointer: elementPointer(bpmnModel, scope),
			Type:    "element",
			Detail:  fmt.Sprintf("BPMN element %s has multiple none start events", scope.Id),
		})
	}

	for _, sequenceFlow := range bpmnModel.SequenceFlowsByParentId(scope.Id) {
		pointer := elementPointer(bpmnModel, scope) + "/" + sequenceFlow.Id

		if bpmnModel.ElementById(sequenceFlow.SourceId) == nil {
			causes = append(causes, engine.ErrorCause{
				Pointer: pointer,
				Type:    "sequence_flow",
				Detail:  fmt.Sprintf("BPMN sequence flow %s has no source element %s", sequenceFlow.Id, sequenceFlow.SourceId),
			})
		}
		if bpmnModel.ElementById(sequenceFlow.TargetId) == nil {
			causes = append(causes, engine.ErrorCause{
				Pointer: pointer,
				Type:    "sequence_flow",
				Detail:  fmt.Sprintf("BPMN sequence flow %s has no target element %s", sequenceFlow.Id, sequenceFlow.TargetId),
			})
		}
	}

	return causes
}

func validateDefaultFlow(bpmnModel *model.Model, bpmnElement *model.Element, kind string) []engine.ErrorCause {
	defaultFlow := bpmnElement.DefaultFlow()
	if defaultFlow == "" {
		return nil
	}

	sequenceFlow := bpmnModel.SequenceFlowById(defaultFlow)
	if sequenceFlow != nil && sequenceFlow.SourceId == bpmnElement.Id {
		return nil
	}

	return []engine.ErrorCause{{
		Pointer: elementPointer(bpmnModel, bpmnElement),
		Type:    "element",
		Detail:  fmt.Sprintf("%s %s has no default sequence flow %s", kind, bpmnElement.Id, defaultFlow),
	}}
}

func validateTimer(timer *model.TimerEvent) string {
	switch {
	case timer.TimeCycle != "":
		if validate.Var(timer.TimeCycle, "time_cycle") != nil {
			return fmt.Sprintf("invalid time cycle %s", timer.TimeCycle)
		}
	case timer.TimeDuration != "":
		if validate.Var(timer.TimeDuration, "time_duration") != nil {
			return fmt.Sprintf("invalid time duration %s", timer.TimeDuration)
		}
	default:
		return "must specify a time cycle or time duration"
	}
	return ""
}

// newGraph builds the executable graph of a valid process, resolving a behavior for each element.
func newGraph(bpmnModel *model.Model, processElement *model.Element) *graph {
	g := graph{
		model:          bpmnModel,
		processElement: processElement,
		nodes:          make(map[string]node),
	}

	for _, bpmnElement := range bpmnModel.ElementsByProcessId(processElement.Id) {
		var behavior Behavior
		switch bpmnElement.Type {
		case
			model.ElementBusinessRuleTask,
			model.ElementManualTask,
			model.ElementNoneStartEvent,
			model.ElementNoneThrowEvent,
			model.ElementScriptTask,
			model.ElementSendTask,
			model.ElementServiceTask,
			model.ElementTask:
			behavior = passThroughBehavior{}
		case model.ElementCompensateBoundaryEvent:
			behavior = compensateBoundaryBehavior{}
		case model.ElementCompensateThrowEvent:
			behavior = compensateThrowBehavior{}
		case model.ElementExclusiveGateway:
			behavior = exclusiveGatewayBehavior{}
		case model.ElementInclusiveGateway:
			behavior = inclusiveGatewayBehavior{}
		case model.ElementNoneEndEvent:
			behavior = endEventBehavior{}
		case model.ElementParallelGateway:
			behavior = parallelGatewayBehavior{}
		case model.ElementProcess:
			behavior = processBehavior{}
		case model.ElementReceiveTask, model.ElementUserTask:
			behavior = waitStateBehavior{}
		case model.ElementSubProcess:
			behavior = subProcessBehavior{}
		case model.ElementTimerCatchEvent:
			behavior = timerCatchBehavior{}
		default:
			continue
		}

		if mi := bpmnElement.MultiInstance(); mi != nil {
			behavior = multiInstanceBehavior{inner: behavior, multiInstance: mi}
		}

		g.nodes[bpmnElement.Id] = node{bpmnElement: bpmnElement, behavior: behavior}
	}

	return &g
}

// graph is the executable form of a BPMN process. It is immutable and shared between commands.
type graph struct {
	model          *model.Model
	processElement *model.Element
	nodes          map[string]node
}

type node struct {
	bpmnElement *model.Element
	behavior    Behavior
}

func (g *graph) node(elementId string) (node, error) {
	n, ok := g.nodes[elementId]
	if !ok {
		return node{}, engine.Error{
			Type:   engine.ErrorProcessModel,
			Title:  "failed to resolve BPMN element",
			Detail: fmt.Sprintf("BPMN process %s has no element %s", g.processElement.Id, elementId),
		}
	}
	return n, nil
}

// startEvent returns the none start event of a process or sub process.
func (g *graph) startEvent(scopeId string) (*model.Element, error) {
	for _, child := range g.model.Children(scopeId) {
		if child.Type == model.ElementNoneStartEvent {
			return child, nil
		}
	}
	return nil, engine.Error{
		Type:   engine.ErrorProcessModel,
		Title:  "failed to start scope",
		Detail: fmt.Sprintf("BPMN element %s has no none start event", scopeId),
	}
}
