package model

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func New(bpmnXmlReader io.Reader) (*Model, error) {
	var (
		definitions       Definitions
		definitionsParsed bool

		elements        = make(map[string]*Element)
		elementIds      []string
		sequenceFlows   = make(map[string]*SequenceFlow)
		sequenceFlowIds []string
		associations    [][2]string

		stack []frame

		text       strings.Builder
		assignText func(string)
	)

	// nearest enclosing process or sub process
	container := func() *Element {
		for i := len(stack) - 1; i >= 0; i-- {
			if e := stack[i].element; e != nil && (e.Type == ElementProcess || e.Type == ElementSubProcess) {
				return e
			}
		}
		return nil
	}

	current := func() frame {
		if len(stack) == 0 {
			return frame{}
		}
		return stack[len(stack)-1]
	}

	// nearest element, the current XML token belongs to
	currentElement := func() *Element {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].element != nil {
				return stack[i].element
			}
		}
		return nil
	}

	newElement := func(elementType ElementType, attributes []xml.Attr) *Element {
		element := &Element{
			Id:   getAttrValue(attributes, "id"),
			Name: getAttrValue(attributes, "name"),
			Type: elementType,
		}
		if parent := container(); parent != nil {
			element.ParentId = parent.Id
		}
		return element
	}

	newActivity := func(elementType ElementType, attributes []xml.Attr) *Element {
		isForCompensation, _ := strconv.ParseBool(getAttrValue(attributes, "isForCompensation"))

		element := newElement(elementType, attributes)
		element.Model = &Activity{
			Default:           getAttrValue(attributes, "default"),
			IsForCompensation: isForCompensation,
		}
		return element
	}

	captureText := func(assign func(string)) {
		text.Reset()
		assignText = assign
	}

	decoder := xml.NewDecoder(bpmnXmlReader)

	count := 0
	for {
		token, err := decoder.Token()
		if token == nil || err == io.EOF {
			if count == 0 {
				return nil, errors.New("XML is empty")
			}
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode XML: %v", err)
		}

		count++

		switch t := token.(type) {
		case xml.StartElement:
			f := frame{name: t.Name.Local}

			switch t.Name.Local {
			case "association":
				associations = append(associations, [2]string{
					getAttrValue(t.Attr, "sourceRef"),
					getAttrValue(t.Attr, "targetRef"),
				})
			case "boundaryEvent":
				cancelActivity, _ := strconv.ParseBool(getAttrValueWithDefault(t.Attr, "cancelActivity", "true"))

				f.element = newElement(0, t.Attr) // unknown type
				f.element.Model = &BoundaryEvent{
					AttachedTo:     getAttrValue(t.Attr, "attachedToRef"),
					CancelActivity: cancelActivity,
				}
			case "businessRuleTask":
				f.element = newActivity(ElementBusinessRuleTask, t.Attr)
			case "compensateEventDefinition":
				if element := currentElement(); element != nil {
					switch model := element.Model.(type) {
					case *BoundaryEvent:
						element.Type = ElementCompensateBoundaryEvent
					case *CompensateThrowEvent:
						element.Type = ElementCompensateThrowEvent
						model.ActivityRef = getAttrValue(t.Attr, "activityRef")
					}
				}
			case "completionCondition":
				if mi := current().multiInstance; mi != nil {
					captureText(func(s string) { mi.CompletionCondition = s })
				}
			case "conditionExpression":
				if sequenceFlow := current().sequenceFlow; sequenceFlow != nil {
					captureText(func(s string) { sequenceFlow.ConditionExpression = s })
				}
			case "definitions":
				definitions.Id = getAttrValue(t.Attr, "id")
				definitionsParsed = true
			case "endEvent":
				f.element = newElement(ElementNoneEndEvent, t.Attr)
			case "exclusiveGateway":
				f.element = newElement(ElementExclusiveGateway, t.Attr)
				f.element.Model = &ExclusiveGateway{Default: getAttrValue(t.Attr, "default")}
			case "inclusiveGateway":
				f.element = newElement(ElementInclusiveGateway, t.Attr)
				f.element.Model = &InclusiveGateway{Default: getAttrValue(t.Attr, "default")}
			case "inputDataItem":
				if mi := current().multiInstance; mi != nil && mi.ElementVariable == "" {
					mi.ElementVariable = getAttrValue(t.Attr, "name")
				}
			case "intermediateCatchEvent":
				f.element = newElement(0, t.Attr) // unknown type
			case "intermediateThrowEvent":
				f.element = newElement(ElementNoneThrowEvent, t.Attr)
				f.element.Model = &CompensateThrowEvent{}
			case "loopCardinality":
				if mi := current().multiInstance; mi != nil {
					captureText(func(s string) { mi.LoopCardinality = s })
				}
			case "loopDataInputRef":
				if mi := current().multiInstance; mi != nil {
					captureText(func(s string) { mi.Collection = s })
				}
			case "manualTask":
				f.element = newActivity(ElementManualTask, t.Attr)
			case "multiInstanceLoopCharacteristics":
				isSequential, _ := strconv.ParseBool(getAttrValue(t.Attr, "isSequential"))

				f.multiInstance = &MultiInstance{
					IsSequential:         isSequential,
					Collection:           getAttrValue(t.Attr, "collection"),
					ElementVariable:      getAttrValue(t.Attr, "elementVariable"),
					ElementIndexVariable: getAttrValue(t.Attr, "elementIndexVariable"),
				}

				if element := currentElement(); element != nil {
					if activity, ok := element.Model.(*Activity); ok {
						activity.MultiInstance = f.multiInstance
					}
				}
			case "parallelGateway":
				f.element = newElement(ElementParallelGateway, t.Attr)
			case "process":
				isExecutable, _ := strconv.ParseBool(getAttrValue(t.Attr, "isExecutable"))

				f.element = newElement(ElementProcess, t.Attr)
				f.element.Model = &Process{IsExecutable: isExecutable}
			case "receiveTask":
				f.element = newActivity(ElementReceiveTask, t.Attr)
			case "scriptTask":
				f.element = newActivity(ElementScriptTask, t.Attr)
			case "sendTask":
				f.element = newActivity(ElementSendTask, t.Attr)
			case "sequenceFlow":
				f.sequenceFlow = &SequenceFlow{
					Id:       getAttrValue(t.Attr, "id"),
					SourceId: getAttrValue(t.Attr, "sourceRef"),
					TargetId: getAttrValue(t.Attr, "targetRef"),
				}
				if parent := container(); parent != nil {
					f.sequenceFlow.ParentId = parent.Id
				}
			case "serviceTask":
				f.element = newActivity(ElementServiceTask, t.Attr)
			case "startEvent":
				f.element = newElement(ElementNoneStartEvent, t.Attr)
			case "subProcess":
				f.element = newActivity(ElementSubProcess, t.Attr)
			case "task":
				f.element = newActivity(ElementTask, t.Attr)
			case "timeCycle":
				if element := currentElement(); element != nil {
					if timer, ok := element.Model.(*TimerEvent); ok {
						captureText(func(s string) { timer.TimeCycle = s })
					}
				}
			case "timeDuration":
				if element := currentElement(); element != nil {
					if timer, ok := element.Model.(*TimerEvent); ok {
						captureText(func(s string) { timer.TimeDuration = s })
					}
				}
			case "timerEventDefinition":
				if element := currentElement(); element != nil {
					if element.Type == 0 && element.Model == nil {
						element.Type = ElementTimerCatchEvent
						element.Model = &TimerEvent{}
					} else {
						element.Type = 0 // unsupported timer event
					}
				}
			case "userTask":
				f.element = newActivity(ElementUserTask, t.Attr)
			case "variableAggregation":
				if mi := current().multiInstance; mi != nil {
					mi.Aggregations = append(mi.Aggregations, VariableAggregation{
						Source: getAttrValue(t.Attr, "source"),
						Target: getAttrValue(t.Attr, "target"),
					})
				}
			default:
				f.multiInstance = current().multiInstance // e.g. extensionElements
			}

			stack = append(stack, f)
		case xml.CharData:
			if assignText != nil {
				text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}

			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if assignText != nil && f.element == nil && f.sequenceFlow == nil && f.name == t.Name.Local {
				switch t.Name.Local {
				case "completionCondition", "conditionExpression", "loopCardinality", "loopDataInputRef", "timeCycle", "timeDuration":
					assignText(strings.TrimSpace(text.String()))
					assignText = nil
				}
			}

			if sequenceFlow := f.sequenceFlow; sequenceFlow != nil {
				if _, ok := sequenceFlows[sequenceFlow.Id]; ok {
					return nil, fmt.Errorf("duplicate BPMN sequence flow ID %s", sequenceFlow.Id)
				}
				sequenceFlows[sequenceFlow.Id] = sequenceFlow
				sequenceFlowIds = append(sequenceFlowIds, sequenceFlow.Id)
			}

			element := f.element
			if element == nil || element.Type == 0 {
				continue // skip unknown element
			}

			if element.Type == ElementNoneThrowEvent {
				element.Model = nil
			}

			if element.Id == "" {
				return nil, fmt.Errorf("BPMN element of type %s has no ID", element.Type)
			}
			if _, ok := elements[element.Id]; ok {
				return nil, fmt.Errorf("duplicate BPMN element ID %s", element.Id)
			}

			elements[element.Id] = element
			elementIds = append(elementIds, element.Id)

			if parent := container(); parent != nil {
				parent.Children = append(parent.Children, element.Id)
			}
			if element.Type == ElementProcess {
				definitions.Processes = append(definitions.Processes, element.Id)
			}
		}
	}

	if !definitionsParsed {
		return nil, errors.New("no definitions found")
	}

	for _, id := range sequenceFlowIds {
		sequenceFlow := sequenceFlows[id]
		if source, ok := elements[sequenceFlow.SourceId]; ok {
			source.Outgoing = append(source.Outgoing, id)
		}
		if target, ok := elements[sequenceFlow.TargetId]; ok {
			target.Incoming = append(target.Incoming, id)
		}
	}

	for _, association := range associations {
		source, ok := elements[association[0]]
		if !ok || source.Type != ElementCompensateBoundaryEvent {
			continue
		}
		boundaryEvent := source.Model.(*BoundaryEvent)
		boundaryEvent.Handler = association[1]
	}

	return &Model{
		Definitions: &definitions,

		elements:        elements,
		elementIds:      elementIds,
		sequenceFlows:   sequenceFlows,
		sequenceFlowIds: sequenceFlowIds,
	}, nil
}

// Model is a read-only BPMN model. Elements and sequence flows are held in flat maps and reference each other by ID.
type Model struct {
	Definitions *Definitions

	elements        map[string]*Element
	elementIds      []string // document order, children before their container
	sequenceFlows   map[string]*SequenceFlow
	sequenceFlowIds []string
}

// AttachedTo returns all boundary events that are attached to a specific activity.
func (m *Model) AttachedTo(id string) []*Element {
	var elements []*Element
	for _, elementId := range m.elementIds {
		element := m.elements[elementId]
		if boundaryEvent, ok := element.Model.(*BoundaryEvent); ok && boundaryEvent.AttachedTo == id {
			elements = append(elements, element)
		}
	}
	return elements
}

// Children returns the elements, contained by a process or sub process.
func (m *Model) Children(id string) []*Element {
	element := m.ElementById(id)
	if element == nil {
		return nil
	}

	children := make([]*Element, len(element.Children))
	for i, childId := range element.Children {
		children[i] = m.elements[childId]
	}
	return children
}

// ElementById returns the element with the given id, or nil, if no such element exists.
func (m *Model) ElementById(id string) *Element {
	return m.elements[id]
}

// ElementsByProcessId returns all elements of a process, including the process element itself.
// If the process does not exist, nil is returned.
func (m *Model) ElementsByProcessId(processId string) []*Element {
	processElement, err := m.ProcessById(processId)
	if err != nil {
		return nil
	}

	bpmnElements := []*Element{processElement}

	i := 0
	for i < len(bpmnElements) {
		bpmnElements = append(bpmnElements, m.Children(bpmnElements[i].Id)...)
		i++
	}

	return bpmnElements
}

// ElementsByType returns all elements of the given type.
func (m *Model) ElementsByType(elementType ElementType) []*Element {
	var elements []*Element
	for _, id := range m.elementIds {
		if m.elements[id].Type == elementType {
			elements = append(elements, m.elements[id])
		}
	}
	return elements
}

// Incoming returns the incoming sequence flows of an element.
func (m *Model) Incoming(id string) []*SequenceFlow {
	element := m.ElementById(id)
	if element == nil {
		return nil
	}
	return m.sequenceFlowsById(element.Incoming)
}

// Outgoing returns the outgoing sequence flows of an element in declaration order.
func (m *Model) Outgoing(id string) []*SequenceFlow {
	element := m.ElementById(id)
	if element == nil {
		return nil
	}
	return m.sequenceFlowsById(element.Outgoing)
}

// ProcessById returns the process with the given id.
func (m *Model) ProcessById(id string) (*Element, error) {
	for _, processId := range m.Definitions.Processes {
		if processId == id {
			return m.elements[processId], nil
		}
	}
	return nil, fmt.Errorf("BPMN process %s not found", id)
}

// SequenceFlowById returns the sequence flow with the given id, or nil, if no such sequence flow exists.
func (m *Model) SequenceFlowById(id string) *SequenceFlow {
	return m.sequenceFlows[id]
}

// SequenceFlowsByParentId returns all sequence flows, declared within a process or sub process.
func (m *Model) SequenceFlowsByParentId(parentId string) []*SequenceFlow {
	var sequenceFlows []*SequenceFlow
	for _, id := range m.sequenceFlowIds {
		if m.sequenceFlows[id].ParentId == parentId {
			sequenceFlows = append(sequenceFlows, m.sequenceFlows[id])
		}
	}
	return sequenceFlows
}

func (m *Model) sequenceFlowsById(ids []string) []*SequenceFlow {
	sequenceFlows := make([]*SequenceFlow, len(ids))
	for i, id := range ids {
		sequenceFlows[i] = m.sequenceFlows[id]
	}
	return sequenceFlows
}

type Definitions struct {
	Id string

	Processes []string // IDs of the process elements.
}

// frame is an open XML element during parsing.
type frame struct {
	name          string
	element       *Element
	multiInstance *MultiInstance
	sequenceFlow  *SequenceFlow
}

func getAttrValue(attributes []xml.Attr, name string) string {
	for i := range attributes {
		if attributes[i].Name.Local == name {
			return attributes[i].Value
		}
	}
	return ""
}

func getAttrValueWithDefault(attributes []xml.Attr, name string, defaultValue string) string {
	if value := getAttrValue(attributes, name); value != "" {
		return value
	} else {
		return defaultValue
	}
}
