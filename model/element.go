package model

// Element is a node of the BPMN graph. Relations to other elements and sequence flows are expressed by ID.
type Element struct {
	Id       string
	Name     string
	Type     ElementType
	ParentId string // ID of the enclosing process or sub process, empty for a process.

	Incoming []string // IDs of incoming sequence flows, in declaration order.
	Outgoing []string // IDs of outgoing sequence flows, in declaration order.
	Children []string // IDs of contained elements, only set for processes and sub processes.

	Model any // Element type specific payload.
}

// MultiInstance returns the multi-instance characteristics of an activity, or nil.
func (e *Element) MultiInstance() *MultiInstance {
	if activity, ok := e.Model.(*Activity); ok {
		return activity.MultiInstance
	}
	return nil
}

// DefaultFlow returns the ID of the designated default sequence flow, or an empty string.
func (e *Element) DefaultFlow() string {
	switch model := e.Model.(type) {
	case *Activity:
		return model.Default
	case *ExclusiveGateway:
		return model.Default
	case *InclusiveGateway:
		return model.Default
	default:
		return ""
	}
}

type SequenceFlow struct {
	Id       string
	ParentId string
	SourceId string
	TargetId string

	// Optional guard condition. A flow without condition is unconditioned.
	ConditionExpression string
}

// element specific models

type Process struct {
	IsExecutable bool
}

// Activity is the model of tasks and sub processes.
type Activity struct {
	Default           string // ID of the default sequence flow.
	IsForCompensation bool   // Indicates a compensation handler.

	MultiInstance *MultiInstance
}

type BoundaryEvent struct {
	AttachedTo     string // ID of the activity, the event is attached to.
	CancelActivity bool
	Handler        string // ID of the compensation handler, resolved via association.
}

type CompensateThrowEvent struct {
	ActivityRef string // Optional ID of a specific activity to compensate.
}

type ExclusiveGateway struct {
	Default string
}

type InclusiveGateway struct {
	Default string
}

// MultiInstance describes the loop characteristics of an activity, which is executed multiple times.
type MultiInstance struct {
	IsSequential bool

	LoopCardinality      string // Expression, resolving the number of instances.
	Collection           string // Expression or variable name, resolving a collection of items.
	ElementVariable      string // Name of the instance variable, holding the current item.
	ElementIndexVariable string // Name of the instance variable, holding the current index.
	CompletionCondition  string // Expression, evaluated after each completed instance.

	Aggregations []VariableAggregation
}

// VariableAggregation collects an instance variable of each completed instance into a list variable.
type VariableAggregation struct {
	Source string // Name of the instance variable.
	Target string // Name of the list variable, set when all instances are completed.
}

type TimerEvent struct {
	TimeCycle    string // Cron expression.
	TimeDuration string // ISO 8601 duration.
}
