package engine

import (
	"fmt"
	"time"
)

// EventType describes the kinds of events, an execution can subscribe to.
type EventType int

const (
	EventCompensate EventType = iota + 1
	EventTimer
)

func MapEventType(s string) EventType {
	switch s {
	case "COMPENSATE":
		return EventCompensate
	case "TIMER":
		return EventTimer
	default:
		return 0
	}
}

func (v EventType) MarshalJSON() ([]byte, error) {
	s := v.String()
	if s == "" {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", s)), nil
}

func (v EventType) String() string {
	switch v {
	case EventCompensate:
		return "COMPENSATE"
	case EventTimer:
		return "TIMER"
	default:
		return ""
	}
}

func (v *EventType) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) > 2 {
		s = s[1 : len(s)-1]
		*v = MapEventType(s)
	}
	if *v == 0 {
		return fmt.Errorf("invalid event type data %s", s)
	}
	return nil
}

// EventSubscription is a pending event of an execution, e.g. a due timer or a registered compensation handler.
type EventSubscription struct {
	Id string `json:"id" validate:"required"` // Event subscription ID.

	ExecutionId       string `json:"executionId" validate:"required"`       // ID of the subscribed execution.
	ProcessInstanceId string `json:"processInstanceId" validate:"required"` // ID of the enclosing process instance.

	ActivityId string     `json:"activityId,omitempty"` // ID of the compensated activity.
	CreatedAt  time.Time  `json:"createdAt"`            // Creation time.
	DueAt      *time.Time `json:"dueAt,omitempty"`      // Due date of a timer event.
	ElementId  string     `json:"elementId"`            // ID of the catching BPMN element or compensation handler.
	EventType  EventType  `json:"eventType"`            // Event type.
}

func (v EventSubscription) String() string {
	return fmt.Sprintf("%s:%s", v.EventType, v.Id)
}

// Execution is a node of a process instance's execution tree.
type Execution struct {
	Id       string `json:"id" validate:"required"` // Execution ID.
	Revision int    `json:"revision"`               // Revision, used for optimistic locking.

	ParentId          string `json:"parentId,omitempty"`                    // ID of the parent execution, empty for the process instance.
	ProcessId         string `json:"processId" validate:"required"`         // ID of the related process.
	ProcessInstanceId string `json:"processInstanceId" validate:"required"` // ID of the enclosing process instance.

	ElementId string    `json:"elementId"` // ID of the current BPMN element.
	CreatedAt time.Time `json:"createdAt"` // Creation time.

	IsActive            bool `json:"isActive"`
	IsConcurrent        bool `json:"isConcurrent"`
	IsEventScope        bool `json:"isEventScope"`
	IsMultiInstanceRoot bool `json:"isMultiInstanceRoot"`
	IsScope             bool `json:"isScope"`
}

func (v Execution) String() string {
	return fmt.Sprintf("%s@%s", v.Id, v.ElementId)
}

// Process is a deployed BPMN process, identified by BPMN process ID and version.
type Process struct {
	Id string `json:"id" validate:"required"` // Process ID.

	BpmnProcessId string    `json:"bpmnProcessId" validate:"required"` // ID of the process element within the BPMN XML.
	CreatedAt     time.Time `json:"createdAt" validate:"required"`     // Creation time.
	CreatedBy     string    `json:"createdBy" validate:"required"`     // ID of the worker that created the process.
	Version       string    `json:"version" validate:"required"`       // Process version.
}

func (v Process) String() string {
	return fmt.Sprintf("%s:%s", v.BpmnProcessId, v.Version)
}

// ProcessInstance is the root execution of an instance of a process.
type ProcessInstance struct {
	Id string `json:"id" validate:"required"` // Process instance ID.

	ProcessId string `json:"processId" validate:"required"` // ID of the related process.

	BpmnProcessId string     `json:"bpmnProcessId" validate:"required"` // ID of the process element within the BPMN XML.
	BusinessKey   string     `json:"businessKey,omitempty"`             // Key, used to correlate a process instance with a business entity.
	CreatedAt     time.Time  `json:"createdAt" validate:"required"`     // Creation time.
	EndedAt       *time.Time `json:"endedAt,omitempty"`                 // End time.
	IsEnded       bool       `json:"isEnded"`                           // Indicates that no execution is active anymore.
	TenantId      string     `json:"tenantId,omitempty"`                // Optional tenant.
	Version       string     `json:"version" validate:"required"`       // Process version.
}

func (v ProcessInstance) String() string {
	return v.Id
}
