package engine

import (
	"time"
)

// CreateProcessCmd provides data for the creation of a process.
type CreateProcessCmd struct {
	// ID of the process element within the BPMN XML.
	BpmnProcessId string `json:"bpmnProcessId" validate:"required"`
	// Model of the BPMN process as XML.
	BpmnXml string `json:"bpmnXml" validate:"required"`
	// Any process version.
	Version string `json:"version" validate:"required"`
	// ID of the worker or user that created the process.
	WorkerId string `json:"workerId" validate:"required"`
}

// DeleteProcessInstanceCmd specifies an active process instance, which is cancelled.
type DeleteProcessInstanceCmd struct {
	// Process instance ID.
	ProcessInstanceId string `json:"processInstanceId" validate:"required"`
	// Optional reason, which is logged.
	Reason string `json:"reason,omitempty"`
}

// ExecuteTimersCmd specifies how many due timers are triggered at once.
type ExecuteTimersCmd struct {
	// Maximum number of timers to trigger.
	Limit int `json:"limit" validate:"gte=1,lte=1000"`
}

// GetEventSubscriptionsCmd specifies the process instance, whose event subscriptions are returned.
type GetEventSubscriptionsCmd struct {
	ProcessInstanceId string `json:"processInstanceId" validate:"required"`
}

// GetExecutionsCmd specifies the process instance, whose execution tree is returned.
type GetExecutionsCmd struct {
	ProcessInstanceId string `json:"processInstanceId" validate:"required"`
}

type GetProcessInstanceCmd struct {
	ProcessInstanceId string `json:"processInstanceId" validate:"required"`
}

// GetVariablesCmd specifies the execution, whose visible variables are returned.
type GetVariablesCmd struct {
	// Execution ID.
	ExecutionId string `json:"executionId" validate:"required"`
	// Optional names of the variables to get. If empty, all visible variables are returned.
	Names []string `json:"names,omitempty" validate:"max=100"`
}

type SetTimeCmd struct {
	// A future point in time.
	Time time.Time `json:"time" validate:"required"`
}

// SetVariablesCmd provides variables, which are set at a specific execution.
type SetVariablesCmd struct {
	// Execution ID.
	ExecutionId string `json:"executionId" validate:"required"`
	// Sets the variables local to the execution, instead of the scope, which already holds a variable.
	Local bool `json:"local,omitempty"`
	// Variables to set or delete. For a variable deletion, a nil value must be provided.
	Variables map[string]any `json:"variables" validate:"max=100,dive,keys,variable_name,endkeys"`
}

// StartProcessInstanceCmd provides data for the creation and start of a process instance.
type StartProcessInstanceCmd struct {
	// BPMN ID of an existing process.
	BpmnProcessId string `json:"bpmnProcessId" validate:"required"`
	// Optional key, used to correlate a process instance with a business entity.
	BusinessKey string `json:"businessKey,omitempty"`
	// Optional tenant.
	TenantId string `json:"tenantId,omitempty"`
	// Variables to set at process instance scope.
	Variables map[string]any `json:"variables,omitempty" validate:"max=100,dive,keys,variable_name,endkeys"`
	// Version of an existing process.
	Version string `json:"version" validate:"required"`
	// ID of the worker or user that started the process instance.
	WorkerId string `json:"workerId" validate:"required"`
}

// TriggerExecutionCmd signals an execution, which waits for a trigger.
type TriggerExecutionCmd struct {
	// Execution ID.
	ExecutionId string `json:"executionId" validate:"required"`
	// Optional signal name.
	Signal string `json:"signal,omitempty"`
	// Variables to set, before the execution continues.
	Variables map[string]any `json:"variables,omitempty" validate:"max=100,dive,keys,variable_name,endkeys"`
}
