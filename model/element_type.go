package model

import "fmt"

// ElementType describes the supported BPMN element types - tasks, gateways, events and scopes.
type ElementType int

const (
	ElementBusinessRuleTask ElementType = iota + 1
	ElementCompensateBoundaryEvent
	ElementCompensateThrowEvent
	ElementExclusiveGateway
	ElementInclusiveGateway
	ElementManualTask
	ElementNoneEndEvent
	ElementNoneStartEvent
	ElementNoneThrowEvent
	ElementParallelGateway
	ElementProcess
	ElementReceiveTask
	ElementScriptTask
	ElementSendTask
	ElementServiceTask
	ElementSubProcess
	ElementTask
	ElementTimerCatchEvent
	ElementUserTask
)

var elementTypeNames = map[ElementType]string{
	ElementBusinessRuleTask:        "BUSINESS_RULE_TASK",
	ElementCompensateBoundaryEvent: "COMPENSATE_BOUNDARY_EVENT",
	ElementCompensateThrowEvent:    "COMPENSATE_THROW_EVENT",
	ElementExclusiveGateway:        "EXCLUSIVE_GATEWAY",
	ElementInclusiveGateway:        "INCLUSIVE_GATEWAY",
	ElementManualTask:              "MANUAL_TASK",
	ElementNoneEndEvent:            "NONE_END_EVENT",
	ElementNoneStartEvent:          "NONE_START_EVENT",
	ElementNoneThrowEvent:          "NONE_THROW_EVENT",
	ElementParallelGateway:         "PARALLEL_GATEWAY",
	ElementProcess:                 "PROCESS",
	ElementReceiveTask:             "RECEIVE_TASK",
	ElementScriptTask:              "SCRIPT_TASK",
	ElementSendTask:                "SEND_TASK",
	ElementServiceTask:             "SERVICE_TASK",
	ElementSubProcess:              "SUB_PROCESS",
	ElementTask:                    "TASK",
	ElementTimerCatchEvent:         "TIMER_CATCH_EVENT",
	ElementUserTask:                "USER_TASK",
}

func MapElementType(s string) ElementType {
	for elementType, name := range elementTypeNames {
		if name == s {
			return elementType
		}
	}
	return 0
}

// IsActivity reports if elements of the type can carry multi-instance characteristics and boundary events.
func (v ElementType) IsActivity() bool {
	switch v {
	case
		ElementBusinessRuleTask,
		ElementManualTask,
		ElementReceiveTask,
		ElementScriptTask,
		ElementSendTask,
		ElementServiceTask,
		ElementSubProcess,
		ElementTask,
		ElementUserTask:
		return true
	default:
		return false
	}
}

func (v ElementType) MarshalJSON() ([]byte, error) {
	s := v.String()
	if s == "" {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%q", s)), nil
}

func (v ElementType) String() string {
	return elementTypeNames[v]
}

func (v *ElementType) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) > 2 {
		s = s[1 : len(s)-1]
		*v = MapElementType(s)
	}
	if *v == 0 {
		return fmt.Errorf("invalid element type data %s", s)
	}
	return nil
}
