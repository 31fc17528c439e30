package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"testing"
)

// Assert returns a helper for testing process instances, executed by the given engine.
func Assert(t *testing.T, e Engine, processInstance ProcessInstance) *ProcessInstanceAssert {
	return &ProcessInstanceAssert{
		t: t,
		e: e,

		processInstanceId: processInstance.Id,
	}
}

// AssertStart starts a process instance and returns a helper for testing it.
func AssertStart(t *testing.T, e Engine, cmd StartProcessInstanceCmd) *ProcessInstanceAssert {
	processInstance, err := e.StartProcessInstance(context.Background(), cmd)
	if err != nil {
		t.Fatalf("failed to start process instance: %v", err)
	}
	return Assert(t, e, processInstance)
}

type ProcessInstanceAssert struct {
	t *testing.T
	e Engine

	processInstanceId string
	executionId       string
	elementId         string
}

// Executions returns the execution tree of the process instance.
func (a *ProcessInstanceAssert) Executions() []Execution {
	executions, err := a.e.GetExecutions(context.Background(), GetExecutionsCmd{ProcessInstanceId: a.processInstanceId})
	if err != nil {
		a.Fatalf("failed to get executions: %v", err)
	}
	return executions
}

func (a *ProcessInstanceAssert) Fatalf(format string, args ...any) {
	data := map[string]string{
		"Error Trace": string(debug.Stack()),
		"Error":       fmt.Sprintf(format, args...),
		"Test":        a.t.Name(),
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("\n%s: %s", k, data[k]))
	}

	a.t.Fatal(sb.String())
}

func (a *ProcessInstanceAssert) HasNoProcessVariable(name string) {
	if _, ok := a.processVariables(name)[name]; ok {
		a.Fatalf("expected process instance to have no variable %s, but has", name)
	}
}

// HasProcessVariable asserts that the process instance holds the variable and returns its value.
func (a *ProcessInstanceAssert) HasProcessVariable(name string) any {
	value, ok := a.processVariables(name)[name]
	if !ok {
		a.Fatalf("expected process instance to have variable %s, but has not", name)
	}
	return value
}

func (a *ProcessInstanceAssert) IsEnded() {
	if !a.ProcessInstance().IsEnded {
		a.Fatalf("expected process instance to be ended, but is waiting at %s", strings.Join(a.waitingAt(), ", "))
	}
}

func (a *ProcessInstanceAssert) IsNotEnded() {
	if a.ProcessInstance().IsEnded {
		a.Fatalf("expected process instance not to be ended, but is")
	}
}

func (a *ProcessInstanceAssert) IsNotWaitingAt(elementId string) {
	if executions := a.WaitingExecutions(elementId); len(executions) != 0 {
		a.Fatalf("expected process instance not to be waiting at %s: active executions found: %d", elementId, len(executions))
	}
}

// IsWaitingAt asserts that at least one execution waits at the given element.
// The first waiting execution becomes the target of a subsequent [ProcessInstanceAssert.Trigger].
func (a *ProcessInstanceAssert) IsWaitingAt(elementId string) {
	executions := a.WaitingExecutions(elementId)
	if len(executions) == 0 {
		a.Fatalf("expected process instance to be waiting at %s, but is waiting at %s", elementId, strings.Join(a.waitingAt(), ", "))
	}

	a.executionId = executions[0].Id
	a.elementId = elementId
}

func (a *ProcessInstanceAssert) ProcessInstance() ProcessInstance {
	processInstance, err := a.e.GetProcessInstance(context.Background(), GetProcessInstanceCmd{ProcessInstanceId: a.processInstanceId})
	if err != nil {
		a.Fatalf("failed to get process instance: %v", err)
	}
	return processInstance
}

// Trigger triggers the execution, found by the last call of [ProcessInstanceAssert.IsWaitingAt].
func (a *ProcessInstanceAssert) Trigger(variables ...map[string]any) {
	if a.executionId == "" {
		a.Fatalf("call IsWaitingAt first")
	}

	cmd := TriggerExecutionCmd{ExecutionId: a.executionId}
	if len(variables) != 0 {
		cmd.Variables = variables[0]
	}

	if err := a.e.TriggerExecution(context.Background(), cmd); err != nil {
		a.Fatalf("failed to trigger execution %s at %s: %v", a.executionId, a.elementId, err)
	}

	a.executionId = ""
	a.elementId = ""
}

// WaitingExecutions returns the active executions, which wait at the given element.
func (a *ProcessInstanceAssert) WaitingExecutions(elementId string) []Execution {
	var results []Execution
	for _, execution := range a.Executions() {
		if execution.ElementId == elementId && execution.IsActive && !execution.IsScope {
			results = append(results, execution)
		}
	}
	return results
}

func (a *ProcessInstanceAssert) processVariables(name string) map[string]any {
	variables, err := a.e.GetVariables(context.Background(), GetVariablesCmd{
		ExecutionId: a.processInstanceId,
		Names:       []string{name},
	})
	if err != nil {
		a.Fatalf("failed to get process variable %s: %v", name, err)
	}
	return variables
}

func (a *ProcessInstanceAssert) waitingAt() []string {
	var elementIds []string
	for _, execution := range a.Executions() {
		if execution.IsActive && !execution.IsScope {
			elementIds = append(elementIds, execution.ElementId)
		}
	}
	return elementIds
}
