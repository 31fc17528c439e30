package internal

import (
	"fmt"
	"time"
)

func openAgenda(cc *CommandContext) (Session, error) {
	return &Agenda{cc: cc}, nil
}

// Agenda is the FIFO queue of operations of a command. The queue is drained by the outermost command, after the
// command itself has been executed.
type Agenda struct {
	cc         *CommandContext
	operations []Operation
}

func (a *Agenda) Close() error {
	a.operations = nil
	return nil
}

func (a *Agenda) Flush() error {
	return nil
}

func (a *Agenda) IsEmpty() bool {
	return len(a.operations) == 0
}

// PlanOperation appends an operation to the queue.
func (a *Agenda) PlanOperation(operation Operation) {
	a.operations = append(a.operations, operation)
}

func (a *Agenda) PlanContinueProcess(executionId string) {
	a.PlanOperation(continueProcess{executionId: executionId})
}

func (a *Agenda) PlanDestroyScope(executionId string) {
	a.PlanOperation(destroyScope{executionId: executionId})
}

func (a *Agenda) PlanEndExecution(executionId string) {
	a.PlanOperation(endExecution{executionId: executionId})
}

// PlanTakeOutgoingSequenceFlows plans to leave the current element via the given sequence flows.
func (a *Agenda) PlanTakeOutgoingSequenceFlows(executionId string, sequenceFlowIds []string) {
	a.PlanOperation(takeOutgoingSequenceFlows{executionId: executionId, sequenceFlowIds: sequenceFlowIds})
}

func (a *Agenda) PlanTriggerExecution(executionId string, signal string, data map[string]any) {
	a.PlanOperation(triggerExecution{executionId: executionId, signal: signal, data: data})
}

func (a *Agenda) next() Operation {
	operation := a.operations[0]
	a.operations[0] = nil
	a.operations = a.operations[1:]
	return operation
}

// Operation is a unit of work of the agenda, which advances a single execution.
type Operation interface {
	ExecutionId() string
	Execute(*CommandContext) error
	fmt.Stringer
}

// OperationRunner runs the operations of an agenda.
type OperationRunner interface {
	Run(*CommandContext, Operation) error
}

type DefaultOperationRunner struct{}

func (DefaultOperationRunner) Run(cc *CommandContext, operation Operation) error {
	return operation.Execute(cc)
}

// LoggingOperationRunner logs each operation before passing it to the next runner.
type LoggingOperationRunner struct {
	Next OperationRunner
}

func (r LoggingOperationRunner) Run(cc *CommandContext, operation Operation) error {
	next := r.Next
	if next == nil {
		next = DefaultOperationRunner{}
	}

	start := time.Now()
	err := next.Run(cc, operation)

	cc.Logger().Debug("executed operation",
		"command", commandName(cc.Command()),
		"operation", operation.String(),
		"execution", operation.ExecutionId(),
		"duration", time.Since(start),
		"error", err,
	)
	return err
}
