package internal

import (
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5"
)

func processInstanceOf(root ExecutionEntity, process *ProcessEntity) engine.ProcessInstance {
	return engine.ProcessInstance{
		Id: root.Id,

		ProcessId: root.ProcessId,

		BpmnProcessId: process.BpmnProcessId,
		BusinessKey:   root.BusinessKey.String,
		CreatedAt:     root.CreatedAt,
		EndedAt:       timeOrNil(root.EndedAt),
		IsEnded:       root.IsEnded,
		TenantId:      root.TenantId.String,
		Version:       process.Version,
	}
}

func notFoundProcessInstance(title string, processInstanceId string, err error) error {
	if err == pgx.ErrNoRows {
		return engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  title,
			Detail: fmt.Sprintf("process instance %s could not be found", processInstanceId),
		}
	}
	return err
}

// touchProcessInstance records the engine, which changes a process instance. The resulting update of the root
// execution lets concurrent commands on the same process instance fail with an optimistic locking conflict.
func touchProcessInstance(cc *CommandContext, tree *ExecutionTree, processInstanceId string) {
	tree.LockExecution(processInstanceId, cc.Options().EngineId)
}

type startProcessInstanceCmd struct {
	cmd engine.StartProcessInstanceCmd
}

func (c startProcessInstanceCmd) CommandName() string {
	return "StartProcessInstance"
}

func (c startProcessInstanceCmd) Execute(cc *CommandContext) (any, error) {
	cmd := c.cmd

	process, err := cc.Runtime().ProcessCache().GetOrCache(cc, cmd.BpmnProcessId, cmd.Version)
	if err == pgx.ErrNoRows {
		return nil, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to start process instance",
			Detail: fmt.Sprintf("process %s:%s could not be found", cmd.BpmnProcessId, cmd.Version),
		}
	}
	if err != nil {
		return nil, err
	}

	startEvent, err := process.graph.startEvent(process.BpmnProcessId)
	if err != nil {
		return nil, err
	}

	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}
	agenda, err := cc.Agenda()
	if err != nil {
		return nil, err
	}

	root := tree.CreateProcessInstance(process, cmd.BusinessKey, cmd.TenantId)
	touchProcessInstance(cc, tree, root.Id)

	for _, name := range sortedKeys(cmd.Variables) {
		if err := tree.SetVariableLocal(root.Id, name, cmd.Variables[name]); err != nil {
			return nil, engine.Error{
				Type:   engine.ErrorValidation,
				Title:  "failed to start process instance",
				Detail: fmt.Sprintf("variable %s: %v", name, err),
			}
		}
	}

	child := tree.CreateChildExecution(root.Id)
	tree.SetElement(child.Id, startEvent.Id)
	agenda.PlanContinueProcess(child.Id)

	AddTransactionListener(cc, TransactionCommitted, func(cc *CommandContext) error {
		cc.Runtime().Metrics().ProcessInstancesStarted.Inc()
		return nil
	})

	cc.Logger().Debug("starting process instance", "process", process.Process().String(), "processInstance", root.Id, "worker", cmd.WorkerId)

	return ResultFunc(func(cc *CommandContext) (any, error) {
		root, _ := tree.Get(root.Id)
		return processInstanceOf(root, process), nil
	}), nil
}

type triggerExecutionCmd struct {
	cmd engine.TriggerExecutionCmd
}

func (c triggerExecutionCmd) CommandName() string {
	return "TriggerExecution"
}

func (c triggerExecutionCmd) Execute(cc *CommandContext) (any, error) {
	cmd := c.cmd

	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	execution, err := tree.Load(cmd.ExecutionId)
	if err == pgx.ErrNoRows {
		return nil, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("execution %s could not be found", cmd.ExecutionId),
		}
	}
	if err != nil {
		return nil, err
	}

	if tree.Root(execution.Id).IsEnded {
		return nil, engine.Error{
			Type:   engine.ErrorConflict,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("process instance %s is ended", execution.ProcessInstanceId),
		}
	}
	if !execution.IsActive || execution.IsProcessInstance() {
		return nil, engine.Error{
			Type:   engine.ErrorValidation,
			Title:  "failed to trigger execution",
			Detail: fmt.Sprintf("this activity isn't waiting for a trigger: %s", execution.ElementId),
		}
	}

	for _, name := range sortedKeys(cmd.Variables) {
		if err := tree.SetVariable(execution.Id, name, cmd.Variables[name]); err != nil {
			return nil, engine.Error{
				Type:   engine.ErrorValidation,
				Title:  "failed to trigger execution",
				Detail: fmt.Sprintf("variable %s: %v", name, err),
			}
		}
	}

	touchProcessInstance(cc, tree, execution.ProcessInstanceId)

	agenda, err := cc.Agenda()
	if err != nil {
		return nil, err
	}

	agenda.PlanTriggerExecution(execution.Id, cmd.Signal, cmd.Variables)
	return nil, nil
}

type deleteProcessInstanceCmd struct {
	cmd engine.DeleteProcessInstanceCmd
}

func (c deleteProcessInstanceCmd) CommandName() string {
	return "DeleteProcessInstance"
}

func (c deleteProcessInstanceCmd) Execute(cc *CommandContext) (any, error) {
	cmd := c.cmd

	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	root, err := tree.LoadProcessInstance(cmd.ProcessInstanceId)
	if err != nil {
		return nil, notFoundProcessInstance("failed to delete process instance", cmd.ProcessInstanceId, err)
	}

	if root.IsEnded {
		return nil, engine.Error{
			Type:   engine.ErrorConflict,
			Title:  "failed to delete process instance",
			Detail: fmt.Sprintf("process instance %s is ended", root.Id),
		}
	}

	touchProcessInstance(cc, tree, root.Id)

	agenda, err := cc.Agenda()
	if err != nil {
		return nil, err
	}

	agenda.PlanDestroyScope(root.Id)

	cc.Logger().Info("deleting process instance", "processInstance", root.Id, "reason", cmd.Reason)
	return nil, nil
}

type getProcessInstanceCmd struct {
	cmd engine.GetProcessInstanceCmd
}

func (c getProcessInstanceCmd) CommandName() string {
	return "GetProcessInstance"
}

func (c getProcessInstanceCmd) Execute(cc *CommandContext) (any, error) {
	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	root, err := tree.LoadProcessInstance(c.cmd.ProcessInstanceId)
	if err != nil {
		return nil, notFoundProcessInstance("failed to get process instance", c.cmd.ProcessInstanceId, err)
	}

	process, err := cc.Runtime().ProcessCache().GetOrCacheById(cc, root.ProcessId)
	if err != nil {
		return nil, err
	}

	return processInstanceOf(root, process), nil
}

type getExecutionsCmd struct {
	cmd engine.GetExecutionsCmd
}

func (c getExecutionsCmd) CommandName() string {
	return "GetExecutions"
}

func (c getExecutionsCmd) Execute(cc *CommandContext) (any, error) {
	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	if _, err := tree.LoadProcessInstance(c.cmd.ProcessInstanceId); err != nil {
		return nil, notFoundProcessInstance("failed to get executions", c.cmd.ProcessInstanceId, err)
	}

	executions := tree.Executions(c.cmd.ProcessInstanceId)

	results := make([]engine.Execution, len(executions))
	for i, execution := range executions {
		results[i] = execution.Execution()
	}
	return results, nil
}
