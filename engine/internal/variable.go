package internal

import (
	"fmt"
	"slices"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5"
)

// VariableEntity is a named value, local to an execution. The value is stored as JSON.
type VariableEntity struct {
	EntityState

	Id       string
	Revision int

	ExecutionId       string
	ProcessInstanceId string

	Name  string
	Value string
}

func (e *VariableEntity) CurrentRevision() int {
	return e.Revision
}

func (e *VariableEntity) EntityId() string {
	return e.Id
}

func (e *VariableEntity) EntityType() EntityType {
	return EntityVariable
}

func (e *VariableEntity) PersistentState() any {
	s := *e
	s.EntityState = EntityState{}
	return s
}

func (e *VariableEntity) RevisionNext() int {
	return e.Revision + 1
}

func (e *VariableEntity) SetRevision(revision int) {
	e.Revision = revision
}

type VariableRepository interface {
	InsertBatch([]*VariableEntity) error

	// SelectByProcessInstanceId selects all variables of a process instance, ordered by ID.
	SelectByProcessInstanceId(processInstanceId string) ([]*VariableEntity, error)

	Update(*VariableEntity) (int64, error)
	Delete(*VariableEntity) (int64, error)
}

type getVariablesCmd struct {
	cmd engine.GetVariablesCmd
}

func (c getVariablesCmd) Execute(cc *CommandContext) (any, error) {
	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	execution, err := tree.Load(c.cmd.ExecutionId)
	if err == pgx.ErrNoRows {
		return nil, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to get variables",
			Detail: fmt.Sprintf("execution %s could not be found", c.cmd.ExecutionId),
		}
	}
	if err != nil {
		return nil, err
	}

	variables := tree.VariablesOf(execution.Id)
	if len(c.cmd.Names) == 0 {
		return variables, nil
	}

	filtered := make(map[string]any, len(c.cmd.Names))
	for name, value := range variables {
		if slices.Contains(c.cmd.Names, name) {
			filtered[name] = value
		}
	}
	return filtered, nil
}

func (c getVariablesCmd) CommandName() string {
	return "GetVariables"
}

type setVariablesCmd struct {
	cmd engine.SetVariablesCmd
}

func (c setVariablesCmd) Execute(cc *CommandContext) (any, error) {
	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	execution, err := tree.Load(c.cmd.ExecutionId)
	if err == pgx.ErrNoRows {
		return nil, engine.Error{
			Type:   engine.ErrorNotFound,
			Title:  "failed to set variables",
			Detail: fmt.Sprintf("execution %s could not be found", c.cmd.ExecutionId),
		}
	}
	if err != nil {
		return nil, err
	}

	if tree.Root(execution.Id).IsEnded {
		return nil, engine.Error{
			Type:   engine.ErrorConflict,
			Title:  "failed to set variables",
			Detail: fmt.Sprintf("process instance %s is ended", execution.ProcessInstanceId),
		}
	}

	touchProcessInstance(cc, tree, execution.ProcessInstanceId)

	for _, name := range sortedKeys(c.cmd.Variables) {
		value := c.cmd.Variables[name]

		if value == nil {
			if c.cmd.Local {
				tree.RemoveVariableLocal(execution.Id, name)
			} else {
				tree.RemoveVariable(execution.Id, name)
			}
			continue
		}

		if c.cmd.Local {
			err = tree.SetVariableLocal(execution.Id, name, value)
		} else {
			err = tree.SetVariable(execution.Id, name, value)
		}
		if err != nil {
			return nil, engine.Error{
				Type:   engine.ErrorValidation,
				Title:  "failed to set variables",
				Detail: fmt.Sprintf("variable %s: %v", name, err),
			}
		}
	}

	return nil, nil
}

func (c setVariablesCmd) CommandName() string {
	return "SetVariables"
}
