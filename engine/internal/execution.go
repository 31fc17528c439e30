package internal

import (
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5/pgtype"
)

// ExecutionEntity is a node of the execution tree of a process instance.
// The root execution, which has no parent, represents the process instance itself.
type ExecutionEntity struct {
	EntityState

	Id       string
	Revision int

	ParentId              pgtype.Text
	ProcessId             string
	ProcessInstanceId     string
	RootProcessInstanceId string

	BusinessKey pgtype.Text
	CreatedAt   time.Time
	ElementId   string // ID of the current BPMN element.
	EndedAt     pgtype.Timestamp
	TenantId    pgtype.Text

	IsActive            bool
	IsConcurrent        bool
	IsEnded             bool
	IsEventScope        bool
	IsMultiInstanceRoot bool
	IsScope             bool

	LockOwner pgtype.Text
	LockTime  pgtype.Timestamp
}

func (e *ExecutionEntity) CurrentRevision() int {
	return e.Revision
}

func (e *ExecutionEntity) EntityId() string {
	return e.Id
}

func (e *ExecutionEntity) EntityType() EntityType {
	return EntityExecution
}

func (e *ExecutionEntity) Execution() engine.Execution {
	return engine.Execution{
		Id:       e.Id,
		Revision: e.Revision,

		ParentId:          e.ParentId.String,
		ProcessId:         e.ProcessId,
		ProcessInstanceId: e.ProcessInstanceId,

		ElementId: e.ElementId,
		CreatedAt: e.CreatedAt,

		IsActive:            e.IsActive,
		IsConcurrent:        e.IsConcurrent,
		IsEventScope:        e.IsEventScope,
		IsMultiInstanceRoot: e.IsMultiInstanceRoot,
		IsScope:             e.IsScope,
	}
}

func (e *ExecutionEntity) IsProcessInstance() bool {
	return !e.ParentId.Valid
}

func (e *ExecutionEntity) PersistentState() any {
	s := *e
	s.EntityState = EntityState{}
	return s
}

func (e *ExecutionEntity) RevisionNext() int {
	return e.Revision + 1
}

func (e *ExecutionEntity) SetRevision(revision int) {
	e.Revision = revision
}

type ExecutionRepository interface {
	InsertBatch([]*ExecutionEntity) error

	// Select selects an execution by ID.
	//
	// If no execution is found, [pgx.ErrNoRows] is returned.
	Select(id string) (*ExecutionEntity, error)

	// SelectByProcessInstanceId selects all executions of a process instance, ordered by ID.
	SelectByProcessInstanceId(processInstanceId string) ([]*ExecutionEntity, error)

	// Update updates an execution, if its revision matches the stored revision. The stored revision is incremented.
	// The number of affected rows is returned.
	Update(*ExecutionEntity) (int64, error)

	// Delete deletes an execution, if its revision matches the stored revision.
	// The number of affected rows is returned.
	Delete(*ExecutionEntity) (int64, error)
}
