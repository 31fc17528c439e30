package mem

import (
	"slices"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/hashicorp/go-memdb"
	"github.com/jackc/pgx/v5"
)

type processRepository struct {
	txn *memdb.Txn
}

func (r processRepository) InsertBatch(entities []*internal.ProcessEntity) error {
	for _, entity := range entities {
		existing, err := r.txn.First(tableProcess, indexProcessVersion, entity.BpmnProcessId, entity.Version)
		if err != nil {
			return err
		}
		if existing != nil {
			return pgx.ErrNoRows // indicates a conflict
		}

		v := *entity
		v.EntityState = internal.EntityState{}
		if err := r.txn.Insert(tableProcess, &v); err != nil {
			return err
		}
	}
	return nil
}

func (r processRepository) Select(id string) (*internal.ProcessEntity, error) {
	obj, err := r.txn.First(tableProcess, indexId, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, pgx.ErrNoRows
	}

	v := *obj.(*internal.ProcessEntity)
	return &v, nil
}

func (r processRepository) SelectByBpmnProcessIdAndVersion(bpmnProcessId string, version string) (*internal.ProcessEntity, error) {
	obj, err := r.txn.First(tableProcess, indexProcessVersion, bpmnProcessId, version)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, pgx.ErrNoRows
	}

	v := *obj.(*internal.ProcessEntity)
	return &v, nil
}

type executionRepository struct {
	txn *memdb.Txn
}

func (r executionRepository) InsertBatch(entities []*internal.ExecutionEntity) error {
	for _, entity := range entities {
		v := *entity
		v.EntityState = internal.EntityState{}
		if err := r.txn.Insert(tableExecution, &v); err != nil {
			return err
		}
	}
	return nil
}

func (r executionRepository) Select(id string) (*internal.ExecutionEntity, error) {
	obj, err := r.txn.First(tableExecution, indexId, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, pgx.ErrNoRows
	}

	v := *obj.(*internal.ExecutionEntity)
	return &v, nil
}

func (r executionRepository) SelectByProcessInstanceId(processInstanceId string) ([]*internal.ExecutionEntity, error) {
	return selectAll[internal.ExecutionEntity](r.txn, tableExecution, indexProcessInstanceId, processInstanceId)
}

func (r executionRepository) Update(entity *internal.ExecutionEntity) (int64, error) {
	obj, err := r.txn.First(tableExecution, indexId, entity.Id)
	if err != nil {
		return 0, err
	}
	if obj == nil || obj.(*internal.ExecutionEntity).Revision != entity.Revision {
		return 0, nil
	}

	v := *entity
	v.EntityState = internal.EntityState{}
	v.Revision = entity.RevisionNext()
	return 1, r.txn.Insert(tableExecution, &v)
}

func (r executionRepository) Delete(entity *internal.ExecutionEntity) (int64, error) {
	obj, err := r.txn.First(tableExecution, indexId, entity.Id)
	if err != nil {
		return 0, err
	}
	if obj == nil || obj.(*internal.ExecutionEntity).Revision != entity.Revision {
		return 0, nil
	}
	return 1, r.txn.Delete(tableExecution, obj)
}

type variableRepository struct {
	txn *memdb.Txn
}

func (r variableRepository) InsertBatch(entities []*internal.VariableEntity) error {
	for _, entity := range entities {
		v := *entity
		v.EntityState = internal.EntityState{}
		if err := r.txn.Insert(tableVariable, &v); err != nil {
			return err
		}
	}
	return nil
}

func (r variableRepository) SelectByProcessInstanceId(processInstanceId string) ([]*internal.VariableEntity, error) {
	return selectAll[internal.VariableEntity](r.txn, tableVariable, indexProcessInstanceId, processInstanceId)
}

func (r variableRepository) Update(entity *internal.VariableEntity) (int64, error) {
	obj, err := r.txn.First(tableVariable, indexId, entity.Id)
	if err != nil {
		return 0, err
	}
	if obj == nil || obj.(*internal.VariableEntity).Revision != entity.Revision {
		return 0, nil
	}

	v := *entity
	v.EntityState = internal.EntityState{}
	v.Revision = entity.RevisionNext()
	return 1, r.txn.Insert(tableVariable, &v)
}

func (r variableRepository) Delete(entity *internal.VariableEntity) (int64, error) {
	obj, err := r.txn.First(tableVariable, indexId, entity.Id)
	if err != nil {
		return 0, err
	}
	if obj == nil || obj.(*internal.VariableEntity).Revision != entity.Revision {
		return 0, nil
	}
	return 1, r.txn.Delete(tableVariable, obj)
}

type eventSubscriptionRepository struct {
	txn *memdb.Txn
}

func (r eventSubscriptionRepository) InsertBatch(entities []*internal.EventSubscriptionEntity) error {
	for _, entity := range entities {
		v := *entity
		v.EntityState = internal.EntityState{}
		if err := r.txn.Insert(tableEventSubscription, &v); err != nil {
			return err
		}
	}
	return nil
}

func (r eventSubscriptionRepository) Select(id string) (*internal.EventSubscriptionEntity, error) {
	obj, err := r.txn.First(tableEventSubscription, indexId, id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, pgx.ErrNoRows
	}

	v := *obj.(*internal.EventSubscriptionEntity)
	return &v, nil
}

func (r eventSubscriptionRepository) SelectByProcessInstanceId(processInstanceId string) ([]*internal.EventSubscriptionEntity, error) {
	return selectAll[internal.EventSubscriptionEntity](r.txn, tableEventSubscription, indexProcessInstanceId, processInstanceId)
}

func (r eventSubscriptionRepository) SelectDue(now time.Time, limit int) ([]*internal.EventSubscriptionEntity, error) {
	subscriptions, err := selectAll[internal.EventSubscriptionEntity](r.txn, tableEventSubscription, indexId)
	if err != nil {
		return nil, err
	}

	subscriptions = slices.DeleteFunc(subscriptions, func(e *internal.EventSubscriptionEntity) bool {
		return e.EventType != engine.EventTimer || !e.DueAt.Valid || e.DueAt.Time.After(now)
	})
	slices.SortStableFunc(subscriptions, func(a *internal.EventSubscriptionEntity, b *internal.EventSubscriptionEntity) int {
		return a.DueAt.Time.Compare(b.DueAt.Time)
	})

	if len(subscriptions) > limit {
		subscriptions = subscriptions[:limit]
	}
	return subscriptions, nil
}

func (r eventSubscriptionRepository) Delete(entity *internal.EventSubscriptionEntity) (int64, error) {
	obj, err := r.txn.First(tableEventSubscription, indexId, entity.Id)
	if err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, nil
	}
	return 1, r.txn.Delete(tableEventSubscription, obj)
}
