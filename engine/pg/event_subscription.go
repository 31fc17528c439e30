package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
)

const sqlSelectEventSubscription = `
SELECT
	id,

	execution_id,
	process_instance_id,

	activity_id,
	created_at,
	due_at,
	element_id,
	event_type
FROM
	event_subscription
`

type eventSubscriptionRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r eventSubscriptionRepository) InsertBatch(entities []*internal.EventSubscriptionEntity) error {
	if len(entities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, entity := range entities {
		batch.Queue(`
INSERT INTO event_subscription (
	id,

	execution_id,
	process_instance_id,

	activity_id,
	created_at,
	due_at,
	element_id,
	event_type
) VALUES (
	$1,

	$2,
	$3,

	$4,
	$5,
	$6,
	$7,
	$8
)
`,
			entity.Id,

			entity.ExecutionId,
			entity.ProcessInstanceId,

			entity.ActivityId,
			entity.CreatedAt,
			entity.DueAt,
			entity.ElementId,
			entity.EventType.String(),
		)
	}

	batchResults := r.tx.SendBatch(r.txCtx, batch)
	defer batchResults.Close()

	for _, entity := range entities {
		if _, err := batchResults.Exec(); err != nil {
			return fmt.Errorf("failed to insert event subscription %s: %w", entity.Id, err)
		}
	}

	return nil
}

func (r eventSubscriptionRepository) Select(id string) (*internal.EventSubscriptionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, sqlSelectEventSubscription+"WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to select event subscription %s: %w", id, err)
	}

	entities, err := scanEventSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, pgx.ErrNoRows
	}

	return entities[0], nil
}

func (r eventSubscriptionRepository) SelectByProcessInstanceId(processInstanceId string) ([]*internal.EventSubscriptionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, sqlSelectEventSubscription+"WHERE process_instance_id = $1 ORDER BY id", processInstanceId)
	if err != nil {
		return nil, fmt.Errorf("failed to select event subscriptions of process instance %s: %w", processInstanceId, err)
	}

	return scanEventSubscriptions(rows)
}

func (r eventSubscriptionRepository) SelectDue(now time.Time, limit int) ([]*internal.EventSubscriptionEntity, error) {
	rows, err := r.tx.Query(
		r.txCtx,
		sqlSelectEventSubscription+"WHERE event_type = $1 AND due_at <= $2 ORDER BY due_at, id LIMIT $3",
		engine.EventTimer.String(),
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select due event subscriptions: %w", err)
	}

	return scanEventSubscriptions(rows)
}

func (r eventSubscriptionRepository) Delete(entity *internal.EventSubscriptionEntity) (int64, error) {
	tag, err := r.tx.Exec(r.txCtx, "DELETE FROM event_subscription WHERE id = $1", entity.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete event subscription %s: %w", entity.Id, err)
	}

	return tag.RowsAffected(), nil
}

func scanEventSubscriptions(rows pgx.Rows) ([]*internal.EventSubscriptionEntity, error) {
	defer rows.Close()

	var entities []*internal.EventSubscriptionEntity
	for rows.Next() {
		var (
			entity    internal.EventSubscriptionEntity
			eventType string
		)

		if err := rows.Scan(
			&entity.Id,

			&entity.ExecutionId,
			&entity.ProcessInstanceId,

			&entity.ActivityId,
			&entity.CreatedAt,
			&entity.DueAt,
			&entity.ElementId,
			&eventType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event subscription row: %w", err)
		}

		entity.EventType = engine.MapEventType(eventType)
		entities = append(entities, &entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event subscription rows: %w", err)
	}

	return entities, nil
}
