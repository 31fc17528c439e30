package pg

import (
	"context"
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
)

type executionRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r executionRepository) InsertBatch(entities []*internal.ExecutionEntity) error {
	if len(entities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, entity := range entities {
		batch.Queue(`
INSERT INTO execution (
	id,
	revision,

	parent_id,
	process_id,
	process_instance_id,
	root_process_instance_id,

	business_key,
	created_at,
	element_id,
	ended_at,
	tenant_id,

	is_active,
	is_concurrent,
	is_ended,
	is_event_scope,
	is_multi_instance_root,
	is_scope,

	lock_owner,
	lock_time
) VALUES (
	$1,
	$2,

	$3,
	$4,
	$5,
	$6,

	$7,
	$8,
	$9,
	$10,
	$11,

	$12,
	$13,
	$14,
	$15,
	$16,
	$17,

	$18,
	$19
)
`,
			entity.Id,
			entity.Revision,

			entity.ParentId,
			entity.ProcessId,
			entity.ProcessInstanceId,
			entity.RootProcessInstanceId,

			entity.BusinessKey,
			entity.CreatedAt,
			entity.ElementId,
			entity.EndedAt,
			entity.TenantId,

			entity.IsActive,
			entity.IsConcurrent,
			entity.IsEnded,
			entity.IsEventScope,
			entity.IsMultiInstanceRoot,
			entity.IsScope,

			entity.LockOwner,
			entity.LockTime,
		)
	}

	batchResults := r.tx.SendBatch(r.txCtx, batch)
	defer batchResults.Close()

	for _, entity := range entities {
		if _, err := batchResults.Exec(); err != nil {
			return fmt.Errorf("failed to insert execution %s: %w", entity.Id, err)
		}
	}

	return nil
}

func (r executionRepository) Select(id string) (*internal.ExecutionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, `
SELECT
	id,
	revision,

	parent_id,
	process_id,
	process_instance_id,
	root_process_instance_id,

	business_key,
	created_at,
	element_id,
	ended_at,
	tenant_id,

	is_active,
	is_concurrent,
	is_ended,
	is_event_scope,
	is_multi_instance_root,
	is_scope,

	lock_owner,
	lock_time
FROM
	execution
WHERE
	id = $1
`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select execution %s: %w", id, err)
	}

	entities, err := scanExecutions(rows)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, pgx.ErrNoRows
	}

	return entities[0], nil
}

func (r executionRepository) SelectByProcessInstanceId(processInstanceId string) ([]*internal.ExecutionEntity, error) {
	rows, err := r.tx.Query(r.txCtx, `
SELECT
	id,
	revision,

	parent_id,
	process_id,
	process_instance_id,
	root_process_instance_id,

	business_key,
	created_at,
	element_id,
	ended_at,
	tenant_id,

	is_active,
	is_concurrent,
	is_ended,
	is_event_scope,
	is_multi_instance_root,
	is_scope,

	lock_owner,
	lock_time
FROM
	execution
WHERE
	process_instance_id = $1
ORDER BY
	id
`, processInstanceId)
	if err != nil {
		return nil, fmt.Errorf("failed to select executions of process instance %s: %w", processInstanceId, err)
	}

	return scanExecutions(rows)
}

func (r executionRepository) Update(entity *internal.ExecutionEntity) (int64, error) {
	tag, err := r.tx.Exec(r.txCtx, `
UPDATE
	execution
SET
	revision = revision + 1,

	parent_id = $3,
	element_id = $4,
	ended_at = $5,

	is_active = $6,
	is_concurrent = $7,
	is_ended = $8,
	is_event_scope = $9,
	is_multi_instance_root = $10,
	is_scope = $11,

	lock_owner = $12,
	lock_time = $13
WHERE
	id = $1 AND
	revision = $2
`,
		entity.Id,
		entity.Revision,

		entity.ParentId,
		entity.ElementId,
		entity.EndedAt,

		entity.IsActive,
		entity.IsConcurrent,
		entity.IsEnded,
		entity.IsEventScope,
		entity.IsMultiInstanceRoot,
		entity.IsScope,

		entity.LockOwner,
		entity.LockTime,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update execution %s: %w", entity.Id, err)
	}

	return tag.RowsAffected(), nil
}

func (r executionRepository) Delete(entity *internal.ExecutionEntity) (int64, error) {
	tag, err := r.tx.Exec(r.txCtx, "DELETE FROM execution WHERE id = $1 AND revision = $2", entity.Id, entity.Revision)
	if err != nil {
		return 0, fmt.Errorf("failed to delete execution %s: %w", entity.Id, err)
	}

	return tag.RowsAffected(), nil
}

func scanExecutions(rows pgx.Rows) ([]*internal.ExecutionEntity, error) {
	defer rows.Close()

	var entities []*internal.ExecutionEntity
	for rows.Next() {
		var entity internal.ExecutionEntity

		if err := rows.Scan(
			&entity.Id,
			&entity.Revision,

			&entity.ParentId,
			&entity.ProcessId,
			&entity.ProcessInstanceId,
			&entity.RootProcessInstanceId,

			&entity.BusinessKey,
			&entity.CreatedAt,
			&entity.ElementId,
			&entity.EndedAt,
			&entity.TenantId,

			&entity.IsActive,
			&entity.IsConcurrent,
			&entity.IsEnded,
			&entity.IsEventScope,
			&entity.IsMultiInstanceRoot,
			&entity.IsScope,

			&entity.LockOwner,
			&entity.LockTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}

		entities = append(entities, &entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read execution rows: %w", err)
	}

	return entities, nil
}
