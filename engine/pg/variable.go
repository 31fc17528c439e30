package pg

import (
	"context"
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
)

type variableRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r variableRepository) InsertBatch(entities []*internal.VariableEntity) error {
	if len(entities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, entity := range entities {
		batch.Queue(`
INSERT INTO variable (
	id,
	revision,

	execution_id,
	process_instance_id,

	name,
	value
) VALUES (
	$1,
	$2,

	$3,
	$4,

	$5,
	$6
)
`,
			entity.Id,
			entity.Revision,

			entity.ExecutionId,
			entity.ProcessInstanceId,

			entity.Name,
			entity.Value,
		)
	}

	batchResults := r.tx.SendBatch(r.txCtx, batch)
	defer batchResults.Close()

	for _, entity := range entities {
		if _, err := batchResults.Exec(); err != nil {
			return fmt.Errorf("failed to insert variable %s: %w", entity.Name, err)
		}
	}

	return nil
}

func (r variableRepository) SelectByProcessInstanceId(processInstanceId string) ([]*internal.VariableEntity, error) {
	rows, err := r.tx.Query(r.txCtx, `
SELECT
	id,
	revision,

	execution_id,
	process_instance_id,

	name,
	value
FROM
	variable
WHERE
	process_instance_id = $1
ORDER BY
	id
`, processInstanceId)
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}

	defer rows.Close()

	var entities []*internal.VariableEntity
	for rows.Next() {
		var entity internal.VariableEntity

		if err := rows.Scan(
			&entity.Id,
			&entity.Revision,

			&entity.ExecutionId,
			&entity.ProcessInstanceId,

			&entity.Name,
			&entity.Value,
		); err != nil {
			return nil, fmt.Errorf("failed to scan variable row: %w", err)
		}

		entities = append(entities, &entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read variable rows: %w", err)
	}

	return entities, nil
}

func (r variableRepository) Update(entity *internal.VariableEntity) (int64, error) {
	tag, err := r.tx.Exec(r.txCtx, `
UPDATE
	variable
SET
	revision = revision + 1,
	value = $3
WHERE
	id = $1 AND
	revision = $2
`, entity.Id, entity.Revision, entity.Value)
	if err != nil {
		return 0, fmt.Errorf("failed to update variable %s: %w", entity.Name, err)
	}

	return tag.RowsAffected(), nil
}

func (r variableRepository) Delete(entity *internal.VariableEntity) (int64, error) {
	tag, err := r.tx.Exec(r.txCtx, "DELETE FROM variable WHERE id = $1 AND revision = $2", entity.Id, entity.Revision)
	if err != nil {
		return 0, fmt.Errorf("failed to delete variable %s: %w", entity.Name, err)
	}

	return tag.RowsAffected(), nil
}
