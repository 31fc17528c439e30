package pg

import (
	"context"
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
)

type processRepository struct {
	tx    pgx.Tx
	txCtx context.Context
}

func (r processRepository) InsertBatch(entities []*internal.ProcessEntity) error {
	if len(entities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, entity := range entities {
		batch.Queue(`
INSERT INTO process (
	id,

	bpmn_process_id,
	bpmn_xml,
	bpmn_xml_md5,
	created_at,
	created_by,
	version
) VALUES (
	$1,

	$2,
	$3,
	$4,
	$5,
	$6,
	$7
) ON CONFLICT (bpmn_process_id, version) DO NOTHING RETURNING id
`,
			entity.Id,

			entity.BpmnProcessId,
			entity.BpmnXml,
			entity.BpmnXmlMd5,
			entity.CreatedAt,
			entity.CreatedBy,
			entity.Version,
		)
	}

	batchResults := r.tx.SendBatch(r.txCtx, batch)
	defer batchResults.Close()

	for _, entity := range entities {
		var id string
		if err := batchResults.QueryRow().Scan(&id); err != nil {
			if err == pgx.ErrNoRows { // indicates a conflict
				return err
			}
			return fmt.Errorf("failed to insert process %s:%s: %w", entity.BpmnProcessId, entity.Version, err)
		}
	}

	return nil
}

func (r processRepository) Select(id string) (*internal.ProcessEntity, error) {
	row := r.tx.QueryRow(r.txCtx, `
SELECT
	id,

	bpmn_process_id,
	bpmn_xml,
	bpmn_xml_md5,
	created_at,
	created_by,
	version
FROM
	process
WHERE
	id = $1
`, id)

	return scanProcess(row)
}

func (r processRepository) SelectByBpmnProcessIdAndVersion(bpmnProcessId string, version string) (*internal.ProcessEntity, error) {
	row := r.tx.QueryRow(r.txCtx, `
SELECT
	id,

	bpmn_process_id,
	bpmn_xml,
	bpmn_xml_md5,
	created_at,
	created_by,
	version
FROM
	process
WHERE
	bpmn_process_id = $1 AND
	version = $2
`, bpmnProcessId, version)

	return scanProcess(row)
}

func scanProcess(row pgx.Row) (*internal.ProcessEntity, error) {
	var entity internal.ProcessEntity
	if err := row.Scan(
		&entity.Id,

		&entity.BpmnProcessId,
		&entity.BpmnXml,
		&entity.BpmnXmlMd5,
		&entity.CreatedAt,
		&entity.CreatedBy,
		&entity.Version,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to select process: %w", err)
	}

	return &entity, nil
}
