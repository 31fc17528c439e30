package pg

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/gclaussn/go-bpmn-core/engine/internal"
	"github.com/jackc/pgx/v5"
)

// lockSchemaMigration serializes concurrent migrations of engines, sharing a database.
const lockSchemaMigration = "schema-migration"

var Tables = []string{
	"event_subscription",
	"execution",
	"process",
	"variable",
}

//go:embed ddl migration
var resources embed.FS

// migrateDatabase creates all tables and indices, if the database schema has no version yet.
func migrateDatabase(ctx context.Context, store *pgStore, lockManager *lockManager, options Options) error {
	b, err := resources.ReadFile("migration/version.txt")
	if err != nil {
		return fmt.Errorf("failed to read resource migration/version.txt: %w", err)
	}

	versions := make([]string, 0, 1)

	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		if version := strings.TrimSpace(scanner.Text()); version != "" {
			versions = append(versions, version)
		}
	}

	if len(versions) == 0 {
		return fmt.Errorf("no schema version defined")
	}

	lock, err := internal.PollLock(ctx, lockManager, lockSchemaMigration, options.Common.LockPollInterval, options.Common.LockWaitTimeout)
	if err != nil {
		return err
	}

	defer lock.Release()

	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	schemaVersion, err := selectSchemaVersion(ctx, tx, options.databaseSchema)
	if err != nil {
		return err
	}

	if schemaVersion != "" {
		return nil
	}

	ddl, err := resources.ReadDir("ddl")
	if err != nil {
		return fmt.Errorf("failed to list resources under ddl: %w", err)
	}

	for _, entry := range ddl {
		if entry.IsDir() {
			continue
		}

		name := "ddl/" + entry.Name()
		b, err := resources.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read resource %s: %w", name, err)
		}

		if _, err := tx.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", name, err)
		}
	}

	idx, err := resources.ReadDir("ddl/idx")
	if err != nil {
		return fmt.Errorf("failed to list resources under ddl/idx: %w", err)
	}

	for _, entry := range idx {
		name := "ddl/idx/" + entry.Name()
		b, err := resources.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read resource %s: %w", name, err)
		}

		scanner := bufio.NewScanner(bytes.NewReader(b))
		for scanner.Scan() {
			createIndex := strings.TrimSpace(scanner.Text())
			if createIndex == "" {
				continue
			}
			if _, err := tx.Exec(ctx, createIndex); err != nil {
				return fmt.Errorf("failed to execute %s: %w", name, err)
			}
		}
	}

	commentOnTable := fmt.Sprintf("COMMENT ON TABLE process IS %s", quoteString(versions[len(versions)-1]))
	if _, err := tx.Exec(ctx, commentOnTable); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return tx.Commit(ctx)
}

// selectSchemaVersion selects the schema version, which is stored as comment of the process table.
// If the table does not exist, an empty string is returned.
func selectSchemaVersion(ctx context.Context, tx pgx.Tx, databaseSchema string) (string, error) {
	row := tx.QueryRow(ctx, `
SELECT
	description
FROM
	pg_description
INNER JOIN
	pg_class
ON
	pg_description.objoid = pg_class.oid
INNER JOIN
	pg_namespace
ON
	pg_class.relnamespace = pg_namespace.oid
WHERE
	nspname = $1 AND
	relname = $2
`, databaseSchema, "process")

	var schemaVersion string
	if err := row.Scan(&schemaVersion); err != nil {
		if err != pgx.ErrNoRows {
			return "", fmt.Errorf("failed to select schema version: %w", err)
		}
	}

	return schemaVersion, nil
}

func quoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
