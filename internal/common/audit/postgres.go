// internal/common/audit/postgres.go
package audit

import (
	"context"
	"fmt"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/database"
	"salesforce-query-workers/internal/common/errors"
)

type PostgresRecorder struct {
	client *database.PostgresClient
	table  string
}

func NewPostgresRecorder(client *database.PostgresClient, table string) (*PostgresRecorder, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	return &PostgresRecorder{client: client, table: table}, nil
}

func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id       TEXT PRIMARY KEY,
		job_key      BIGINT,
		request      TEXT NOT NULL,
		owner_id     TEXT,
		outcome      TEXT NOT NULL,
		entity       TEXT,
		soql         TEXT,
		diagnostic   TEXT,
		summary      TEXT,
		record_count INTEGER NOT NULL DEFAULT 0,
		attempts     INTEGER NOT NULL DEFAULT 0,
		duration_ms  BIGINT NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL
	)`, r.table)

	if _, err := r.client.Exec(ctx, query); err != nil {
		return errors.NewAuditWriteFailedError(config.AuditBackendPostgres, err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(run_id, job_key, request, owner_id, outcome, entity, soql, diagnostic, summary, record_count, attempts, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO NOTHING`, r.table)

	_, err := r.client.Exec(ctx, query,
		rec.RunID, rec.JobKey, rec.Request, rec.OwnerID, rec.Outcome, rec.Entity,
		rec.SOQL, rec.Diagnostic, rec.Summary, rec.RecordCount, rec.Attempts, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return errors.NewAuditWriteFailedError(config.AuditBackendPostgres, err)
	}
	return nil
}

func (r *PostgresRecorder) Backend() string { return config.AuditBackendPostgres }

func (r *PostgresRecorder) Close() error {
	return r.client.Close()
}
