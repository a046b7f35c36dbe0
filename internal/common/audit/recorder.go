// internal/common/audit/recorder.go
package audit

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/database"
	"salesforce-query-workers/internal/pipeline"
)

// Record is one finished pipeline run as stored by a Recorder.
type Record struct {
	RunID       string    `json:"runId"`
	JobKey      int64     `json:"jobKey,omitempty"`
	Request     string    `json:"request"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Outcome     string    `json:"outcome"`
	Entity      string    `json:"entity,omitempty"`
	SOQL        string    `json:"soql,omitempty"`
	Diagnostic  string    `json:"diagnostic,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	RecordCount int       `json:"recordCount"`
	Attempts    int       `json:"attempts"`
	DurationMs  int64     `json:"durationMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewRecord(req pipeline.Request, jobKey int64, out pipeline.Outcome) Record {
	rec := Record{
		RunID:       out.RunID,
		JobKey:      jobKey,
		Request:     req.Text,
		OwnerID:     req.OwnerID,
		Outcome:     string(out.Kind),
		Entity:      out.Entity,
		SOQL:        out.SOQL,
		Diagnostic:  out.Diagnostic,
		RecordCount: out.RecordCount,
		Attempts:    len(out.Attempts),
		DurationMs:  out.Duration.Milliseconds(),
		CreatedAt:   time.Now().UTC(),
	}
	if out.Summary != nil {
		rec.Summary = *out.Summary
	}
	return rec
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	Backend() string
	Close() error
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Record) error { return nil }
func (NopRecorder) Backend() string                      { return config.AuditBackendNone }
func (NopRecorder) Close() error                         { return nil }

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewRecorder builds the recorder selected by cfg.Audit.Backend.
func NewRecorder(ctx context.Context, cfg *config.Config) (Recorder, error) {
	switch cfg.Audit.Backend {
	case "", config.AuditBackendNone:
		return NopRecorder{}, nil
	case config.AuditBackendPostgres:
		client, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		rec, err := NewPostgresRecorder(client, cfg.Audit.Table)
		if err != nil {
			client.Close()
			return nil, err
		}
		if err := rec.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return rec, nil
	case config.AuditBackendElasticsearch:
		client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		return NewElasticsearchRecorder(client, cfg.Audit.Index), nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
	}
}
