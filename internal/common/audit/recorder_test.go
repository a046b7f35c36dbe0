package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/database"
	stderrors "salesforce-query-workers/internal/common/errors"
	"salesforce-query-workers/internal/models"
	"salesforce-query-workers/internal/pipeline"
)

func sampleRecord() Record {
	summary := "3 open cases."
	candidate := "Case"
	return NewRecord(
		pipeline.Request{Text: "show me open cases", OwnerID: "005000000000001AAA"},
		2251799813685249,
		pipeline.Outcome{
			Kind:        pipeline.OutcomeSummary,
			Summary:     &summary,
			Entity:      "Case",
			SOQL:        "SELECT Id FROM Case WHERE IsClosed = false",
			RecordCount: 3,
			Attempts:    []models.ResolutionAttempt{{AttemptNumber: 1, CandidateName: &candidate, IsValid: true}},
			RunID:       "run-1",
			Duration:    1500 * time.Millisecond,
		},
	)
}

func TestNewRecord(t *testing.T) {
	rec := sampleRecord()
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "SUMMARY", rec.Outcome)
	assert.Equal(t, "3 open cases.", rec.Summary)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, int64(1500), rec.DurationMs)
	assert.False(t, rec.CreatedAt.IsZero())

	empty := NewRecord(pipeline.Request{Text: "x"}, 0, pipeline.Outcome{Kind: pipeline.OutcomeNoObjects})
	assert.Empty(t, empty.Summary)
}

func TestPostgresRecorder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rec, err := NewPostgresRecorder(database.NewPostgresFromDB(db), "crm_query_runs")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS crm_query_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, rec.EnsureSchema(context.Background()))

	r := sampleRecord()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crm_query_runs")).
		WithArgs(r.RunID, r.JobKey, r.Request, r.OwnerID, r.Outcome, r.Entity, r.SOQL, r.Diagnostic,
			r.Summary, r.RecordCount, r.Attempts, r.DurationMs, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, rec.Record(context.Background(), r))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO crm_query_runs")).
		WillReturnError(fmt.Errorf("connection refused"))
	err = rec.Record(context.Background(), r)
	require.Error(t, err)
	stdErr := stderrors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, stderrors.ErrCodeAuditWriteFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "connection refused")

	assert.Equal(t, config.AuditBackendPostgres, rec.Backend())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecorder_RejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresRecorder(database.NewPostgresFromDB(db), "runs; DROP TABLE users")
	assert.Error(t, err)
}

func newElasticServer(t *testing.T, handler http.HandlerFunc) *database.ElasticsearchClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)
	return client
}

func TestElasticsearchRecorder(t *testing.T) {
	var got map[string]interface{}
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/crm-query-runs/_doc/run-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_index":"crm-query-runs","_id":"run-1","result":"created"}`))
	})

	rec := NewElasticsearchRecorder(client, "crm-query-runs")
	require.NoError(t, rec.Record(context.Background(), sampleRecord()))
	assert.Equal(t, "SUMMARY", got["outcome"])
	assert.Equal(t, "Case", got["entity"])
	assert.Equal(t, config.AuditBackendElasticsearch, rec.Backend())
}

func TestElasticsearchRecorder_ErrorResponse(t *testing.T) {
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	err := NewElasticsearchRecorder(client, "crm-query-runs").Record(context.Background(), sampleRecord())
	require.Error(t, err)
	stdErr := stderrors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, stderrors.ErrCodeAuditWriteFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "mapper_parsing_exception")
}

func TestNewRecorder(t *testing.T) {
	cfg := &config.Config{}
	rec, err := NewRecorder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, config.AuditBackendNone, rec.Backend())
	assert.NoError(t, rec.Record(context.Background(), sampleRecord()))

	cfg.Audit.Backend = "mongo"
	_, err = NewRecorder(context.Background(), cfg)
	assert.Error(t, err)
}
