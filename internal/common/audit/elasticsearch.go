// internal/common/audit/elasticsearch.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/database"
	"salesforce-query-workers/internal/common/errors"
)

type ElasticsearchRecorder struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchRecorder(client *database.ElasticsearchClient, index string) *ElasticsearchRecorder {
	return &ElasticsearchRecorder{client: client, index: index}
}

// Record indexes rec using its run id as document id.
func (r *ElasticsearchRecorder) Record(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return errors.NewAuditWriteFailedError(config.AuditBackendElasticsearch, err)
	}

	es := r.client.Client
	res, err := es.Index(
		r.index,
		bytes.NewReader(body),
		es.Index.WithDocumentID(rec.RunID),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.NewAuditWriteFailedError(config.AuditBackendElasticsearch, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return errors.NewAuditWriteFailedError(config.AuditBackendElasticsearch,
			fmt.Errorf("index %s: %s: %s", r.index, res.Status(), string(msg)))
	}
	return nil
}

func (r *ElasticsearchRecorder) Backend() string { return config.AuditBackendElasticsearch }

func (r *ElasticsearchRecorder) Close() error {
	return r.client.Close()
}
