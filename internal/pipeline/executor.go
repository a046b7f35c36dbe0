// internal/pipeline/executor.go
package pipeline

import (
	"context"
	"errors"

	"salesforce-query-workers/internal/models"
)

var errEmptyResponse = errors.New("empty response")

// Fault describes a query the remote store rejected or failed to answer.
type Fault struct {
	Query string
	Err   error
}

func (f *Fault) Error() string {
	return f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Executor runs a query once. It never retries or edits the query text.
type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, session Session, soql string) (*models.QueryResult, *Fault) {
	result, err := session.RunQuery(ctx, soql)
	if err != nil {
		return nil, &Fault{Query: soql, Err: err}
	}
	if result == nil {
		return nil, &Fault{Query: soql, Err: errEmptyResponse}
	}
	return result, nil
}
