package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"salesforce-query-workers/internal/models"
)

type gatewayReply struct {
	text string
	err  error
}

// scriptedGateway answers calls in order and records every prompt.
type scriptedGateway struct {
	mu      sync.Mutex
	replies []gatewayReply
	prompts []string
}

func newGateway(replies ...gatewayReply) *scriptedGateway {
	return &scriptedGateway{replies: replies}
}

func text(s string) gatewayReply { return gatewayReply{text: s} }

func failure(msg string) gatewayReply { return gatewayReply{err: errors.New(msg)} }

func (g *scriptedGateway) Complete(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if len(g.replies) == 0 {
		return "", errors.New("unexpected gateway call")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r.text, r.err
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakeSession struct {
	entities    []models.EntityDescriptor
	listErr     error
	fields      map[string][]models.RawFieldDescriptor
	describeErr error
	result      *models.QueryResult
	queryErr    error
	panicOnRun  bool

	queries   []string
	described []string
}

func (s *fakeSession) ListDescribableEntities(context.Context) ([]models.EntityDescriptor, error) {
	return s.entities, s.listErr
}

func (s *fakeSession) Describe(_ context.Context, apiName string) ([]models.RawFieldDescriptor, error) {
	s.described = append(s.described, apiName)
	if s.describeErr != nil {
		return nil, s.describeErr
	}
	if f, ok := s.fields[apiName]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownEntity, apiName)
}

func (s *fakeSession) RunQuery(_ context.Context, soql string) (*models.QueryResult, error) {
	s.queries = append(s.queries, soql)
	if s.panicOnRun {
		panic("driver exploded")
	}
	return s.result, s.queryErr
}

func entity(name string) models.EntityDescriptor {
	return models.EntityDescriptor{Name: name, Queryable: true, Layoutable: true}
}

func caseFields() []models.RawFieldDescriptor {
	return []models.RawFieldDescriptor{
		{"name": "Id", "label": "Case ID", "type": "id", "nillable": false, "length": float64(18)},
		{"name": "Subject", "label": "Subject", "type": "string", "nillable": true, "length": float64(255)},
		{
			"name": "Status", "label": "Status", "type": "picklist",
			"picklistValues": []interface{}{
				map[string]interface{}{"value": "New", "active": true},
				map[string]interface{}{"value": "Working", "active": true},
				map[string]interface{}{"value": "Closed", "active": true},
			},
		},
		{"name": "OwnerId", "label": "Owner ID", "type": "reference", "referenceTo": []interface{}{"Group", "User"}},
	}
}

func threeCases() *models.QueryResult {
	return &models.QueryResult{
		TotalSize: 3,
		Done:      true,
		Records: []map[string]interface{}{
			{"Id": "5001", "Subject": "Login issue", "Status": "New"},
			{"Id": "5002", "Subject": "Billing question", "Status": "Working"},
			{"Id": "5003", "Subject": "Broken export", "Status": "New"},
		},
	}
}
