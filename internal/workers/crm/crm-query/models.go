// internal/workers/crm/crm-query/models.go
package crmquery

import (
	"context"

	"salesforce-query-workers/internal/pipeline"
)

// OutcomeDisabled is reported when the worker is switched off by config.
const OutcomeDisabled = "DISABLED"

type Input struct {
	UserRequest string `json:"userRequest"`
	OwnerID     string `json:"ownerId,omitempty"`
	RequestID   string `json:"requestId,omitempty"`
}

type Output struct {
	Outcome     string  `json:"queryOutcome"`
	Summary     *string `json:"querySummary"`
	Message     string  `json:"queryMessage"`
	Entity      string  `json:"queryEntity,omitempty"`
	SOQL        string  `json:"querySoql,omitempty"`
	RunID       string  `json:"queryRunId"`
	RecordCount int     `json:"queryRecordCount"`
}

// ToVariables returns the process variables set on job completion.
func (o *Output) ToVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"queryOutcome":     o.Outcome,
		"querySummary":     nil,
		"queryMessage":     o.Message,
		"queryRunId":       o.RunID,
		"queryRecordCount": o.RecordCount,
	}
	if o.Summary != nil {
		vars["querySummary"] = *o.Summary
	}
	if o.Entity != "" {
		vars["queryEntity"] = o.Entity
	}
	if o.SOQL != "" {
		vars["querySoql"] = o.SOQL
	}
	return vars
}

func outputFromOutcome(out pipeline.Outcome) *Output {
	return &Output{
		Outcome:     string(out.Kind),
		Summary:     out.Summary,
		Message:     out.Message(),
		Entity:      out.Entity,
		SOQL:        out.SOQL,
		RunID:       out.RunID,
		RecordCount: out.RecordCount,
	}
}

// Runner executes one pipeline pass. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Outcome
}
