// internal/pipeline/outcome.go
package pipeline

import (
	"time"

	"salesforce-query-workers/internal/models"
)

type OutcomeKind string

const (
	OutcomeSummary          OutcomeKind = "SUMMARY"
	OutcomeNoSession        OutcomeKind = "NO_SESSION"
	OutcomeNoObjects        OutcomeKind = "NO_OBJECTS"
	OutcomeUnresolvedEntity OutcomeKind = "UNRESOLVED_ENTITY"
	OutcomeNoQueryGenerated OutcomeKind = "NO_QUERY_GENERATED"
	OutcomeExecutionFailed  OutcomeKind = "EXECUTION_FAILED"
)

// OutcomeKinds lists every kind a run can end in.
var OutcomeKinds = []OutcomeKind{
	OutcomeSummary,
	OutcomeNoSession,
	OutcomeNoObjects,
	OutcomeUnresolvedEntity,
	OutcomeNoQueryGenerated,
	OutcomeExecutionFailed,
}

// Outcome is the single result of one pipeline run. Only Kind is always set;
// the other members carry whatever the run got to before it stopped.
type Outcome struct {
	Kind        OutcomeKind                `json:"kind"`
	Summary     *string                    `json:"summary"`
	Entity      string                     `json:"entity,omitempty"`
	SOQL        string                     `json:"soql,omitempty"`
	Diagnostic  string                     `json:"diagnostic,omitempty"`
	Attempts    []models.ResolutionAttempt `json:"attempts,omitempty"`
	RecordCount int                        `json:"recordCount"`
	RunID       string                     `json:"runId"`
	Duration    time.Duration              `json:"duration"`
}

// Message is the sentence shown to the caller for this outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeSummary:
		if o.Summary == nil {
			return ""
		}
		return *o.Summary
	case OutcomeNoSession, OutcomeNoObjects:
		return "No Salesforce session or objects found."
	case OutcomeUnresolvedEntity:
		return "Unable to determine a valid Salesforce object from the query."
	case OutcomeNoQueryGenerated:
		return "No SOQL query generated."
	case OutcomeExecutionFailed:
		return "Error executing SOQL query: " + o.Diagnostic
	default:
		return ""
	}
}

func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSummary
}
