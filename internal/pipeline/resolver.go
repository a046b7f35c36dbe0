// internal/pipeline/resolver.go
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/models"
)

const maxResolutionAttempts = 2

type resolverState int

const (
	stateIdentify resolverState = iota
	stateClarify
	stateResolved
	stateUnresolved
)

func (s resolverState) String() string {
	switch s {
	case stateIdentify:
		return "identify"
	case stateClarify:
		return "clarify"
	case stateResolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Resolution is the terminal state of one Resolve call.
type Resolution struct {
	Entity   string
	Resolved bool
	Attempts []models.ResolutionAttempt
}

// Resolver maps a free-text request onto exactly one candidate entity name.
type Resolver struct {
	gateway Gateway
	log     logger.Logger
}

func NewResolver(gateway Gateway, log logger.Logger) *Resolver {
	return &Resolver{gateway: gateway, log: log}
}

// Resolve runs identify, then clarify if needed. A candidate is accepted
// only by exact membership in candidates.
func (r *Resolver) Resolve(ctx context.Context, request string, candidates []string) Resolution {
	allowed := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		allowed[c] = struct{}{}
	}
	list := strings.Join(candidates, ", ")

	var res Resolution
	state := stateIdentify
	for state == stateIdentify || state == stateClarify {
		if len(res.Attempts) >= maxResolutionAttempts {
			state = stateUnresolved
			break
		}

		var prompt string
		if state == stateIdentify {
			prompt = identifyPrompt(request, list)
		} else {
			prompt = clarifyPrompt(request, list)
		}

		reply := ask(ctx, r.gateway, r.log, state.String(), prompt)
		attempt := models.ResolutionAttempt{AttemptNumber: len(res.Attempts) + 1}
		if reply != "" {
			attempt.CandidateName = &reply
			_, attempt.IsValid = allowed[reply]
		}
		res.Attempts = append(res.Attempts, attempt)

		r.log.Debug("Entity resolution attempt", map[string]interface{}{
			"state":     state.String(),
			"attempt":   attempt.AttemptNumber,
			"candidate": reply,
			"valid":     attempt.IsValid,
		})

		switch {
		case attempt.IsValid:
			res.Entity = reply
			state = stateResolved
		case state == stateIdentify:
			state = stateClarify
		default:
			state = stateUnresolved
		}
	}

	res.Resolved = state == stateResolved
	return res
}

func identifyPrompt(request, candidates string) string {
	return fmt.Sprintf(
		"You are a helpful bot that identifies Salesforce objects based on user queries.\n"+
			"You have the following Salesforce objects to choose from: %s.\n"+
			"Given the user query %q,\n"+
			"please return ONLY the name of the one Salesforce object that best matches this request.\n"+
			"Do not include any additional text or explanation.",
		candidates, request,
	)
}

func clarifyPrompt(request, candidates string) string {
	return fmt.Sprintf(
		"The initial query %q did not clearly indicate which Salesforce object to use.\n"+
			"Please clarify by selecting one of these objects: %s.\n"+
			"Return ONLY the object name and nothing else.",
		request, candidates,
	)
}
