package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforce-query-workers/internal/common/logger"
)

func TestResolver(t *testing.T) {
	candidates := []string{"Case", "Contact"}

	tests := []struct {
		name     string
		replies  []gatewayReply
		resolved bool
		entity   string
		calls    int
		validity []bool
	}{
		{
			name:     "first attempt valid",
			replies:  []gatewayReply{text("Case")},
			resolved: true,
			entity:   "Case",
			calls:    1,
			validity: []bool{true},
		},
		{
			name:     "clarification resolves",
			replies:  []gatewayReply{text("Opportunity"), text("Case")},
			resolved: true,
			entity:   "Case",
			calls:    2,
			validity: []bool{false, true},
		},
		{
			name:     "both attempts invalid",
			replies:  []gatewayReply{text("Opportunity"), text("Lead")},
			resolved: false,
			calls:    2,
			validity: []bool{false, false},
		},
		{
			name:     "surrounding whitespace is trimmed",
			replies:  []gatewayReply{text("  Contact\n")},
			resolved: true,
			entity:   "Contact",
			calls:    1,
			validity: []bool{true},
		},
		{
			name:     "no fuzzy or substring matching",
			replies:  []gatewayReply{text("Cases"), text("The object is Case.")},
			resolved: false,
			calls:    2,
			validity: []bool{false, false},
		},
		{
			name:     "case sensitive membership",
			replies:  []gatewayReply{text("case"), text("CASE")},
			resolved: false,
			calls:    2,
			validity: []bool{false, false},
		},
		{
			name:     "gateway failure consumes the attempt",
			replies:  []gatewayReply{failure("timeout"), text("Contact")},
			resolved: true,
			entity:   "Contact",
			calls:    2,
			validity: []bool{false, true},
		},
		{
			name:     "empty replies at both steps",
			replies:  []gatewayReply{text(""), failure("500")},
			resolved: false,
			calls:    2,
			validity: []bool{false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGateway(tt.replies...)
			res := NewResolver(gw, logger.NewTestLogger(t)).Resolve(context.Background(), "show me open cases", candidates)

			assert.Equal(t, tt.resolved, res.Resolved)
			assert.Equal(t, tt.entity, res.Entity)
			assert.Equal(t, tt.calls, gw.calls())
			require.Len(t, res.Attempts, len(tt.validity))
			for i, valid := range tt.validity {
				assert.Equal(t, i+1, res.Attempts[i].AttemptNumber)
				assert.Equal(t, valid, res.Attempts[i].IsValid)
			}
			if res.Resolved {
				assert.Contains(t, candidates, res.Entity)
			}
		})
	}
}

func TestResolver_Prompts(t *testing.T) {
	gw := newGateway(text("Nope"), text("Nope"))
	NewResolver(gw, logger.NewNoOpLogger()).Resolve(context.Background(), "my open cases", []string{"Case", "Contact"})

	require.Len(t, gw.prompts, 2)
	assert.Contains(t, gw.prompts[0], "identifies Salesforce objects")
	assert.Contains(t, gw.prompts[0], "Case, Contact")
	assert.Contains(t, gw.prompts[0], `"my open cases"`)
	assert.Contains(t, gw.prompts[1], "did not clearly indicate")
	assert.Contains(t, gw.prompts[1], "Case, Contact")
	assert.Contains(t, gw.prompts[1], "Return ONLY the object name")
}

func TestResolver_EmptyCandidateAttempt(t *testing.T) {
	gw := newGateway(failure("down"), failure("down"))
	res := NewResolver(gw, logger.NewNoOpLogger()).Resolve(context.Background(), "anything", []string{"Case"})

	assert.False(t, res.Resolved)
	require.Len(t, res.Attempts, 2)
	assert.Nil(t, res.Attempts[0].CandidateName)
	assert.LessOrEqual(t, gw.calls(), maxResolutionAttempts)
}
