// internal/pipeline/synthesizer.go
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/common/metrics"
	"salesforce-query-workers/internal/models"
)

// Synthesizer asks the gateway for one SOQL statement over a resolved entity.
type Synthesizer struct {
	gateway Gateway
	log     logger.Logger
	ownerID string
}

func NewSynthesizer(gateway Gateway, log logger.Logger) *Synthesizer {
	return &Synthesizer{gateway: gateway, log: log}
}

// WithOwner returns a copy that offers ownerID as the literal owner
// identifier for "my records" requests. A value that is not a Salesforce id
// is logged and ignored.
func (s *Synthesizer) WithOwner(ownerID string) *Synthesizer {
	cp := *s
	cp.ownerID = ""
	ownerID = strings.TrimSpace(ownerID)
	switch {
	case ownerID == "":
	case models.IsSalesforceID(ownerID):
		cp.ownerID = ownerID
	default:
		s.log.Warn("Ignoring malformed owner id", map[string]interface{}{"ownerId": ownerID})
	}
	return &cp
}

// Synthesize returns the generated query, or nil when the gateway produced
// nothing usable. A nil fields slice means no metadata was available.
func (s *Synthesizer) Synthesize(ctx context.Context, entity string, fields []models.FieldDescriptor, request string) *string {
	prompt := soqlPrompt(entity, fieldMetadataBlock(fields), request, s.ownerID)

	reply := stripCodeFences(ask(ctx, s.gateway, s.log, "synthesize", prompt))
	if reply == "" {
		return nil
	}

	soql, result := guardOwnerPlaceholders(reply, s.ownerID)
	metrics.PlaceholderRewrites.WithLabelValues(string(result)).Inc()
	switch result {
	case guardRejected:
		s.log.Warn("Discarding query with unresolved owner placeholder", map[string]interface{}{
			"entity": entity,
			"soql":   reply,
		})
		return nil
	case guardRewritten:
		s.log.Info("Removed owner placeholder predicate", map[string]interface{}{
			"entity":   entity,
			"original": reply,
			"soql":     soql,
		})
	}
	return &soql
}

func soqlPrompt(entity, fieldsMetadata, request, ownerID string) string {
	var b strings.Builder
	b.WriteString("You are a helpful bot that generates valid SOQL queries using Salesforce object metadata.\n\n")
	b.WriteString("Below are some examples of valid SOQL:\n\n")
	b.WriteString("1. Basic query:\n   SELECT Id, Email, Account.Name FROM Contact WHERE LastName = 'Jones'\n\n")
	b.WriteString("2. Set membership:\n   SELECT Id, Email FROM Contact WHERE LastName IN ('Smith', 'Jones')\n\n")
	b.WriteString("3. Substring match:\n   SELECT Id, Email FROM Contact WHERE Name LIKE 'Jones%'\n\n")
	b.WriteString("4. Unquoted literal:\n   SELECT Id, Name FROM Opportunity WHERE Amount < 500\n\n")
	b.WriteString("Now, given the following inputs:\n")
	fmt.Fprintf(&b, "- Salesforce object API name: %s\n", entity)
	fmt.Fprintf(&b, "- Field metadata for this object (one JSON object per field):\n%s\n", fieldsMetadata)
	fmt.Fprintf(&b, "- User query: %q\n", request)
	if ownerID != "" {
		fmt.Fprintf(&b, "- Current user ID: %s\n", ownerID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Your task is to generate a complete SOQL query that selects all fields from the %s object and "+
		"incorporates filter conditions derived from the user query, using only field names present in the metadata above.\n\n", entity)
	b.WriteString("IMPORTANT:\n")
	b.WriteString("- Examine the user query to determine if it is meant to return records specific to a user by looking for terms such as " +
		"'my', 'mine', 'owned by', or explicit names.\n")
	if ownerID != "" {
		fmt.Fprintf(&b, "- If the query implies records owned by the current user, filter with OwnerId = '%s'.\n", ownerID)
	} else {
		b.WriteString("- If the query implies user-specific filtering (e.g. 'show me my cases' or 'John's cases'), do not output any " +
			"OwnerId filter if no literal user ID is provided. Instead, simply omit the OwnerId condition from the query.\n")
	}
	b.WriteString("  Do not output any placeholder such as 'USER_ID' or ':user_id'.\n")
	b.WriteString("- If the query is general and not user-specific, do not include an OwnerId filter.\n\n")
	b.WriteString("Return ONLY the raw SOQL query as plain text without any formatting, code fences, or markdown.")
	return b.String()
}
