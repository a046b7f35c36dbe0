// internal/pipeline/summarizer.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/models"
)

type Summarizer struct {
	gateway Gateway
	log     logger.Logger
}

func NewSummarizer(gateway Gateway, log logger.Logger) *Summarizer {
	return &Summarizer{gateway: gateway, log: log}
}

// Summarize returns a plain-language digest of result, or nil if the
// gateway returned nothing.
func (s *Summarizer) Summarize(ctx context.Context, result *models.QueryResult) *string {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", result))
	}

	reply := ask(ctx, s.gateway, s.log, "summarize", summaryPrompt(string(raw)))
	if reply == "" {
		return nil
	}
	return &reply
}

func summaryPrompt(response string) string {
	return "You are a helpful assistant who summarizes Salesforce query results for end users.\n\n" +
		"Below is the raw response from a Salesforce query:\n\n" +
		response + "\n\n" +
		"Please provide a clear and concise summary of the results. Your summary should include:\n" +
		"- The total number of records returned (if available).\n" +
		"- Key highlights from the data (e.g., important field values from the first record).\n" +
		"Return only the summary text in plain language without any additional commentary or formatting."
}
