// internal/pipeline/gateway.go
package pipeline

import (
	"context"
	"strings"

	"salesforce-query-workers/internal/common/logger"
)

// Gateway is the language model completion service: one prompt in, plain
// text out. Implementations own their timeouts.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type GatewayFunc func(ctx context.Context, prompt string) (string, error)

func (f GatewayFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ask sends prompt and returns the trimmed reply. Gateway failures are
// logged and reported as an empty reply.
func ask(ctx context.Context, gw Gateway, log logger.Logger, stage, prompt string) string {
	reply, err := gw.Complete(ctx, prompt)
	if err != nil {
		log.Warn("Gateway call failed", map[string]interface{}{
			"stage": stage,
			"error": err.Error(),
		})
		return ""
	}
	return strings.TrimSpace(reply)
}
