// internal/pipeline/wiring.go
package pipeline

import (
	"context"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/genai"
	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/common/salesforce"
)

// SalesforceSessions logs in once per run.
func SalesforceSessions(auth *salesforce.Authenticator) SessionProvider {
	return SessionProviderFunc(func(ctx context.Context) (Session, error) {
		s, err := auth.Login(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// FromConfig builds an Orchestrator backed by the Salesforce REST API and
// the configured chat completion endpoint.
func FromConfig(cfg *config.Config, log logger.Logger) *Orchestrator {
	auth := salesforce.NewAuthenticator(salesforce.CredentialsFromConfig(cfg.Salesforce), nil)
	gateway := genai.NewClient(cfg.APIs.GenAI)
	return NewOrchestrator(SalesforceSessions(auth), gateway, log, Options{OwnerID: cfg.Salesforce.OwnerID})
}
