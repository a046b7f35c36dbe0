// internal/pipeline/session.go
package pipeline

import (
	"context"

	"salesforce-query-workers/internal/models"
)

// Session is an already authenticated handle on the remote store. The
// pipeline only reads through it and never refreshes its credentials.
type Session interface {
	ListDescribableEntities(ctx context.Context) ([]models.EntityDescriptor, error)
	Describe(ctx context.Context, apiName string) ([]models.RawFieldDescriptor, error)
	RunQuery(ctx context.Context, soql string) (*models.QueryResult, error)
}

// SessionProvider hands the pipeline a session for one run. A nil session
// or a non-nil error both mean no session is available.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

type SessionProviderFunc func(ctx context.Context) (Session, error)

func (f SessionProviderFunc) Session(ctx context.Context) (Session, error) {
	return f(ctx)
}

// StaticSession always returns the same session.
func StaticSession(s Session) SessionProvider {
	return SessionProviderFunc(func(context.Context) (Session, error) {
		return s, nil
	})
}
