// internal/common/jobledger/ledger.go
package jobledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "salesforce-query-workers/internal/common/errors"
)

// Entry is the stored result of a completed job. Zeebe may hand the same
// job out again after a timeout; the worker then completes it from the
// entry instead of running the pipeline twice.
type Entry struct {
	JobKey      int64                  `json:"jobKey"`
	RunID       string                 `json:"runId"`
	Outcome     string                 `json:"outcome"`
	Variables   map[string]interface{} `json:"variables"`
	CompletedAt time.Time              `json:"completedAt"`
}

type Ledger interface {
	Lookup(ctx context.Context, jobKey int64) (*Entry, error)
	Store(ctx context.Context, entry Entry) error
}

type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLedger(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) key(jobKey int64) string {
	return l.prefix + strconv.FormatInt(jobKey, 10)
}

// Lookup returns nil, nil when the job has no entry.
func (l *RedisLedger) Lookup(ctx context.Context, jobKey int64) (*Entry, error) {
	raw, err := l.client.Get(ctx, l.key(jobKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewJobLedgerFailedError(err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, stderrors.NewJobLedgerFailedError(fmt.Errorf("decode entry %s: %w", l.key(jobKey), err))
	}
	return &entry, nil
}

func (l *RedisLedger) Store(ctx context.Context, entry Entry) error {
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return stderrors.NewJobLedgerFailedError(err)
	}
	if err := l.client.Set(ctx, l.key(entry.JobKey), raw, l.ttl).Err(); err != nil {
		return stderrors.NewJobLedgerFailedError(err)
	}
	return nil
}

// NopLedger never remembers anything.
type NopLedger struct{}

func (NopLedger) Lookup(context.Context, int64) (*Entry, error) { return nil, nil }
func (NopLedger) Store(context.Context, Entry) error            { return nil }
