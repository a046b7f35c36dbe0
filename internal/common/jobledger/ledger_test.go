package jobledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "salesforce-query-workers/internal/common/errors"
)

func TestRedisLedger_StoreAndLookup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ledger := NewRedisLedger(client, "crm-query:job:", time.Hour)
	ctx := context.Background()

	entry, err := ledger.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, entry)

	require.NoError(t, ledger.Store(ctx, Entry{
		JobKey:    42,
		RunID:     "run-1",
		Outcome:   "SUMMARY",
		Variables: map[string]interface{}{"querySummary": "3 cases"},
	}))
	assert.True(t, mr.Exists("crm-query:job:42"))
	assert.Equal(t, time.Hour, mr.TTL("crm-query:job:42"))

	entry, err = ledger.Lookup(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "run-1", entry.RunID)
	assert.Equal(t, "3 cases", entry.Variables["querySummary"])
	assert.False(t, entry.CompletedAt.IsZero())

	mr.FastForward(2 * time.Hour)
	entry, err = ledger.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRedisLedger_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("p:7", "{not json"))
	_, err := NewRedisLedger(client, "p:", time.Minute).Lookup(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeJobLedgerFailed, stderrors.AsStandardError(err).Code)
}

func TestRedisLedger_RedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	ledger := NewRedisLedger(client, "p:", time.Minute)

	mock.ExpectGet("p:1").SetErr(errors.New("connection refused"))
	_, err := ledger.Lookup(context.Background(), 1)
	require.Error(t, err)
	stdErr := stderrors.AsStandardError(err)
	assert.Equal(t, stderrors.ErrCodeJobLedgerFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	mock.Regexp().ExpectSet("p:2", `.*`, time.Minute).SetErr(errors.New("READONLY"))
	err = ledger.Store(context.Background(), Entry{JobKey: 2})
	require.Error(t, err)
	assert.Contains(t, stderrors.AsStandardError(err).Details, "READONLY")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNopLedger(t *testing.T) {
	var l Ledger = NopLedger{}
	entry, err := l.Lookup(context.Background(), 1)
	assert.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, l.Store(context.Background(), Entry{JobKey: 1}))
}
