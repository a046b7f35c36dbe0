package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SALESFORCE_USERNAME", "SALESFORCE_PASSWORD", "SALESFORCE_SECURITY_TOKEN",
		"SALESFORCE_KEY", "SALESFORCE_SECRET", "SALESFORCE_OWNER_ID",
		"OPEN_AI_KEY", "GENAI_API_KEY", "DB_USER", "DB_PASSWORD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, `
salesforce:
  username: integration@example.com
  client_id: consumer-key
apis:
  genai:
    api_key: sk-test
workers:
  crm-query:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "59.0", cfg.Salesforce.APIVersion)
	assert.Equal(t, "gpt-4o", cfg.APIs.GenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.APIs.GenAI.BaseURL)
	assert.Equal(t, AuditBackendNone, cfg.Audit.Backend)
	assert.Equal(t, "crm-query:job:", cfg.Ledger.KeyPrefix)
	assert.Equal(t, ":8080", cfg.App.HTTPAddress)

	worker := GetWorkerConfig(cfg, "crm-query")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 120000, worker.Timeout)
}

func TestLoadFromFile_EnvironmentOverrides(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("SALESFORCE_USERNAME", "env-user@example.com")
	t.Setenv("SALESFORCE_KEY", "env-consumer-key")
	t.Setenv("SALESFORCE_SECRET", "env-secret")
	t.Setenv("OPEN_AI_KEY", "sk-env")
	t.Setenv("SF_TOKEN_FOR_TEST", "token-from-env")

	path := writeConfig(t, `
salesforce:
  security_token: ${SF_TOKEN_FOR_TEST}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "env-user@example.com", cfg.Salesforce.Username)
	assert.Equal(t, "env-consumer-key", cfg.Salesforce.ClientID)
	assert.Equal(t, "env-secret", cfg.Salesforce.ClientSecret)
	assert.Equal(t, "token-from-env", cfg.Salesforce.SecurityToken)
	assert.Equal(t, "sk-env", cfg.APIs.GenAI.APIKey)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name: "missing salesforce username",
			body: `
salesforce:
  client_id: key
apis:
  genai:
    api_key: sk
`,
			errMsg: "salesforce.username is required",
		},
		{
			name: "missing genai key",
			body: `
salesforce:
  username: u
  client_id: key
`,
			errMsg: "apis.genai.api_key is required",
		},
		{
			name: "unknown audit backend",
			body: `
salesforce:
  username: u
  client_id: key
apis:
  genai:
    api_key: sk
audit:
  backend: mongo
`,
			errMsg: `audit.backend "mongo" is not supported`,
		},
		{
			name: "postgres audit without host",
			body: `
salesforce:
  username: u
  client_id: key
apis:
  genai:
    api_key: sk
audit:
  backend: postgres
`,
			errMsg: "database.postgres.host is required",
		},
		{
			name: "ledger without redis",
			body: `
salesforce:
  username: u
  client_id: key
apis:
  genai:
    api_key: sk
ledger:
  enabled: true
`,
			errMsg: "database.redis.address is required",
		},
		{
			name: "malformed owner id",
			body: `
salesforce:
  username: u
  client_id: key
  owner_id: "x' OR Name != '"
apis:
  genai:
    api_key: sk
`,
			errMsg: "salesforce.owner_id must be a 15 or 18 character Salesforce id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv(t)
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFromFile_OwnerIDFromEnvironment(t *testing.T) {
	body := `
salesforce:
  username: u
  client_id: key
apis:
  genai:
    api_key: sk
`
	t.Run("valid id", func(t *testing.T) {
		clearCredentialEnv(t)
		t.Setenv("SALESFORCE_OWNER_ID", "005000000000001AAA")
		cfg, err := LoadFromFile(writeConfig(t, body))
		require.NoError(t, err)
		assert.Equal(t, "005000000000001AAA", cfg.Salesforce.OwnerID)
	})

	t.Run("placeholder rejected", func(t *testing.T) {
		clearCredentialEnv(t)
		t.Setenv("SALESFORCE_OWNER_ID", "YOUR_USER_ID")
		_, err := LoadFromFile(writeConfig(t, body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "salesforce.owner_id")
	})
}

func TestElasticsearchAddresses(t *testing.T) {
	assert.Equal(t, []string{"http://es:9200"}, ElasticsearchConfig{URL: "http://es:9200"}.GetAddresses())
	assert.Equal(t, []string{"http://a:9200", "http://b:9200"},
		ElasticsearchConfig{Addresses: []string{"http://a:9200", "http://b:9200"}, URL: "http://ignored"}.GetAddresses())
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
}

func TestGetDurationAndWorkerFallback(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))

	cfg := &Config{Workers: map[string]WorkerConfig{"crm-query": {Enabled: false}}}
	assert.False(t, GetWorkerConfig(cfg, "crm-query").Enabled)
	assert.True(t, GetWorkerConfig(cfg, "other").Enabled)
	assert.Equal(t, 3, GetWorkerConfig(cfg, "other").MaxRetries)
}
