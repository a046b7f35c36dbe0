package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/models"
	"salesforce-query-workers/internal/pipeline"
	"salesforce-query-workers/pkg/registry"
)

type stubSession struct {
	queries []string
}

func (s *stubSession) ListDescribableEntities(context.Context) ([]models.EntityDescriptor, error) {
	return []models.EntityDescriptor{
		{Name: "Account", Label: "Account", Queryable: true, Layoutable: true},
		{Name: "Case", Label: "Case", Queryable: true, Layoutable: true},
		{Name: "CaseHistory", Label: "Case History", Queryable: true},
	}, nil
}

func (s *stubSession) Describe(_ context.Context, name string) ([]models.RawFieldDescriptor, error) {
	if name != "Case" {
		return nil, errors.New("NOT_FOUND")
	}
	return []models.RawFieldDescriptor{
		{"name": "Id", "type": "id", "label": "Case ID", "nillable": false},
		{"name": "Status", "type": "picklist", "label": "Status", "picklistValues": []interface{}{
			map[string]interface{}{"value": "New"},
			map[string]interface{}{"value": "Closed"},
		}},
	}, nil
}

func (s *stubSession) RunQuery(_ context.Context, soql string) (*models.QueryResult, error) {
	s.queries = append(s.queries, soql)
	return &models.QueryResult{TotalSize: 2, Done: true, Records: []map[string]interface{}{{"Id": "1"}, {"Id": "2"}}}, nil
}

func testEnv(session *stubSession, loginErr error) *Env {
	return &Env{
		LoadConfig: func(string) (*config.Config, error) {
			return &config.Config{Salesforce: config.SalesforceConfig{OwnerID: "005000000000001AAA"}}, nil
		},
		Sessions: func(*config.Config) pipeline.SessionProvider {
			return pipeline.SessionProviderFunc(func(context.Context) (pipeline.Session, error) {
				if loginErr != nil {
					return nil, loginErr
				}
				return session, nil
			})
		},
		Gateway: func(*config.Config) pipeline.Gateway {
			return pipeline.GatewayFunc(func(_ context.Context, prompt string) (string, error) {
				switch {
				case strings.Contains(prompt, "identifies Salesforce objects"):
					return "Case", nil
				case strings.Contains(prompt, "generates valid SOQL"):
					return "SELECT Id FROM Case WHERE OwnerId = '005000000000001AAA'", nil
				default:
					return "You have two cases.", nil
				}
			})
		},
	}
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(env)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAsk(t *testing.T) {
	session := &stubSession{}

	out, err := run(t, testEnv(session, nil), "ask", "how", "many", "cases", "do", "I", "have")
	require.NoError(t, err)
	assert.Equal(t, "You have two cases.\n", out)
	assert.Equal(t, []string{"SELECT Id FROM Case WHERE OwnerId = '005000000000001AAA'"}, session.queries)
}

func TestAsk_JSON(t *testing.T) {
	out, err := run(t, testEnv(&stubSession{}, nil), "ask", "-o", "json", "my cases")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "SUMMARY", decoded["kind"])
	assert.Equal(t, "Case", decoded["entity"])
	assert.Equal(t, "You have two cases.", decoded["message"])
	assert.Equal(t, float64(2), decoded["recordCount"])
}

func TestAsk_Table(t *testing.T) {
	out, err := run(t, testEnv(&stubSession{}, nil), "ask", "--output", "table", "my cases")
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "SELECT Id FROM Case")
}

func TestAsk_NoSession(t *testing.T) {
	out, err := run(t, testEnv(nil, errors.New("invalid_grant")), "ask", "my cases")
	require.NoError(t, err)
	assert.Equal(t, "No Salesforce session or objects found.\n", out)
}

func TestAsk_RequiresQuestion(t *testing.T) {
	_, err := run(t, testEnv(&stubSession{}, nil), "ask")
	assert.Error(t, err)
}

func TestAsk_Owner(t *testing.T) {
	t.Run("valid id", func(t *testing.T) {
		session := &stubSession{}
		_, err := run(t, testEnv(session, nil), "ask", "--owner", "005000000000002AAA", "my cases")
		require.NoError(t, err)
		assert.Len(t, session.queries, 1)
	})

	t.Run("malformed id", func(t *testing.T) {
		session := &stubSession{}
		_, err := run(t, testEnv(session, nil), "ask", "--owner", "x' OR Name != '", "my cases")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a 15 or 18 character Salesforce id")
		assert.Empty(t, session.queries)
	})
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := run(t, testEnv(&stubSession{}, nil), "ask", "-o", "yaml", "my cases")
	assert.EqualError(t, err, `unknown output format "yaml" (want text, table or json)`)
}

func TestEntities(t *testing.T) {
	out, err := run(t, testEnv(&stubSession{}, nil), "entities")
	require.NoError(t, err)
	assert.Equal(t, "Account\nCase\n", out)

	out, err = run(t, testEnv(&stubSession{}, nil), "entities", "--all")
	require.NoError(t, err)
	assert.Equal(t, "Account\nCase\nCaseHistory\n", out)

	out, err = run(t, testEnv(&stubSession{}, nil), "entities", "-o", "json")
	require.NoError(t, err)
	var decoded []models.EntityDescriptor
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 2)

	_, err = run(t, testEnv(nil, errors.New("invalid_grant")), "entities")
	assert.ErrorContains(t, err, "salesforce login failed")
}

func TestDescribe(t *testing.T) {
	out, err := run(t, testEnv(&stubSession{}, nil), "describe", "Case")
	require.NoError(t, err)
	assert.Equal(t, "Id\tid\nStatus\tpicklist\n", out)

	out, err = run(t, testEnv(&stubSession{}, nil), "describe", "-o", "table", "Case")
	require.NoError(t, err)
	assert.Contains(t, out, "New, Closed")

	_, err = run(t, testEnv(&stubSession{}, nil), "describe", "Widget")
	assert.ErrorContains(t, err, "failed to describe Widget")
}

func TestRegistryCommands(t *testing.T) {
	out, err := run(t, DefaultEnv(), "registry", "validate")
	require.NoError(t, err)
	assert.Equal(t, "Registry validation passed. Found 1 activities.\n", out)

	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, registry.Default().Save(path))

	out, err = run(t, DefaultEnv(), "registry", "update", "--path", path, "--id", "crm-query", "--field", "status", "--value", "verified")
	require.NoError(t, err)
	assert.Equal(t, "Updated activity crm-query, field status to verified\n", out)

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "verified", reg.Activities[0].ImplementationStatus)

	_, err = run(t, DefaultEnv(), "registry", "update", "--path", path, "--id", "crm-query", "--field", "taskType", "--value", "")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"activities":[]}`), 0o600))
	_, err = run(t, DefaultEnv(), "registry", "validate", "--path", path)
	assert.ErrorContains(t, err, "no activities")
}
