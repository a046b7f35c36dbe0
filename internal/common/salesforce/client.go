// internal/common/salesforce/client.go
package salesforce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"salesforce-query-workers/internal/common/httpclient"
	"salesforce-query-workers/internal/common/metrics"
	"salesforce-query-workers/internal/models"
)

var (
	ErrObjectNotFound = models.ErrUnknownEntity
	ErrRequestFailed  = errors.New("SALESFORCE_REQUEST_FAILED")
	ErrAuthFailed     = errors.New("SALESFORCE_AUTH_FAILED")
)

const DefaultAPIVersion = "59.0"

// APIError is one entry of the error array the REST API returns.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"errorCode"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", e.ErrorCode, e.StatusCode, e.Message)
}

// Session is an authenticated handle on one org's REST API.
type Session struct {
	instanceURL string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
}

func NewSession(instanceURL, accessToken, apiVersion string, httpClient *http.Client) *Session {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	if httpClient == nil {
		httpClient = httpclient.New(30 * time.Second)
	}
	return &Session{
		instanceURL: strings.TrimSuffix(instanceURL, "/"),
		accessToken: accessToken,
		apiVersion:  strings.TrimPrefix(apiVersion, "v"),
		httpClient:  httpClient,
	}
}

func (s *Session) InstanceURL() string {
	return s.instanceURL
}

type describeGlobalResponse struct {
	SObjects []models.EntityDescriptor `json:"sobjects"`
}

type describeSObjectResponse struct {
	Name   string                      `json:"name"`
	Fields []models.RawFieldDescriptor `json:"fields"`
}

// ListDescribableEntities returns every sobject of the org in API order.
func (s *Session) ListDescribableEntities(ctx context.Context) ([]models.EntityDescriptor, error) {
	var out describeGlobalResponse
	if err := s.get(ctx, "describe_global", "/sobjects/", nil, &out); err != nil {
		return nil, err
	}
	return out.SObjects, nil
}

// Describe returns the raw field descriptors of one sobject. Unknown names
// yield an error wrapping ErrObjectNotFound.
func (s *Session) Describe(ctx context.Context, apiName string) ([]models.RawFieldDescriptor, error) {
	if strings.TrimSpace(apiName) == "" {
		return nil, fmt.Errorf("%w: empty object name", ErrObjectNotFound)
	}

	var out describeSObjectResponse
	path := fmt.Sprintf("/sobjects/%s/describe/", url.PathEscape(apiName))
	if err := s.get(ctx, "describe", path, nil, &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

// RunQuery executes a SOQL statement and returns the first result page.
func (s *Session) RunQuery(ctx context.Context, soql string) (*models.QueryResult, error) {
	var out models.QueryResult
	if err := s.get(ctx, "query", "/query/", url.Values{"q": []string{soql}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) get(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/services/data/v%s%s", s.instanceURL, s.apiVersion, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.SalesforceAPICalls.WithLabelValues(operation, "transport_error").Inc()
		return fmt.Errorf("%w: %s: %v", ErrRequestFailed, operation, err)
	}
	defer resp.Body.Close()
	metrics.SalesforceAPIDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	metrics.SalesforceAPICalls.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := parseAPIError(resp.StatusCode, body)
		if resp.StatusCode == http.StatusNotFound && operation == "describe" {
			return fmt.Errorf("%w: %v", ErrObjectNotFound, apiErr)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", ErrAuthFailed, apiErr)
		}
		return fmt.Errorf("%w: %s: %v", ErrRequestFailed, operation, apiErr)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal %s response: %v", ErrRequestFailed, operation, err)
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	var apiErrs []APIError
	if err := json.Unmarshal(body, &apiErrs); err == nil && len(apiErrs) > 0 {
		apiErrs[0].StatusCode = status
		return &apiErrs[0]
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}
