// internal/common/salesforce/auth.go
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/httpclient"
)

// Credentials configures the OAuth 2.0 username-password flow.
type Credentials struct {
	LoginURL      string
	APIVersion    string
	Username      string
	Password      string
	SecurityToken string
	ClientID      string
	ClientSecret  string
	Timeout       time.Duration
}

// CredentialsFromConfig maps the salesforce config section.
func CredentialsFromConfig(cfg config.SalesforceConfig) Credentials {
	return Credentials{
		LoginURL:      cfg.LoginURL,
		APIVersion:    cfg.APIVersion,
		Username:      cfg.Username,
		Password:      cfg.Password,
		SecurityToken: cfg.SecurityToken,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		Timeout:       config.GetDuration(cfg.Timeout),
	}
}

// TokenResponse holds the response from the token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
	Signature   string `json:"signature"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Authenticator exchanges credentials for a Session.
type Authenticator struct {
	creds      Credentials
	httpClient *http.Client
}

func NewAuthenticator(creds Credentials, httpClient *http.Client) *Authenticator {
	if creds.Timeout <= 0 {
		creds.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = httpclient.New(creds.Timeout)
	}
	return &Authenticator{creds: creds, httpClient: httpClient}
}

// Login performs one token request. There is no refresh; callers log in
// again when they need a new session.
func (a *Authenticator) Login(ctx context.Context) (*Session, error) {
	tokenURL := strings.TrimSuffix(a.creds.LoginURL, "/") + "/services/oauth2/token"

	data := url.Values{}
	data.Set("grant_type", "password")
	data.Set("client_id", a.creds.ClientID)
	data.Set("client_secret", a.creds.ClientSecret)
	data.Set("username", a.creds.Username)
	data.Set("password", a.creds.Password+a.creds.SecurityToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request failed: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read token response: %v", ErrAuthFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		if json.Unmarshal(body, &te) == nil && te.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrAuthFailed, te.Error, te.Description)
		}
		return nil, fmt.Errorf("%w: token request failed with status %d: %s", ErrAuthFailed, resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %v", ErrAuthFailed, err)
	}
	if tokenResp.AccessToken == "" || tokenResp.InstanceURL == "" {
		return nil, fmt.Errorf("%w: token response missing access_token or instance_url", ErrAuthFailed)
	}

	return NewSession(tokenResp.InstanceURL, tokenResp.AccessToken, a.creds.APIVersion, a.httpClient), nil
}
