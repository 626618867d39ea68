package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/authorizerdev/authorizer-go"
	"github.com/fited/stocktrack/internal/config"
	"github.com/fited/stocktrack/internal/utils"
)

// VerifyFlow disambiguates which kind of one-time passcode the provider
// should check: one issued for an existing account or one issued during
// signup. The provider itself is ambiguous about which it sent, so the
// session manager tries one then the other.
type VerifyFlow string

const (
	FlowLogin  VerifyFlow = "login"
	FlowSignup VerifyFlow = "signup"
)

// ProviderSession is what the identity provider hands back after a
// successful verification or session lookup.
type ProviderSession struct {
	AccessToken string
	UserEmail   string
	ExpiresIn   int64
}

// IdentityProvider is the external identity boundary. Passcode
// generation, expiry, and delivery are entirely the provider's problem.
type IdentityProvider interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string, flow VerifyFlow) (*ProviderSession, error)
	GetSession(ctx context.Context, cookie string) (*ProviderSession, error)
	SignOut(ctx context.Context, cookie string) error
}

// AuthorizerProvider implements IdentityProvider against an Authorizer
// instance: the SDK client for session validation, raw GraphQL for the
// OTP mutations the SDK does not cover.
type AuthorizerProvider struct {
	URL      string
	ClientID string

	sdk        *authorizer.AuthorizerClient
	httpClient *http.Client
	initOnce   sync.Once
	initErr    error
}

// NewAuthorizerProvider constructs the provider. The SDK client is
// created lazily on first use so startup does not depend on the
// Authorizer instance being up.
func NewAuthorizerProvider(cfg *config.Config) *AuthorizerProvider {
	return &AuthorizerProvider{
		URL:        cfg.AuthzURL,
		ClientID:   cfg.AuthzClientID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *AuthorizerProvider) client() (*authorizer.AuthorizerClient, error) {
	p.initOnce.Do(func() {
		if err := utils.PingAuthorizer(p.URL); err != nil {
			p.initErr = fmt.Errorf("authorizer ping failed: %w", err)
			return
		}
		p.sdk, p.initErr = authorizer.NewAuthorizerClient(p.ClientID, p.URL, "", nil)
	})
	return p.sdk, p.initErr
}

// SendOTP asks Authorizer to email a one-time passcode
func (p *AuthorizerProvider) SendOTP(ctx context.Context, email string) error {
	query := `mutation ($email: String!) {
		magic_link_login(params: { email: $email }) {
			message
		}
	}`
	_, err := p.graphql(ctx, query, map[string]interface{}{"email": email}, "")
	return err
}

// VerifyOTP submits the passcode under one flow hint
func (p *AuthorizerProvider) VerifyOTP(ctx context.Context, email, code string, flow VerifyFlow) (*ProviderSession, error) {
	query := `mutation ($email: String!, $otp: String!, $state: String) {
		verify_otp(params: { email: $email, otp: $otp, state: $state }) {
			access_token
			expires_in
			user {
				email
			}
		}
	}`
	data, err := p.graphql(ctx, query, map[string]interface{}{
		"email": email,
		"otp":   code,
		"state": string(flow),
	}, "")
	if err != nil {
		return nil, err
	}

	return parseAuthPayload(data, "verify_otp")
}

// GetSession validates a session cookie via the SDK
func (p *AuthorizerProvider) GetSession(ctx context.Context, cookie string) (*ProviderSession, error) {
	client, err := p.client()
	if err != nil {
		return nil, err
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{Cookie: cookie})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}
	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	return &ProviderSession{UserEmail: res.User.Email, AccessToken: cookie}, nil
}

// SignOut revokes the remote session. Callers treat failures as
// best-effort.
func (p *AuthorizerProvider) SignOut(ctx context.Context, cookie string) error {
	query := `mutation {
		logout {
			message
		}
	}`
	_, err := p.graphql(ctx, query, nil, cookie)
	return err
}

// graphql performs a raw GraphQL request against the Authorizer
// endpoint. Some operations read the session from the Cookie header.
func (p *AuthorizerProvider) graphql(ctx context.Context, query string, variables map[string]interface{}, cookie string) (map[string]interface{}, error) {
	payload := map[string]interface{}{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	graphqlURL := strings.TrimSuffix(p.URL, "/") + "/graphql"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, graphqlURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-authorizer-client-id", p.ClientID)
	if cookie != "" {
		req.Header.Set("Cookie", "cookie_session="+cookie)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %v, body: %s", err, string(body))
	}

	if errs, ok := result["errors"].([]interface{}); ok && len(errs) > 0 {
		return nil, fmt.Errorf("GraphQL error: %v", errs[0])
	}

	data, ok := result["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("no data in response, body: %s", string(body))
	}

	return data, nil
}

// parseAuthPayload pulls the session fields out of an auth mutation
// response
func parseAuthPayload(data map[string]interface{}, field string) (*ProviderSession, error) {
	auth, ok := data[field].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("no %s in response", field)
	}

	session := &ProviderSession{}
	if token, ok := auth["access_token"].(string); ok {
		session.AccessToken = token
	}
	if expires, ok := auth["expires_in"].(float64); ok {
		session.ExpiresIn = int64(expires)
	}
	if user, ok := auth["user"].(map[string]interface{}); ok {
		if email, ok := user["email"].(string); ok {
			session.UserEmail = email
		}
	}

	if session.AccessToken == "" {
		return nil, fmt.Errorf("%s returned no access token", field)
	}

	return session, nil
}
