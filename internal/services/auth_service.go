package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fited/stocktrack/internal/types"
)

// SessionState is the authentication state machine position
type SessionState string

const (
	StateSignedOut SessionState = "signed_out"
	StateCodeSent  SessionState = "code_sent"
	StateSignedIn  SessionState = "signed_in"
)

// Session is an established identity, used to attribute log entries
type Session struct {
	Email         string    `json:"email"`
	AccessToken   string    `json:"-"`
	EstablishedAt time.Time `json:"established_at"`
}

// SessionManager drives the two-step OTP challenge against the identity
// provider and owns the resulting session. State transitions:
// SignedOut -> CodeSent -> SignedIn, CodeSent -> SignedOut (cancel or
// challenge timeout), SignedIn -> SignedOut (sign-out).
type SessionManager struct {
	Provider     IdentityProvider
	Domain       string // required email domain, empty disables the check
	ChallengeTTL time.Duration

	mu           sync.Mutex
	state        SessionState
	session      *Session
	pendingEmail string
	codeSentAt   time.Time
	lastError    string
	loading      bool
}

// NewSessionManager starts in SignedOut
func NewSessionManager(provider IdentityProvider, domain string, challengeTTL time.Duration) *SessionManager {
	if challengeTTL <= 0 {
		challengeTTL = 10 * time.Minute
	}
	return &SessionManager{
		Provider:     provider,
		Domain:       domain,
		ChallengeTTL: challengeTTL,
		state:        StateSignedOut,
	}
}

// State returns the current machine state, expiring a stale challenge
// first
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireChallenge()
	return m.state
}

// UserEmail returns the signed-in user's email, empty when signed out
func (m *SessionManager) UserEmail() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.Email
}

// Current returns a copy of the established session, nil when absent
func (m *SessionManager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// IsLoading reports whether a network-bound operation is in flight
func (m *SessionManager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// LastError returns the most recent operation failure, empty on success
func (m *SessionManager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// SendCode validates the email and asks the provider to dispatch a
// passcode. Validation failures never reach the network.
func (m *SessionManager) SendCode(ctx context.Context, email string) error {
	release := m.begin()
	defer release()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return m.fail(types.ValidationError("email is required"))
	}
	if m.Domain != "" && !strings.HasSuffix(email, "@"+m.Domain) {
		return m.fail(types.ValidationError(fmt.Sprintf("email must belong to @%s", m.Domain)))
	}

	if err := m.Provider.SendOTP(ctx, email); err != nil {
		return m.fail(types.AuthChallengeError(fmt.Sprintf("failed to send code: %v", err)))
	}

	m.mu.Lock()
	m.state = StateCodeSent
	m.pendingEmail = email
	m.codeSentAt = time.Now()
	m.lastError = ""
	m.mu.Unlock()

	return nil
}

// VerifyCode validates the passcode format, then submits it under the
// login flow hint and, on rejection, retries once under the signup
// hint. The retry tolerates provider-side ambiguity about which kind of
// passcode it issued; it is not a security check.
func (m *SessionManager) VerifyCode(ctx context.Context, email, code string) error {
	release := m.begin()
	defer release()

	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	if len(code) < 6 || len(code) > 8 {
		return m.fail(types.ValidationError("code must be 6-8 digits"))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return m.fail(types.ValidationError("code must be 6-8 digits"))
		}
	}

	m.mu.Lock()
	m.expireChallenge()
	if m.state != StateCodeSent {
		m.mu.Unlock()
		return m.fail(types.ValidationError("no pending code, request a new one"))
	}
	m.mu.Unlock()

	session, err := m.Provider.VerifyOTP(ctx, email, code, FlowLogin)
	if err != nil {
		// The provider may have issued a signup passcode instead
		session, err = m.Provider.VerifyOTP(ctx, email, code, FlowSignup)
	}
	if err != nil {
		return m.fail(types.AuthChallengeError("passcode rejected, request a new code"))
	}

	m.mu.Lock()
	m.state = StateSignedIn
	m.session = &Session{
		Email:         session.UserEmail,
		AccessToken:   session.AccessToken,
		EstablishedAt: time.Now(),
	}
	m.pendingEmail = ""
	m.lastError = ""
	m.mu.Unlock()

	return nil
}

// RestoreSession recovers a previously established session from the
// provider token. Failure is absorbed into SignedOut, never surfaced.
func (m *SessionManager) RestoreSession(ctx context.Context, cookie string) {
	release := m.begin()
	defer release()

	if cookie == "" {
		m.clearLocked()
		return
	}

	session, err := m.Provider.GetSession(ctx, cookie)
	if err != nil {
		m.clearLocked()
		return
	}

	m.mu.Lock()
	m.state = StateSignedIn
	m.session = &Session{
		Email:         session.UserEmail,
		AccessToken:   session.AccessToken,
		EstablishedAt: time.Now(),
	}
	m.lastError = ""
	m.mu.Unlock()
}

// SignOut revokes the remote session best-effort and clears local state
// unconditionally, even when the revoke call fails.
func (m *SessionManager) SignOut(ctx context.Context) {
	release := m.begin()
	defer release()

	m.mu.Lock()
	token := ""
	if m.session != nil {
		token = m.session.AccessToken
	}
	m.mu.Unlock()

	if token != "" {
		if err := m.Provider.SignOut(ctx, token); err != nil {
			log.Printf("remote sign-out failed, clearing local session anyway: %v", err)
			m.mu.Lock()
			m.lastError = err.Error()
			m.mu.Unlock()
		}
	}

	m.clearLocked()
}

// Cancel abandons a pending challenge, CodeSent -> SignedOut
func (m *SessionManager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateCodeSent {
		m.state = StateSignedOut
		m.pendingEmail = ""
	}
}

// begin sets the loading flag and returns its release. Every operation
// defers the release so the flag clears on all exit paths.
func (m *SessionManager) begin() func() {
	m.mu.Lock()
	m.loading = true
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}
}

// fail records the error and passes it through
func (m *SessionManager) fail(err error) error {
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
	return err
}

// clearLocked drops to SignedOut
func (m *SessionManager) clearLocked() {
	m.mu.Lock()
	m.state = StateSignedOut
	m.session = nil
	m.pendingEmail = ""
	m.mu.Unlock()
}

// expireChallenge times out a stale CodeSent state. Callers hold the
// mutex.
func (m *SessionManager) expireChallenge() {
	if m.state == StateCodeSent && time.Since(m.codeSentAt) > m.ChallengeTTL {
		m.state = StateSignedOut
		m.pendingEmail = ""
	}
}
