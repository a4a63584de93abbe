// Package iam holds the process lifetime IBM Cloud credential: the API key,
// the short-lived IAM access token exchanged from it, and the background
// refresher that keeps the token valid.
package iam

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// DefaultSafetyMargin is subtracted from a token's expiry when deciding validity.
const DefaultSafetyMargin = 2 * time.Minute

// Store holds the current access token. One writer (the Refresher) and any
// number of concurrent readers (adapter requests) are supported.
type Store struct {
	clock  clock.PassiveClock
	margin time.Duration

	mu      sync.RWMutex
	token   string
	expiry  time.Time
	lastErr error

	accountMu sync.Mutex
	accountID string
}

// NewStore creates an empty store. A nil clock means the real clock.
func NewStore(margin time.Duration, c clock.PassiveClock) *Store {
	if c == nil {
		c = clock.RealClock{}
	}
	if margin < 0 {
		margin = 0
	}
	return &Store{clock: c, margin: margin}
}

// Margin returns the safety margin.
func (s *Store) Margin() time.Duration { return s.margin }

// Install atomically replaces the token and clears any recorded failure.
func (s *Store) Install(token string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiry = expiry
	s.lastErr = nil
}

// Fail records a refresh failure. The current token stays usable until it expires.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// CurrentToken returns the access token. It fails with an AuthError when no
// token was ever installed or when the token is past its expiry.
func (s *Store) CurrentToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		if s.lastErr != nil {
			return "", cloud.NewError(cloud.KindAuth, "current token", s.lastErr)
		}
		return "", cloud.Errorf(cloud.KindAuth, "current token", "not authenticated")
	}
	if !s.clock.Now().Before(s.expiry) {
		if s.lastErr != nil {
			return "", cloud.Errorf(cloud.KindAuth, "current token", "token expired: %w", s.lastErr)
		}
		return "", cloud.Errorf(cloud.KindAuth, "current token", "token expired")
	}
	return s.token, nil
}

// Token implements oauth2.TokenSource so adapters can use oauth2.Transport.
func (s *Store) Token() (*oauth2.Token, error) {
	tok, err := s.CurrentToken()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer", Expiry: s.Expiry()}, nil
}

// IsValid reports whether a token exists and now is before expiry minus the margin.
func (s *Store) IsValid(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && now.Before(s.expiry.Add(-s.margin))
}

// Expiry returns the expiry of the current token, zero when unauthenticated.
func (s *Store) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// LastError returns the last recorded refresh failure.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// AccountID resolves the account from the token claims. The first successful
// resolution is kept for the lifetime of the store.
func (s *Store) AccountID() (string, error) {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	if s.accountID != "" {
		return s.accountID, nil
	}
	tok, err := s.CurrentToken()
	if err != nil {
		return "", err
	}
	id, err := accountFromJWT(tok)
	if err != nil {
		return "", cloud.NewError(cloud.KindAuth, "resolve account", err)
	}
	s.accountID = id
	return id, nil
}

type tokenClaims struct {
	Account struct {
		BSS string `json:"bss"`
	} `json:"account"`
}

func accountFromJWT(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", errors.New("access token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", errors.New("failed to decode token claims")
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", errors.New("failed to parse token claims")
	}
	if claims.Account.BSS == "" {
		return "", errors.New("token has no account claim")
	}
	return claims.Account.BSS, nil
}
