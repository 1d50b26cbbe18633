// Package auth provides the authentication capability the search
// orchestrator uses: request headers and a re-authentication hook.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"eosearch/internal/errdefs"
	"eosearch/internal/logging"
	"eosearch/internal/spec"
	"eosearch/internal/transport"
)

// Authenticator supplies request headers and refreshes them on demand.
type Authenticator interface {
	Headers() map[string]string
	Authenticate(ctx context.Context) error
}

// Static sends fixed headers; Authenticate is a no-op.
type Static struct {
	headers map[string]string
}

// NewStatic copies headers into a Static authenticator.
func NewStatic(headers map[string]string) *Static {
	return &Static{headers: maps.Clone(headers)}
}

// Headers returns a copy of the headers.
func (s *Static) Headers() map[string]string { return maps.Clone(s.headers) }

// Authenticate does nothing.
func (s *Static) Authenticate(context.Context) error { return nil }

// Token fetches a bearer token from a token endpoint on Authenticate and
// sends it as the Authorization header.
type Token struct {
	url  string
	doer transport.Doer

	mu      sync.RWMutex
	headers map[string]string
}

// NewToken creates a Token authenticator. The static headers are sent to the
// token endpoint as well.
func NewToken(url string, headers map[string]string, doer transport.Doer) *Token {
	h := maps.Clone(headers)
	if h == nil {
		h = map[string]string{}
	}
	return &Token{url: url, doer: doer, headers: h}
}

// Headers returns a copy of the current headers.
func (t *Token) Headers() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.headers)
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// Authenticate fetches a fresh token.
func (t *Token) Authenticate(ctx context.Context) error {
	resp, err := t.doer.Get(ctx, t.url, t.Headers())
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := resp.Check("authenticate", t.url); err != nil {
		return err
	}
	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return &errdefs.TransportError{Op: "authenticate", URL: t.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode token: %w", err)}
	}
	tok := tr.Token
	if tok == "" {
		tok = tr.AccessToken
	}
	if tok == "" {
		return &errdefs.TransportError{Op: "authenticate", URL: t.url, StatusCode: resp.StatusCode, Err: errors.New("response carries no token")}
	}
	t.mu.Lock()
	t.headers["Authorization"] = "Bearer " + tok
	t.mu.Unlock()
	logging.L().Debug("token refreshed", "url", t.url)
	return nil
}

// New builds the authenticator described by cfg.
func New(cfg spec.Auth, doer transport.Doer) Authenticator {
	if cfg.TokenURL != "" {
		return NewToken(cfg.TokenURL, cfg.Headers, doer)
	}
	return NewStatic(cfg.Headers)
}
