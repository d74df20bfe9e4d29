// Package auth provides the Google credentials injected into the mailbox and calendar clients.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/quantumlife/meetingagent/internal/core"
)

// TokenStore persists an OAuth token between runs
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
}

// FileTokenStore keeps the token as JSON in a 0600 file
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a store at path
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the token file location
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token. A missing file yields core.ErrNotAuthenticated.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no token at %s", core.ErrNotAuthenticated, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	token, err := TokenFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

// Save writes the token, creating the parent directory
func (s *FileTokenStore) Save(token *oauth2.Token) error {
	data, err := TokenToJSON(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// TokenToJSON serializes a token to JSON
func TokenToJSON(token *oauth2.Token) ([]byte, error) {
	return json.Marshal(token)
}

// TokenFromJSON deserializes a token from JSON
func TokenFromJSON(data []byte) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// persistingSource saves every refreshed token back to the store
type persistingSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		p.last = token.AccessToken
		if err := p.store.Save(token); err != nil {
			return nil, err
		}
	}
	return token, nil
}

// Credentials hands out authorized HTTP clients backed by a TokenStore
type Credentials struct {
	config *oauth2.Config
	store  TokenStore
}

// NewCredentials creates a credential provider
func NewCredentials(config *oauth2.Config, store TokenStore) *Credentials {
	return &Credentials{config: config, store: store}
}

// TokenSource returns a refreshing token source that writes refreshed tokens back to the store
func (c *Credentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	src := &persistingSource{
		base:  c.config.TokenSource(ctx, token),
		store: c.store,
		last:  token.AccessToken,
	}
	return oauth2.ReuseTokenSource(token, src), nil
}

// HTTPClient returns a client that authorizes every request
func (c *Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := c.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}
