package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned when a token is requested before Login.
var ErrNotAuthenticated = errors.New("session is not authenticated")

// SessionConfig holds the account login used to obtain access tokens.
type SessionConfig struct {
	Email    string
	Password string
	AuthURL  string
	ClientID string

	// HTTPClient talks to the token endpoint. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Session exchanges an email and password for an access token and keeps it
// fresh. It is an oauth2.TokenSource.
type Session struct {
	config   *oauth2.Config
	email    string
	password string
	client   *http.Client

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewSession creates a session. No request is made until Login.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		config: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.AuthURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "offline_access"},
		},
		email:    cfg.Email,
		password: cfg.Password,
		client:   cfg.HTTPClient,
	}
}

// Login performs the password grant and replaces any cached token.
func (s *Session) Login(ctx context.Context) error {
	tok, err := s.config.PasswordCredentialsToken(s.withClient(ctx), s.email, s.password)
	if err != nil {
		return fmt.Errorf("unable to log in: %w", err)
	}

	// The source outlives ctx, refreshes use their own context.
	source := s.config.TokenSource(s.withClient(context.Background()), tok)

	s.mu.Lock()
	s.source = source
	s.mu.Unlock()

	return nil
}

// Refresh forces a new login, discarding the cached token.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Login(ctx)
}

// Token returns a valid access token, using the refresh token when the
// current one has expired.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return nil, ErrNotAuthenticated
	}
	return source.Token()
}

func (s *Session) withClient(ctx context.Context) context.Context {
	if s.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

// NewHTTPClient returns a client that signs every request with a bearer
// token from src.
func NewHTTPClient(src oauth2.TokenSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: src,
			Base:   http.DefaultTransport,
		},
	}
}

// StaticToken is a token source for a plain API key.
func StaticToken(apiKey string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
}
