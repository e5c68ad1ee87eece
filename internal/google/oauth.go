package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// DefaultAccount names the token used when no account is configured.
const DefaultAccount = "default"

// DefaultRedirectURL is the loopback redirect registered for desktop clients.
// The browser lands on an unreachable page whose URL carries the code.
const DefaultRedirectURL = "http://localhost"

// Scopes are the permissions requested for the inbox: read messages and
// attachments and remove the UNREAD label.
var Scopes = []string{gmail.GmailModifyScope}

// ErrNoToken is returned when no token file exists for an account.
var ErrNoToken = errors.New("no Google OAuth token found")

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Config identifies the OAuth client and where tokens live.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// TokenDir holds the token files. Defaults to DefaultTokenDir().
	TokenDir string
	Account  string
}

func (c Config) account() string {
	if c.Account == "" {
		return DefaultAccount
	}
	return c.Account
}

func (c Config) tokenDir() string {
	if c.TokenDir == "" {
		return DefaultTokenDir()
	}
	return c.TokenDir
}

// TokenPath returns the token file for the configured account.
func (c Config) TokenPath() (string, error) {
	account := c.account()
	if err := validateAccountName(account); err != nil {
		return "", err
	}
	return filepath.Join(c.tokenDir(), "google-"+account+".token"), nil
}

// OAuth2 returns the oauth2 configuration for the client.
func (c Config) OAuth2() *oauth2.Config {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = DefaultRedirectURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       Scopes,
	}
}

// DefaultTokenDir is the per-user cache directory for tokens.
func DefaultTokenDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "inboxrelay")
}

func validateAccountName(account string) error {
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("invalid account name %q: use letters, digits, hyphens and underscores", account)
	}
	return nil
}

// AuthURL returns the consent page URL. Offline access makes Google issue a
// refresh token.
func AuthURL(cfg Config, state string) string {
	return cfg.OAuth2().AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func Exchange(ctx context.Context, cfg Config, code string) error {
	tok, err := cfg.OAuth2().Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	path, err := cfg.TokenPath()
	if err != nil {
		return err
	}
	return SaveToken(path, tok)
}

// HasToken reports whether a token file exists for the configured account.
func HasToken(cfg Config) bool {
	path, err := cfg.TokenPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s, run the auth command first", ErrNoToken, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, fmt.Errorf("invalid token file %s: no credentials", path)
	}
	return &tok, nil
}

// HTTPClient returns a client authorized with the stored token. Refreshed
// tokens are written back to the token file.
func HTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	path, err := cfg.TokenPath()
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(path)
	if err != nil {
		return nil, err
	}

	src := cfg.OAuth2().TokenSource(ctx, tok)
	ts := oauth2.ReuseTokenSource(tok, &persistingTokenSource{src: src, path: path, last: tok.AccessToken})
	return oauth2.NewClient(ctx, ts), nil
}

// persistingTokenSource saves every token whose access token changed.
type persistingTokenSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveToken(p.path, tok); err != nil {
			return nil, err
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
