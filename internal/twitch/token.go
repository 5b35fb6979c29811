package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultOAuthURL = "https://id.twitch.tv/oauth2/token"

// ErrReauthRequired signals that no usable token exists and the operator
// must go through the browser login again. Terminal for the poller.
var ErrReauthRequired = errors.New("twitch re-authentication required")

// Tokens is the persisted OAuth token pair.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenStore persists tokens between restarts.
type TokenStore interface {
	Load() (*Tokens, error)
	Save(tokens *Tokens) error
}

// FileTokenStore keeps tokens in a JSON file, written atomically.
type FileTokenStore struct {
	Path string
}

func (s *FileTokenStore) Load() (*Tokens, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &tokens, nil
}

func (s *FileTokenStore) Save(tokens *Tokens) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// TokenSource hands out a valid user access token, refreshing transparently
// when expiry is near. OAuthURL is overridable for tests.
type TokenSource struct {
	Store        TokenStore
	ClientID     string
	ClientSecret string
	OAuthURL     string
	HTTPClient   *http.Client

	mu     sync.Mutex
	cached *Tokens
}

func NewTokenSource(store TokenStore, clientID, clientSecret string) *TokenSource {
	return &TokenSource{
		Store:        store,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		OAuthURL:     defaultOAuthURL,
	}
}

// SetTokens installs freshly exchanged tokens (after the OAuth callback)
// and persists them.
func (ts *TokenSource) SetTokens(tokens *Tokens) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.cached = tokens
	return ts.Store.Save(tokens)
}

// EnsureValidTokens returns a token pair with at least a minute of lifetime
// left, refreshing if needed. Returns ErrReauthRequired when no tokens are
// stored or the refresh token was revoked.
func (ts *TokenSource) EnsureValidTokens(ctx context.Context) (*Tokens, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cached == nil {
		stored, err := ts.Store.Load()
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, ErrReauthRequired
		}
		ts.cached = stored
	}

	if time.Until(ts.cached.ExpiresAt) > 60*time.Second {
		return ts.cached, nil
	}

	if ts.cached.RefreshToken == "" {
		return nil, ErrReauthRequired
	}

	refreshed, err := ts.refresh(ctx, ts.cached.RefreshToken)
	if err != nil {
		return nil, err
	}
	ts.cached = refreshed
	if err := ts.Store.Save(refreshed); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}
	return refreshed, nil
}

func (ts *TokenSource) refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	form := url.Values{}
	form.Set("client_id", ts.ClientID)
	form.Set("client_secret", ts.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		// 400/401 on a refresh grant means the token was revoked.
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: refresh rejected with status %d", ErrReauthRequired, resp.StatusCode)
		}
		return nil, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (ts *TokenSource) http() *http.Client {
	if ts.HTTPClient != nil {
		return ts.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
