package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAuthorizeURL = "https://id.twitch.tv/oauth2/authorize"

// Scopes requested for the companion: redemption polling and chat reading.
var Scopes = []string{"channel:read:redemptions", "chat:read"}

// OAuthFlow implements the authorization-code grant for the admin login.
type OAuthFlow struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthorizeURL string
	TokenURL     string
	HTTPClient   *http.Client
}

func NewOAuthFlow(clientID, clientSecret, redirectURI string) *OAuthFlow {
	return &OAuthFlow{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		AuthorizeURL: defaultAuthorizeURL,
		TokenURL:     defaultOAuthURL,
	}
}

// AuthCodeURL builds the browser redirect target for the login flow.
func (f *OAuthFlow) AuthCodeURL(state string) string {
	v := url.Values{}
	v.Set("client_id", f.ClientID)
	v.Set("redirect_uri", f.RedirectURI)
	v.Set("response_type", "code")
	v.Set("scope", strings.Join(Scopes, " "))
	v.Set("state", state)
	return f.AuthorizeURL + "?" + v.Encode()
}

// Exchange trades an authorization code for a token pair.
func (f *OAuthFlow) Exchange(ctx context.Context, code string) (*Tokens, error) {
	form := url.Values{}
	form.Set("client_id", f.ClientID)
	form.Set("client_secret", f.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", f.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	hc := f.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("code exchange failed with status %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("empty access_token in exchange response")
	}

	return &Tokens{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}
