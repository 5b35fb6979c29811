// Package twitch contains minimal helpers for the Twitch Helix and OAuth
// APIs: user lookup, Channel Points rewards/redemptions listing, and the
// authorization-code token flow with transparent refresh.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	helixBaseURL = "https://api.twitch.tv/helix"

	redemptionPageSize = 50
)

// APIError is a non-2xx Helix response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitch api error: status %d: %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is an authorization failure: expired or
// insufficient credentials, or a revoked refresh token surfacing as
// ErrReauthRequired from the token source. Auth errors are terminal for the
// poller; everything else is transient.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrReauthRequired) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// User is the subset of helix/users needed for eligibility checks.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	BroadcasterType string `json:"broadcaster_type"`
}

// Reward is one configured Channel Points reward.
type Reward struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Cost   int    `json:"cost"`
	Prompt string `json:"prompt"`
}

// Redemption is one reward claim reported by the API.
type Redemption struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	UserInput   string    `json:"user_input"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	Status      string    `json:"status"`
}

// HelixClient issues user-token Helix requests. BaseURL is overridable for
// tests.
type HelixClient struct {
	Tokens     *TokenSource
	ClientID   string
	BaseURL    string
	HTTPClient *http.Client
}

func NewHelixClient(tokens *TokenSource, clientID string) *HelixClient {
	return &HelixClient{
		Tokens:   tokens,
		ClientID: clientID,
		BaseURL:  helixBaseURL,
	}
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// GetUser returns the user owning the current token.
func (hc *HelixClient) GetUser(ctx context.Context) (*User, error) {
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "/users", nil, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("no user in response")
	}
	return &body.Data[0], nil
}

// ListRewards lists the broadcaster's configured Channel Points rewards.
func (hc *HelixClient) ListRewards(ctx context.Context, broadcasterID string) ([]Reward, error) {
	if broadcasterID == "" {
		return nil, fmt.Errorf("broadcasterID empty")
	}
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)

	var body struct {
		Data []Reward `json:"data"`
	}
	if err := hc.get(ctx, "/channel_points/custom_rewards", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// ListRedemptions lists fulfilled redemptions of one reward completed since
// the given time. The API has no server-side time filter, so the newest page
// is fetched and filtered locally; since must be recent enough to fit one
// page, which holds for polling windows of a minute or two.
func (hc *HelixClient) ListRedemptions(ctx context.Context, broadcasterID, rewardID string, since time.Time) ([]Redemption, error) {
	if broadcasterID == "" || rewardID == "" {
		return nil, fmt.Errorf("broadcasterID or rewardID empty")
	}
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("reward_id", rewardID)
	q.Set("status", "FULFILLED")
	q.Set("sort", "NEWEST")
	q.Set("first", fmt.Sprintf("%d", redemptionPageSize))

	var body struct {
		Data []Redemption `json:"data"`
	}
	if err := hc.get(ctx, "/channel_points/custom_rewards/redemptions", q, &body); err != nil {
		return nil, err
	}

	recent := make([]Redemption, 0, len(body.Data))
	for _, red := range body.Data {
		if !red.RedeemedAt.Before(since) {
			recent = append(recent, red)
		}
	}
	return recent, nil
}

func (hc *HelixClient) get(ctx context.Context, path string, query url.Values, out any) error {
	tokens, err := hc.Tokens.EnsureValidTokens(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(b)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
