package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/omkom/live-community-tool-sub000/internal/bridge"
	"github.com/omkom/live-community-tool-sub000/internal/broadcast"
	"github.com/omkom/live-community-tool-sub000/internal/config"
	"github.com/omkom/live-community-tool-sub000/internal/planning"
	"github.com/omkom/live-community-tool-sub000/internal/twitch"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

// stubRewardsAPI satisfies the poller's API surface with canned answers.
type stubRewardsAPI struct {
	user *twitch.User
}

func (s *stubRewardsAPI) GetUser(_ context.Context) (*twitch.User, error) {
	if s.user == nil {
		return nil, &twitch.APIError{StatusCode: http.StatusUnauthorized, Message: "no token"}
	}
	return s.user, nil
}

func (s *stubRewardsAPI) ListRewards(_ context.Context, _ string) ([]twitch.Reward, error) {
	return nil, nil
}

func (s *stubRewardsAPI) ListRedemptions(_ context.Context, _, _ string, _ time.Time) ([]twitch.Redemption, error) {
	return nil, nil
}

type serverFixture struct {
	srv      *Server
	http     *httptest.Server
	registry *ws.Registry
	router   *broadcast.Router
	store    *planning.Store
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:              "0",
		MaxConnections:    16,
		MaxPayloadBytes:   4096,
		HeartbeatInterval: time.Minute,
		PollInterval:      15 * time.Second,
		RedemptionWindow:  time.Minute,
		PlanningFile:      filepath.Join(dir, "planning.json"),
		StatusFile:        filepath.Join(dir, "status.json"),
	}
}

// newFixture assembles a Server over real collaborators and serves it via
// httptest. depsFn may install the optional Twitch pieces before routing.
func newFixture(t *testing.T, cfg *config.Config, depsFn func(*Deps)) *serverFixture {
	t.Helper()

	clock := clockwork.NewRealClock()
	registry := ws.NewRegistry(clock, ws.Options{
		MaxConnections:     cfg.MaxConnections,
		MessageMinInterval: cfg.MessageMinInterval,
		MaxPayloadBytes:    cfg.MaxPayloadBytes,
	})
	t.Cleanup(func() { registry.CloseAll("test teardown") })

	router := broadcast.NewRouter(registry, clock)
	store := planning.NewStore(cfg.PlanningFile, cfg.StatusFile)

	deps := Deps{
		Registry: registry,
		Router:   router,
		Bridge:   bridge.New(router, clock),
		Store:    store,
	}
	if depsFn != nil {
		depsFn(&deps)
	}

	srv := NewServer(cfg, clock, deps)
	httpServer := httptest.NewServer(srv.echo)
	t.Cleanup(httpServer.Close)

	return &serverFixture{
		srv:      srv,
		http:     httpServer,
		registry: registry,
		router:   router,
		store:    store,
	}
}

// dial opens a WebSocket client against /ws; query is appended verbatim.
func (f *serverFixture) dial(t *testing.T, query string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws" + query
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readFrame(t *testing.T, client *gws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func expectSilence(t *testing.T, client *gws.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(wait)))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}
