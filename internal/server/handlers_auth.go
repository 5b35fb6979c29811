package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleLogin(c echo.Context) error {
	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return c.String(http.StatusInternalServerError, "Failed to start login")
	}
	state := hex.EncodeToString(stateBytes)

	s.stateMu.Lock()
	s.oauthState = state
	s.stateMu.Unlock()

	return c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

func (s *Server) handleOAuthCallback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return c.String(http.StatusBadRequest, "Twitch authorization denied: "+errParam)
	}

	state := c.QueryParam("state")
	s.stateMu.Lock()
	expected := s.oauthState
	s.oauthState = ""
	s.stateMu.Unlock()

	if expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		return c.String(http.StatusBadRequest, "Invalid OAuth state")
	}

	code := c.QueryParam("code")
	if code == "" {
		return c.String(http.StatusBadRequest, "Missing authorization code")
	}

	tokens, err := s.oauth.Exchange(c.Request().Context(), code)
	if err != nil {
		slog.Error("OAuth code exchange failed", "error", err)
		return c.String(http.StatusBadGateway, "Token exchange failed")
	}

	if err := s.tokens.SetTokens(tokens); err != nil {
		slog.Error("Failed to persist tokens", "error", err)
		return c.String(http.StatusInternalServerError, "Failed to store tokens")
	}

	slog.Info("Twitch account connected")
	return c.String(http.StatusOK, "Twitch account connected. You can close this tab.")
}
