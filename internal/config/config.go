package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv             string
	Port               string
	LogLevel           string
	LogFormat          string
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRedirectURI  string
	TwitchChannel      string
	TokenFile          string
	PlanningFile       string
	StatusFile         string

	MaxConnections     int
	MessageMinInterval time.Duration
	MaxPayloadBytes    int
	HeartbeatInterval  time.Duration
	PollInterval       time.Duration
	RedemptionWindow   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "3000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		TwitchClientID:     getEnv("TWITCH_CLIENT_ID", ""),
		TwitchClientSecret: getEnv("TWITCH_CLIENT_SECRET", ""),
		TwitchRedirectURI:  getEnv("TWITCH_REDIRECT_URI", ""),
		TwitchChannel:      getEnv("TWITCH_CHANNEL", ""),
		TokenFile:          getEnv("TOKEN_FILE", "data/tokens.json"),
		PlanningFile:       getEnv("PLANNING_FILE", "data/planning.json"),
		StatusFile:         getEnv("STATUS_FILE", "data/status.json"),
	}

	var err error
	if cfg.MaxConnections, err = getEnvInt("MAX_CONNECTIONS", 100); err != nil {
		return nil, err
	}
	if cfg.MaxPayloadBytes, err = getEnvInt("MAX_PAYLOAD_BYTES", 4096); err != nil {
		return nil, err
	}
	if cfg.MessageMinInterval, err = getEnvDuration("MESSAGE_MIN_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedemptionWindow, err = getEnvDuration("REDEMPTION_WINDOW", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.MaxConnections <= 0 {
		return nil, fmt.Errorf("MAX_CONNECTIONS must be positive")
	}
	if cfg.RedemptionWindow < cfg.PollInterval {
		return nil, fmt.Errorf("REDEMPTION_WINDOW must be at least POLL_INTERVAL (windows must overlap)")
	}

	// Twitch config: all four must be set together
	if cfg.TwitchClientID != "" || cfg.TwitchClientSecret != "" {
		if cfg.TwitchClientID == "" {
			return nil, fmt.Errorf("TWITCH_CLIENT_ID is required when TWITCH_CLIENT_SECRET is set")
		}
		if cfg.TwitchClientSecret == "" {
			return nil, fmt.Errorf("TWITCH_CLIENT_SECRET is required when TWITCH_CLIENT_ID is set")
		}
		if cfg.TwitchRedirectURI == "" {
			return nil, fmt.Errorf("TWITCH_REDIRECT_URI is required when Twitch credentials are set")
		}
		if cfg.TwitchChannel == "" {
			return nil, fmt.Errorf("TWITCH_CHANNEL is required when Twitch credentials are set")
		}
	}

	return cfg, nil
}

// TwitchEnabled reports whether Twitch integration is configured.
func (c *Config) TwitchEnabled() bool {
	return c.TwitchClientID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
