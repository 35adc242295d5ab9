package server

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the Nexus server reads from the environment.
type Config struct {
	Addr string

	// Gateway selects the backing provider: gemini, openai or remote.
	Gateway string
	Model   string

	// APIKey seeds the key slot. A key delivered later via the one-shot
	// URL replaces it.
	APIKey string

	// DataDir holds the persisted key slot.
	DataDir string

	// RemoteBaseURL targets a Nexus-style upstream when Gateway is
	// "remote".
	RemoteBaseURL string

	// Voice stream endpoints.
	STTURL      string
	TTSURL      string
	VoiceAPIKey string
	VoiceName   string
	VoiceLocale string

	CORSAllowedOrigins map[string]struct{} // empty => disabled

	LiveWriteTimeout  time.Duration
	LiveHandshakeWait time.Duration

	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	LogFile  string
	LogLevel slog.Level
}

// LoadFromEnv builds a Config from NEXUS_* environment variables,
// applying defaults for anything unset.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("NEXUS_ADDR", ":8080"),
		Gateway:             envOr("NEXUS_GATEWAY", "gemini"),
		Model:               envOr("NEXUS_MODEL", ""),
		APIKey:              strings.TrimSpace(os.Getenv("NEXUS_API_KEY")),
		DataDir:             envOr("NEXUS_DATA_DIR", ".nexus"),
		RemoteBaseURL:       envOr("NEXUS_REMOTE_BASE_URL", ""),
		STTURL:              envOr("NEXUS_STT_URL", ""),
		TTSURL:              envOr("NEXUS_TTS_URL", ""),
		VoiceAPIKey:         strings.TrimSpace(os.Getenv("NEXUS_VOICE_API_KEY")),
		VoiceName:           envOr("NEXUS_VOICE_NAME", ""),
		VoiceLocale:         envOr("NEXUS_VOICE_LOCALE", "en-US"),
		CORSAllowedOrigins:  make(map[string]struct{}),
		LiveWriteTimeout:    envDurationOr("NEXUS_LIVE_WRITE_TIMEOUT", 5*time.Second),
		LiveHandshakeWait:   envDurationOr("NEXUS_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:   envDurationOr("NEXUS_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("NEXUS_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("NEXUS_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		LogFile:             envOr("NEXUS_LOG_FILE", ""),
		LogLevel:            envLevelOr("NEXUS_LOG_LEVEL", slog.LevelInfo),
	}

	switch cfg.Gateway {
	case "gemini", "openai", "remote":
	default:
		return Config{}, fmt.Errorf("NEXUS_GATEWAY must be one of gemini|openai|remote")
	}
	if cfg.Gateway == "remote" && cfg.RemoteBaseURL == "" {
		return Config{}, fmt.Errorf("NEXUS_REMOTE_BASE_URL is required when NEXUS_GATEWAY=remote")
	}
	if cfg.LiveWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("NEXUS_LIVE_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("NEXUS_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	for _, origin := range splitCSV(os.Getenv("NEXUS_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func envLevelOr(key string, def slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return slog.Level(n)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return def
	}
	return level
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
