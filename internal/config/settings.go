package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default values
const (
	DefaultDownloadDir   = "downloads"
	DefaultWorkers       = 3
	DefaultMaxFileMB     = 50
	DefaultRatePerMinute = 3
	DefaultRateWindow    = time.Minute
)

// Environment variable names
const (
	EnvBotToken      = "BOT_TOKEN"
	EnvAdminUserID   = "ADMIN_USER_ID"
	EnvDownloadDir   = "DOWNLOAD_DIR"
	EnvWorkers       = "WORKERS"
	EnvMaxFileMB     = "MAX_FILE_MB"
	EnvRatePerMinute = "RATE_PER_MINUTE"
	EnvChannels      = "REQUIRED_CHANNELS"
)

// SupportedDomains lists the link hosts the bot accepts.
var SupportedDomains = []string{
	"facebook.com",
	"fb.watch",
	"instagram.com",
	"tiktok.com",
}

// Settings holds the runtime configuration, read once at startup.
type Settings struct {
	BotToken         string        // Telegram bot credential, required
	AdminUserID      int64         // single admin identity, required
	DownloadDir      string        // working directory for temp files
	Workers          int           // worker pool size
	MaxFileBytes     int64         // transport payload limit
	RatePerMinute    int           // per-user admissions per window
	RateWindow       time.Duration // rate limiter sliding window
	RequiredChannels []string      // channels the user must join
}

// Load reads settings from the environment. It returns an error when a
// required value is missing or unparsable so the process can refuse to start.
func Load() (Settings, error) {
	token := os.Getenv(EnvBotToken)
	if token == "" {
		return Settings{}, fmt.Errorf("%s is not set", EnvBotToken)
	}

	adminRaw := os.Getenv(EnvAdminUserID)
	if adminRaw == "" {
		return Settings{}, fmt.Errorf("%s is not set", EnvAdminUserID)
	}
	adminID, err := strconv.ParseInt(adminRaw, 10, 64)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid %s: %w", EnvAdminUserID, err)
	}

	s := Settings{
		BotToken:         token,
		AdminUserID:      adminID,
		DownloadDir:      getenv(EnvDownloadDir, DefaultDownloadDir),
		Workers:          getint(EnvWorkers, DefaultWorkers),
		MaxFileBytes:     int64(getint(EnvMaxFileMB, DefaultMaxFileMB)) * 1024 * 1024,
		RatePerMinute:    getint(EnvRatePerMinute, DefaultRatePerMinute),
		RateWindow:       DefaultRateWindow,
		RequiredChannels: getlist(EnvChannels),
	}

	if s.Workers < 1 {
		s.Workers = 1
	}

	return s, nil
}

// getenv returns the value of the named variable or a default when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getint returns the integer value of the named variable or a default when
// unset or unparsable.
func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getlist parses a comma-separated variable into trimmed non-empty entries.
func getlist(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
