package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	PortalURL              string
	NewsAPIURL             string
	NewsAPITimeout         time.Duration
	DatabaseURL            string
	SessionSecret          string
	SessionMaxAge          time.Duration
	SessionRefreshInterval time.Duration
	MirrorInterval         time.Duration
	MirrorMaxAge           time.Duration
	AuthWaitTimeout        time.Duration
	ProtectedPaths         []string
	SignInPath             string
	GoogleClientID         string
	GoogleClientSecret     string
	GoogleRedirectURI      string
	ClientStorePath        string
	LogLevel               string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                   getEnv("PORT", "3000"),
		PortalURL:              strings.TrimRight(getEnv("PORTAL_URL", "http://localhost:3000"), "/"),
		NewsAPIURL:             strings.TrimRight(getEnv("NEWS_API_URL", "http://localhost:8000"), "/"),
		NewsAPITimeout:         getDuration("NEWS_API_TIMEOUT", 15*time.Second),
		DatabaseURL:            getEnv("DATABASE_URL", "sqlite:portal.db"),
		SessionSecret:          getEnv("SESSION_SECRET", "your-secret-key-change-in-production"),
		SessionMaxAge:          getDuration("SESSION_MAX_AGE", 30*24*time.Hour),
		SessionRefreshInterval: getDuration("SESSION_REFRESH_INTERVAL", 5*time.Minute),
		MirrorInterval:         getDuration("MIRROR_INTERVAL", time.Minute),
		MirrorMaxAge:           getDuration("MIRROR_MAX_AGE", 30*24*time.Hour),
		AuthWaitTimeout:        getDuration("AUTH_WAIT_TIMEOUT", 8*time.Second),
		ProtectedPaths:         getList("PROTECTED_PATHS", []string{"/dashboard", "/profile"}),
		SignInPath:             getEnv("SIGNIN_PATH", "/auth/signin"),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:      getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/api/auth/google/callback"),
		ClientStorePath:        getEnv("CLIENT_STORE_PATH", defaultStorePath()),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// getList reads a comma separated env var, skipping blank entries.
func getList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "newsctl.db"
	}
	return dir + string(os.PathSeparator) + "newsctl" + string(os.PathSeparator) + "store.db"
}
