package config

import (
	"os"
	"strings"
)

// Config is centralized process configuration.
// DatabaseURL is the process-wide default connection target; individual claim
// tables may override it at registration time.
type Config struct {
	ServiceName string
	HTTPPort    string
	DatabaseURL string

	// ClaimUseTransaction keeps the claim transaction open across the guarded
	// handler. Disabling it trades the open transaction for a
	// delete-on-rollback protocol.
	ClaimUseTransaction bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "turnstile"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName:         service,
		HTTPPort:            port,
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ClaimUseTransaction: envBool("CLAIM_USE_TRANSACTION", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
