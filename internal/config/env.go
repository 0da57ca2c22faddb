package config

import (
	"log/slog"
	"os"
)

// Environment variable names for overrides.
const (
	EnvConfig         = "ZUMO_GO_CONFIG"
	EnvProfile        = "ZUMO_GO_PROFILE"
	EnvServiceURL     = "ZUMO_GO_SERVICE_URL"
	EnvApplicationKey = "ZUMO_GO_APPLICATION_KEY"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath     string // ZUMO_GO_CONFIG: override config file path
	Profile        string // ZUMO_GO_PROFILE: active profile name
	ServiceURL     string // ZUMO_GO_SERVICE_URL: service URL override
	ApplicationKey string // ZUMO_GO_APPLICATION_KEY: application key override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	o := EnvOverrides{
		ConfigPath:     os.Getenv(EnvConfig),
		Profile:        os.Getenv(EnvProfile),
		ServiceURL:     os.Getenv(EnvServiceURL),
		ApplicationKey: os.Getenv(EnvApplicationKey),
	}

	if o.ConfigPath != "" {
		logger.Debug("env override", slog.String("var", EnvConfig), slog.String("value", o.ConfigPath))
	}

	if o.Profile != "" {
		logger.Debug("env override", slog.String("var", EnvProfile), slog.String("value", o.Profile))
	}

	if o.ServiceURL != "" {
		logger.Debug("env override", slog.String("var", EnvServiceURL), slog.String("value", o.ServiceURL))
	}

	if o.ApplicationKey != "" {
		logger.Debug("env override", slog.String("var", EnvApplicationKey))
	}

	return o
}
