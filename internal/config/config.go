// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for zumo-go. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
// Global settings are flat top-level keys; each Mobile Service the user
// talks to is a [profile.<name>] section.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Profiles map[string]Profile `toml:"profile"`
	LoggingConfig
	NetworkConfig
}

// LoggingConfig controls log output: level and format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls the HTTP client used for Mobile Services requests.
// rate_limit is in requests per second; 0 disables throttling.
type NetworkConfig struct {
	Timeout   string  `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"`
	UserAgent string  `toml:"user_agent"`
}

// Profile describes one Mobile Service and how to log in to it.
type Profile struct {
	ServiceURL         string `toml:"service_url"`
	ApplicationKey     string `toml:"application_key"`
	SessionStore       string `toml:"session_store"`
	MicrosoftClientID  string `toml:"microsoft_client_id"`
	GoogleClientID     string `toml:"google_client_id"`
	GoogleClientSecret string `toml:"google_client_secret"`
}

// ResolvedProfile is a profile after all override layers have been applied,
// together with the effective global settings. This is the final product
// consumed by the CLI.
type ResolvedProfile struct {
	Name               string        `json:"name"`
	ConfigPath         string        `json:"config_path"`
	ServiceURL         string        `json:"service_url"`
	ApplicationKey     string        `json:"-"`
	SessionStore       string        `json:"session_store"`
	MicrosoftClientID  string        `json:"microsoft_client_id,omitempty"`
	GoogleClientID     string        `json:"google_client_id,omitempty"`
	GoogleClientSecret string        `json:"-"`
	Logging            LoggingConfig `json:"logging"`
	Network            NetworkConfig `json:"network"`
}

// TimeoutDuration returns the parsed request timeout. Values are validated
// on load, so a parse failure here falls back to the default.
func (rp *ResolvedProfile) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(rp.Network.Timeout)
	if err != nil {
		d, _ = time.ParseDuration(defaultTimeout)
	}

	return d
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the empty string".
type CLIOverrides struct {
	ConfigPath     string  // --config flag (empty = use default)
	Profile        string  // --profile flag (empty = use default)
	ServiceURL     *string // --service-url flag
	ApplicationKey *string // --app-key flag
}
