package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", slog.String("path", path))

	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config loaded",
		slog.String("path", path),
		slog.Int("profiles", len(cfg.Profiles)),
	)

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values, so that flags and
// environment variables alone are enough to talk to a service.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", slog.String("path", path))
		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns a fully resolved and validated profile ready for use.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*ResolvedProfile, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, err
	}

	// 3. Resolve profile name: CLI > env > "default"
	profileName := cli.Profile
	if profileName == "" {
		profileName = env.Profile
	}

	// 4. Without profiles, synthesize one so that --service-url works with
	// no config file at all.
	if len(cfg.Profiles) == 0 {
		syntheticName := defaultProfileName
		if profileName != "" {
			syntheticName = profileName
		}

		cfg.Profiles = map[string]Profile{syntheticName: {}}
	}

	// 5. Merge global settings into the selected profile
	resolved, err := ResolveProfile(cfg, profileName)
	if err != nil {
		return nil, err
	}

	resolved.ConfigPath = cfgPath

	// 6. Apply env overrides
	if env.ServiceURL != "" {
		resolved.ServiceURL = env.ServiceURL
	}

	if env.ApplicationKey != "" {
		resolved.ApplicationKey = env.ApplicationKey
	}

	// 7. Apply CLI overrides (pointer fields: nil = not specified)
	if cli.ServiceURL != nil {
		resolved.ServiceURL = *cli.ServiceURL
	}

	if cli.ApplicationKey != nil {
		resolved.ApplicationKey = *cli.ApplicationKey
	}

	// 8. Validate the final resolved profile
	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger.Debug("profile resolved",
		slog.String("profile", resolved.Name),
		slog.String("service_url", resolved.ServiceURL),
		slog.String("session_store", resolved.SessionStore),
	)

	return resolved, nil
}
