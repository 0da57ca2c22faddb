package config

import (
	"errors"
	"fmt"
)

// Session store backends.
const (
	SessionStoreFile    = "file"
	SessionStoreKeyring = "keyring"
)

// ErrNoServiceURL is returned by RequireServiceURL when no layer set one.
var ErrNoServiceURL = errors.New("no service URL configured")

// ResolveProfile merges global settings with the named profile. If
// profileName is empty, the default profile is selected.
func ResolveProfile(cfg *Config, profileName string) (*ResolvedProfile, error) {
	name, err := resolveProfileName(cfg, profileName)
	if err != nil {
		return nil, err
	}

	profile := cfg.Profiles[name]

	resolved := &ResolvedProfile{
		Name:               name,
		ServiceURL:         profile.ServiceURL,
		ApplicationKey:     profile.ApplicationKey,
		SessionStore:       profile.SessionStore,
		MicrosoftClientID:  profile.MicrosoftClientID,
		GoogleClientID:     profile.GoogleClientID,
		GoogleClientSecret: profile.GoogleClientSecret,
		Logging:            cfg.LoggingConfig,
		Network:            cfg.NetworkConfig,
	}

	if resolved.SessionStore == "" {
		resolved.SessionStore = defaultSessionStore
	}

	return resolved, nil
}

// RequireServiceURL reports ErrNoServiceURL, with a hint naming every way
// to set one, when the profile has no service URL.
func (rp *ResolvedProfile) RequireServiceURL() error {
	if rp.ServiceURL != "" {
		return nil
	}

	return fmt.Errorf("%w for profile %q: set service_url in [profile.%s], %s, or --service-url",
		ErrNoServiceURL, rp.Name, rp.Name, EnvServiceURL)
}

// resolveProfileName determines which profile to use.
func resolveProfileName(cfg *Config, profileName string) (string, error) {
	if len(cfg.Profiles) == 0 {
		return "", fmt.Errorf("no profiles defined in config")
	}

	if profileName != "" {
		return lookupExplicitProfile(cfg, profileName)
	}

	return lookupDefaultProfile(cfg)
}

// lookupExplicitProfile validates that the named profile exists.
func lookupExplicitProfile(cfg *Config, name string) (string, error) {
	if _, ok := cfg.Profiles[name]; !ok {
		return "", fmt.Errorf("profile %q not found in config", name)
	}

	return name, nil
}

// lookupDefaultProfile finds the default profile when no name is given.
func lookupDefaultProfile(cfg *Config) (string, error) {
	if _, ok := cfg.Profiles[defaultProfileName]; ok {
		return defaultProfileName, nil
	}

	if len(cfg.Profiles) == 1 {
		for name := range cfg.Profiles {
			return name, nil
		}
	}

	return "", fmt.Errorf(
		"multiple profiles defined but none named %q; use --profile to select one",
		defaultProfileName)
}
