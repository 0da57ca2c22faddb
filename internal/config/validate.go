package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"time"
)

// Validation range constants.
const (
	minTimeout   = 1 * time.Second
	maxTimeout   = 10 * time.Minute
	maxRateLimit = 1000
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"auto", "text", "json"}
	validSessionStores = []string{SessionStoreFile, SessionStoreKeyring}
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)

	// Sorted so the report order does not depend on map iteration.
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		p := cfg.Profiles[name]
		errs = append(errs, validateProfile(name, &p)...)
	}

	return errors.Join(errs...)
}

// ValidateResolved checks the final profile after the four-layer override
// chain (defaults -> file -> env -> CLI) has been applied. Environment and
// flag values never pass through Validate, so the service URL is checked
// again here.
func ValidateResolved(rp *ResolvedProfile) error {
	var errs []error

	if rp.ServiceURL != "" {
		if err := validateServiceURL(rp.ServiceURL); err != nil {
			errs = append(errs, fmt.Errorf("service_url: %w", err))
		}
	}

	return errors.Join(errs...)
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !slices.Contains(validLogLevels, l.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level: must be one of %v, got %q", validLogLevels, l.LogLevel))
	}

	if !slices.Contains(validLogFormats, l.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format: must be one of %v, got %q", validLogFormats, l.LogFormat))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("timeout: invalid duration %q: %w", n.Timeout, err))
	} else if d < minTimeout || d > maxTimeout {
		errs = append(errs, fmt.Errorf("timeout: must be between %s and %s, got %s", minTimeout, maxTimeout, d))
	}

	if n.RateLimit < 0 || n.RateLimit > maxRateLimit {
		errs = append(errs, fmt.Errorf("rate_limit: must be between 0 and %d, got %g", maxRateLimit, n.RateLimit))
	}

	return errs
}

func validateProfile(name string, p *Profile) []error {
	var errs []error

	if p.ServiceURL != "" {
		if err := validateServiceURL(p.ServiceURL); err != nil {
			errs = append(errs, fmt.Errorf("profile %q: service_url: %w", name, err))
		}
	}

	if p.SessionStore != "" && !slices.Contains(validSessionStores, p.SessionStore) {
		errs = append(errs, fmt.Errorf("profile %q: session_store: must be one of %v, got %q",
			name, validSessionStores, p.SessionStore))
	}

	if p.GoogleClientSecret != "" && p.GoogleClientID == "" {
		errs = append(errs, fmt.Errorf("profile %q: google_client_secret is set but google_client_id is not", name))
	}

	return errs
}

func validateServiceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}

	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("must not contain a query or fragment, got %q", raw)
	}

	return nil
}
