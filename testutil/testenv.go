// Package testutil provides shared environment helpers for E2E tests. It
// depends only on stdlib so that E2E tests, which drive the built binary
// and cannot import internal/, can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the E2E suite.
const (
	EnvE2EServiceURL     = "ZUMO_GO_E2E_SERVICE_URL"
	EnvE2EApplicationKey = "ZUMO_GO_E2E_APPLICATION_KEY"
	EnvE2EToken          = "ZUMO_GO_E2E_TOKEN"
	EnvE2ETable          = "ZUMO_GO_E2E_TABLE"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// RequireEnv returns the values of the named variables, or an error naming
// every one that is unset.
func RequireEnv(keys ...string) (map[string]string, error) {
	vals := make(map[string]string, len(keys))

	var missing []string

	for _, k := range keys {
		v := os.Getenv(k)
		if v == "" {
			missing = append(missing, k)
			continue
		}

		vals[k] = v
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing environment: %s", strings.Join(missing, ", "))
	}

	return vals, nil
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// IsolatedHome points HOME and the XDG directories at fresh subdirectories
// of root so the binary under test never touches a real profile. It returns
// the data directory the binary will use.
func IsolatedHome(root string) (string, error) {
	home := filepath.Join(root, "home")
	cfg := filepath.Join(root, "config")
	data := filepath.Join(root, "data")

	for _, d := range []string{home, cfg, data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return "", fmt.Errorf("creating %s: %w", d, err)
		}
	}

	os.Setenv("HOME", home)
	os.Setenv("XDG_CONFIG_HOME", cfg)
	os.Setenv("XDG_DATA_HOME", data)

	return filepath.Join(data, "zumo-go"), nil
}
