package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownGlobalKeys are the valid flat top-level keys in the config file.
var knownGlobalKeys = map[string]bool{
	// Logging settings
	"log_level": true, "log_format": true,
	// Network settings
	"timeout": true, "rate_limit": true, "user_agent": true,
	// Profile sections
	"profile": true,
}

// knownProfileKeys are the valid keys inside a [profile.<name>] section.
var knownProfileKeys = map[string]bool{
	"service_url": true, "application_key": true, "session_store": true,
	"microsoft_client_id": true, "google_client_id": true, "google_client_secret": true,
}

var (
	knownGlobalKeysList  = sortedKeys(knownGlobalKeys)
	knownProfileKeysList = sortedKeys(knownProfileKeys)
)

// sortedKeys returns the keys of m sorted, for deterministic suggestions
// when two candidates have the same edit distance.
func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	// A misspelled table is reported once, not once per key inside it.
	seen := make(map[string]bool)

	for _, key := range undecoded {
		if len(key) >= 3 && key[0] == "profile" {
			id := key[1] + "." + key[2]
			if !seen[id] {
				seen[id] = true
				errs = append(errs, buildProfileKeyError(key[1], key[2]))
			}

			continue
		}

		if !seen[key[0]] {
			seen[key[0]] = true
			errs = append(errs, buildGlobalKeyError(key[0]))
		}
	}

	return errors.Join(errs...)
}

// buildGlobalKeyError creates a descriptive error for an unknown top-level
// key, suggesting the closest known key when there is one.
func buildGlobalKeyError(fieldName string) error {
	suggestion := closestMatch(fieldName, knownGlobalKeysList)
	if suggestion != "" {
		return fmt.Errorf("unknown config key %q; did you mean %q?", fieldName, suggestion)
	}

	return fmt.Errorf("unknown config key %q", fieldName)
}

func buildProfileKeyError(profile, key string) error {
	suggestion := closestMatch(key, knownProfileKeysList)
	if suggestion != "" {
		return fmt.Errorf("unknown key %q in [profile.%s]; did you mean %q?", key, profile, suggestion)
	}

	return fmt.Errorf("unknown key %q in [profile.%s]", key, profile)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Single-row optimization: two rows instead of a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
