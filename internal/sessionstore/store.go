// Package sessionstore persists Mobile Services login sessions between CLI
// invocations, one record per config profile. Records live either in JSON
// files under the data directory or in the OS keyring.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyProfile is returned when a profile name is empty.
	ErrEmptyProfile = errors.New("sessionstore: empty profile name")
	// ErrInvalidProfile is returned by FileStore for a profile name that
	// cannot be used as a file name inside the sessions directory.
	ErrInvalidProfile = errors.New("sessionstore: invalid profile name")
)

// Record is one persisted session. AuthenticationToken is a credential and
// is never logged.
type Record struct {
	ServiceURL          string    `json:"service_url"`
	AuthenticationToken string    `json:"authentication_token"`
	UserID              string    `json:"user_id"`
	Provider            string    `json:"provider,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Store loads and saves session records by profile name.
type Store interface {
	// Load returns the profile's record, or (nil, nil) if none is stored.
	Load(profile string) (*Record, error)
	// Save replaces the profile's record.
	Save(profile string, rec *Record) error
	// Delete removes the profile's record. Deleting a missing record is not
	// an error.
	Delete(profile string) error
}

func encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("sessionstore: nil record")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sessionstore: encoding: %w", err)
	}

	return data, nil
}

func decode(data []byte, source string) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("sessionstore: decoding %s: %w", source, err)
	}

	if rec.AuthenticationToken == "" {
		return nil, fmt.Errorf("sessionstore: %s has no authentication token (log in again)", source)
	}

	return &rec, nil
}

// checkFileProfile rejects names that would resolve outside the store's
// directory or name a hidden file.
func checkFileProfile(profile string) error {
	if profile == "" {
		return ErrEmptyProfile
	}

	if strings.ContainsAny(profile, `/\`) || strings.Contains(profile, "..") ||
		strings.HasPrefix(profile, ".") || strings.ContainsRune(profile, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}

	return nil
}
