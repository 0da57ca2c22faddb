package sessionstore

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/99designs/keyring"
)

// KeyringService is the keyring namespace session records are stored under.
const KeyringService = "zumo-go"

const keyPrefix = "session:"

// KeyringStore keeps records in the OS credential store.
type KeyringStore struct {
	ring keyring.Keyring
}

// ErrNoNativeKeyring is returned by OpenKeyring when the platform has no
// native credential store to offer.
var ErrNoNativeKeyring = errors.New("sessionstore: no native keyring on this platform")

// OpenKeyring opens the platform's native keyring. The encrypted-file
// backend is never used; when no native backend opens, an error is returned
// and callers fall back to a FileStore.
func OpenKeyring() (*KeyringStore, error) {
	return openKeyring(nativeBackends(runtime.GOOS))
}

func openKeyring(backends []keyring.BackendType) (*KeyringStore, error) {
	// keyring.Open treats a nil list as "everything", file backend included.
	if len(backends) == 0 {
		return nil, ErrNoNativeKeyring
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:     KeyringService,
		AllowedBackends: backends,
		PassPrefix:      KeyringService,
		WinCredPrefix:   KeyringService,
	})
	if err != nil {
		return nil, fmt.Errorf("sessionstore: opening keyring: %w", err)
	}

	return NewKeyringStore(ring), nil
}

// nativeBackends lists the OS credential stores tried on goos, in order.
func nativeBackends(goos string) []keyring.BackendType {
	switch goos {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil
	}
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Load returns the profile's record, or (nil, nil) when the key is absent.
func (s *KeyringStore) Load(profile string) (*Record, error) {
	if profile == "" {
		return nil, ErrEmptyProfile
	}

	item, err := s.ring.Get(keyPrefix + profile)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("sessionstore: reading keyring item for %s: %w", profile, err)
	}

	return decode(item.Data, "keyring item "+keyPrefix+profile)
}

func (s *KeyringStore) Save(profile string, rec *Record) error {
	if profile == "" {
		return ErrEmptyProfile
	}

	data, err := encode(rec)
	if err != nil {
		return err
	}

	err = s.ring.Set(keyring.Item{
		Key:         keyPrefix + profile,
		Data:        data,
		Label:       "zumo-go session (" + profile + ")",
		Description: "Mobile Services session token",
	})
	if err != nil {
		return fmt.Errorf("sessionstore: writing keyring item for %s: %w", profile, err)
	}

	return nil
}

func (s *KeyringStore) Delete(profile string) error {
	if profile == "" {
		return ErrEmptyProfile
	}

	err := s.ring.Remove(keyPrefix + profile)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("sessionstore: removing keyring item for %s: %w", profile, err)
	}

	return nil
}
