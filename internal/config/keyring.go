package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name API keys are stored under.
	KeyringService = "cloudtruth"
	// KeyringMarker in a profile's api_key means the key lives in the keyring.
	KeyringMarker = "keyring"
)

// ErrKeyringItemNotFound is returned when no key is stored for a profile.
var ErrKeyringItemNotFound = errors.New("no API key stored in the keyring")

// StoreAPIKey saves key for profile in the OS keyring.
func StoreAPIKey(profile, key string) error {
	if err := keyring.Set(KeyringService, profile, key); err != nil {
		return fmt.Errorf("failed to store API key for profile '%s': %w", profile, err)
	}
	return nil
}

// LoadAPIKey reads the key stored for profile.
func LoadAPIKey(profile string) (string, error) {
	secret, err := keyring.Get(KeyringService, profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrKeyringItemNotFound
		}
		return "", err
	}
	return secret, nil
}

// DeleteAPIKey removes the key stored for profile. A missing entry is not an
// error.
func DeleteAPIKey(profile string) error {
	if err := keyring.Delete(KeyringService, profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
