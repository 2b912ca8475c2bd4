package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// checkKeyringAvailable tests if the system keyring accepts writes
func checkKeyringAvailable() bool {
	testKey := serviceName + "-probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

func saveToKeyring(service, profile, data string) error {
	if err := keyring.Set(service, profile, data); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

func loadFromKeyring(service, profile string) (string, error) {
	data, err := keyring.Get(service, profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("credentials not found for profile '%s'", profile)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credentials from keyring: %w", err)
	}
	return data, nil
}

func deleteFromKeyring(service, profile string) error {
	err := keyring.Delete(service, profile)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}
