//go:build !darwin

package internal

import "fmt"

// GetAPIKey stub for non-macOS: flag or environment only.
func GetAPIKey(explicit string) (string, error) {
	return lookupAPIKey(explicit, getKeychainAPIKey)
}

// StoreAPIKey stub for non-macOS
func StoreAPIKey(apiKey string) error {
	return errKeychainUnsupported
}

// DeleteAPIKey stub for non-macOS
func DeleteAPIKey() error {
	return errKeychainUnsupported
}

var errKeychainUnsupported = fmt.Errorf("keychain integration is only supported on macOS")

func getKeychainAPIKey() (string, error) {
	return "", errKeychainUnsupported
}
