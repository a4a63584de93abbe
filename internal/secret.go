package internal

import (
	"errors"
	"os"
	"strings"
)

const (
	KeychainService = "blueterm"
	KeychainAccount = "ibmcloud-api-key"
)

// APIKeyEnvVars are checked in order for the API key.
var APIKeyEnvVars = []string{"IBMCLOUD_API_KEY", "IC_API_KEY"}

// ErrNoAPIKey is returned when no source provides an API key.
var ErrNoAPIKey = errors.New("no IBM Cloud API key found (use --api-key, IBMCLOUD_API_KEY or 'blueterm secret set')")

// lookupAPIKey resolves the key from:
// 1. Explicit flag/argument (passed in)
// 2. Environment variable (IBMCLOUD_API_KEY, IC_API_KEY)
// 3. System Keychain (macOS only)
func lookupAPIKey(explicit string, fromKeychain func() (string, error)) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}

	for _, name := range APIKeyEnvVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key, nil
		}
	}

	if fromKeychain != nil {
		key, err := fromKeychain()
		if err == nil && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), nil
		}
	}

	return "", ErrNoAPIKey
}

// MaskSecret keeps the first and last four characters of s.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "..." + s[len(s)-4:]
}
