//go:build darwin

package internal

import (
	"fmt"

	"github.com/keybase/go-keychain"
)

// GetAPIKey resolves the IBM Cloud API key from the flag, the environment or
// the macOS Keychain, in that order.
func GetAPIKey(explicit string) (string, error) {
	return lookupAPIKey(explicit, getKeychainAPIKey)
}

// StoreAPIKey saves the API key in the login keychain, replacing any previous one.
func StoreAPIKey(apiKey string) error {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(KeychainService)
	item.SetAccount(KeychainAccount)
	item.SetLabel("blueterm IBM Cloud API key")
	item.SetData([]byte(apiKey))
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	// Remove existing if any
	keychain.DeleteItem(item)

	if err := keychain.AddItem(item); err != nil {
		return fmt.Errorf("failed to save to keychain: %w", err)
	}
	return nil
}

// DeleteAPIKey removes the stored API key.
func DeleteAPIKey() error {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(KeychainService)
	item.SetAccount(KeychainAccount)
	if err := keychain.DeleteItem(item); err != nil && err != keychain.ErrorItemNotFound {
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return nil
}

func getKeychainAPIKey() (string, error) {
	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(KeychainService)
	query.SetAccount(KeychainAccount)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return "", err
	} else if len(results) != 1 {
		return "", fmt.Errorf("API key not found in keychain")
	}

	return string(results[0].Data), nil
}
