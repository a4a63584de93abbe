package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greyhoundforty/blueterm/internal"
	"github.com/greyhoundforty/blueterm/internal/iam"
)

var (
	secretPlain  bool
	secretVerify bool
	secretReveal bool
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the IBM Cloud API key in the keychain",
	Long:  `Store the IBM Cloud API key in your macOS Keychain so blueterm starts without --api-key or IBMCLOUD_API_KEY.`,
}

var secretSetCmd = &cobra.Command{
	Use:   "set [api-key]",
	Short: "Save an API key to the keychain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !internal.IsMacOS() {
			return errors.New("keychain integration is only available on macOS; use IBMCLOUD_API_KEY instead")
		}

		var key string
		if len(args) > 0 {
			key = args[0]
		} else {
			var err error
			key, err = readAPIKey("Enter IBM Cloud API key", secretPlain)
			if err != nil {
				return err
			}
		}
		if key == "" {
			return errors.New("API key cannot be empty")
		}

		if secretVerify {
			if _, err := iam.NewClient(iam.WithClientLogger(logger)).Exchange(cmd.Context(), key); err != nil {
				return fmt.Errorf("API key was rejected: %w", err)
			}
		}

		if err := internal.StoreAPIKey(key); err != nil {
			return fmt.Errorf("failed to store API key: %w", err)
		}
		fmt.Printf("✅ API key %s saved to Keychain\n", internal.MaskSecret(key))
		return nil
	},
}

var secretShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which API key blueterm will use",
	Long:  "Show the API key blueterm resolves from --api-key, the environment or the keychain. Keychain access may prompt for Touch ID.",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := internal.GetAPIKey(flagAPIKey)
		if err != nil {
			return err
		}
		if secretReveal {
			fmt.Println(key)
			return nil
		}
		fmt.Println("🔐", internal.MaskSecret(key))
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the API key from the keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.DeleteAPIKey(); err != nil {
			return fmt.Errorf("failed to delete API key: %w", err)
		}
		fmt.Println("🗑️  API key removed from Keychain")
		return nil
	},
}

func init() {
	secretSetCmd.Flags().BoolVar(&secretPlain, "plain", false, "read the key without the interactive prompt")
	secretSetCmd.Flags().BoolVar(&secretVerify, "verify", true, "exchange the key for a token before saving it")
	secretShowCmd.Flags().BoolVar(&secretReveal, "reveal", false, "print the full key")

	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretShowCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}
