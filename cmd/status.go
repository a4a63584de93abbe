package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/greyhoundforty/blueterm/internal"
)

var statusJSON bool

type sessionStatus struct {
	AccountID     string    `json:"account_id"`
	Region        string    `json:"region"`
	Type          string    `json:"type"`
	RefreshEvery  string    `json:"refresh_interval"`
	TokenExpires  time.Time `json:"token_expires"`
	TokenRemains  string    `json:"token_remaining"`
	APIKey        string    `json:"api_key"`
	Preferences   string    `json:"preferences_file"`
	Theme         string    `json:"theme"`
	AutoRefreshOn bool      `json:"auto_refresh"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Authenticate and show the account, token expiry and settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := oneShot(cmd.Context())
		if err != nil {
			return err
		}
		defer a.coord.Close()

		account, err := a.store.AccountID()
		if err != nil {
			return err
		}
		now := time.Now()
		st := sessionStatus{
			AccountID:     account,
			Region:        a.cfg.DefaultRegion,
			Type:          a.cfg.Family.Label(),
			RefreshEvery:  a.cfg.RefreshInterval.String(),
			TokenExpires:  a.store.Expiry(),
			TokenRemains:  internal.FormatRemaining(a.store.Expiry(), now),
			APIKey:        internal.MaskSecret(a.cfg.APIKey),
			Preferences:   internal.PreferencesPath(),
			Theme:         a.prefs.Theme,
			AutoRefreshOn: a.prefs.AutoRefreshEnabled,
		}

		if statusJSON {
			b, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}

		fmt.Println("✅ Authenticated")
		fmt.Printf("  %-14s %s\n", "Account", st.AccountID)
		fmt.Printf("  %-14s %s\n", "API key", st.APIKey)
		fmt.Printf("  %-14s %s (%s)\n", "Token expires", internal.FormatLocal(st.TokenExpires), st.TokenRemains)
		fmt.Printf("  %-14s %s\n", "Region", st.Region)
		fmt.Printf("  %-14s %s\n", "Type", st.Type)
		fmt.Printf("  %-14s every %s (%s)\n", "Auto-refresh", st.RefreshEvery, onOff(st.AutoRefreshOn))
		fmt.Printf("  %-14s %s\n", "Theme", st.Theme)
		fmt.Printf("  %-14s %s\n", "Preferences", st.Preferences)
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(statusCmd)
}
