package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/greyhoundforty/blueterm/internal"
)

var versionOffline bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information and check for a newer release",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blueterm %s (%s, %s/%s)\n", internal.CurrentVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		// The explicit check below replaces the background notice.
		updates = nil
		if versionOffline {
			return
		}

		latest, url, err := internal.FetchLatestVersion()
		if err != nil {
			fmt.Printf("Unable to check for updates: %v\n", err)
			return
		}
		if internal.IsNewer(latest, internal.CurrentVersion) {
			fmt.Println(internal.Update{Current: internal.CurrentVersion, Latest: latest, URL: url})
			return
		}
		fmt.Println("✅ You're running the latest version")
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionOffline, "offline", false, "skip the release check")
	rootCmd.AddCommand(versionCmd)
}
