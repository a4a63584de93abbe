package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greyhoundforty/blueterm/internal"
	"github.com/greyhoundforty/blueterm/internal/config"
)

func printLogo() {
	// Gradient colors (IBM blue -> cyan)
	// Blue: 15, 98, 254
	// Cyan: 8, 189, 186

	ascii := []string{
		`  ██████╗ ██╗     ██╗   ██╗███████╗████████╗███████╗██████╗ ███╗   ███╗`,
		`  ██╔══██╗██║     ██║   ██║██╔════╝╚══██╔══╝██╔════╝██╔══██╗████╗ ████║`,
		`  ██████╔╝██║     ██║   ██║█████╗     ██║   █████╗  ██████╔╝██╔████╔██║`,
		`  ██╔══██╗██║     ██║   ██║██╔══╝     ██║   ██╔══╝  ██╔══██╗██║╚██╔╝██║`,
		`  ██████╔╝███████╗╚██████╔╝███████╗   ██║   ███████╗██║  ██║██║ ╚═╝ ██║`,
		`  ╚═════╝ ╚══════╝ ╚═════╝ ╚══════╝   ╚═╝   ╚══════╝╚═╝  ╚═╝╚═╝     ╚═╝`,
	}

	fmt.Println()
	for _, line := range ascii {
		runes := []rune(line)
		for i, char := range runes {
			ratio := float64(i) / float64(len(runes))
			r := int(15*(1-ratio) + 8*ratio)
			g := int(98*(1-ratio) + 189*ratio)
			b := int(254*(1-ratio) + 186*ratio)
			fmt.Printf("\x1b[38;2;%d;%d;%dm%c\x1b[0m", r, g, b, char)
		}
		fmt.Println()
	}
	fmt.Println("\x1b[1m  A terminal dashboard for IBM Cloud VPC instances, clusters and Code Engine\x1b[0m")
	fmt.Println()
}

var (
	flagAPIKey  string
	flagRegion  string
	flagRefresh int
	flagFamily  string
	flagDebug   bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "blueterm",
	Short: "blueterm is a terminal dashboard for IBM Cloud resources",
	Long: `blueterm browses and manages IBM Cloud resources across regions from one
authenticated session: VPC virtual server instances, Kubernetes and OpenShift
clusters, and Code Engine projects.

Running blueterm without a subcommand opens the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(debugEnabled())
		if err != nil {
			return err
		}
		logger = l
		// Non-blocking; the result is printed after the command finishes.
		updates = internal.CheckForUpdates()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
		printUpdateNotice()
	},
	RunE: runDashboard,
}

var updates <-chan internal.Update

func printUpdateNotice() {
	if updates == nil {
		return
	}
	select {
	case u, ok := <-updates:
		if ok {
			fmt.Fprintln(os.Stderr, u.String())
		}
	default:
	}
}

func debugEnabled() bool {
	if flagDebug {
		return true
	}
	v := os.Getenv(config.EnvDebug)
	return v == "1" || v == "true"
}

// newLogger writes JSON logs to ~/.blueterm/blueterm.log; the terminal
// belongs to the dashboard.
func newLogger(debug bool) (*zap.Logger, error) {
	dir, err := internal.AppDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "blueterm.log")

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return l.With(zap.String("version", internal.CurrentVersion)), nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagAPIKey, "api-key", "", "IBM Cloud API key (default: IBMCLOUD_API_KEY or keychain)")
	pf.StringVarP(&flagRegion, "region", "r", "", "initial region (default: last used or us-south)")
	pf.StringVarP(&flagFamily, "type", "t", "", "resource type: vpc, iks, roks or ce")
	pf.IntVar(&flagRefresh, "refresh", 0, "auto-refresh interval in seconds (default 30)")
	pf.BoolVar(&flagDebug, "debug", false, "debug logging to ~/.blueterm/blueterm.log")
}

// Execute runs the CLI
func Execute() {
	if len(os.Args) > 1 && os.Args[1] == "help" {
		printLogo()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
