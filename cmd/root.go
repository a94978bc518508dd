package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/insight-dash/internal"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	configPath  string
	backendFlag string
	storeFlag   string
	redisFlag   string
	version     string = "dev"
	commit      string = "unknown"
	date        string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insight-dash",
	Short: "Terminal client for the warehouse insight dashboard",
	Long: `A terminal client for the warehouse insight dashboard.

Connect a warehouse account, trigger an analysis run, browse the results
(KPIs, charts, data quality findings, recommended transformations) and talk
to the data engineering assistant. All analysis happens in the backend service.

Quick Start:
  insight-dash login                     # Start a session
  insight-dash connect                   # Configure a connection and run an analysis
  insight-dash report                    # Show the latest analysis
  insight-dash history                   # List previous runs
  insight-dash chat                      # Ask the assistant
  insight-dash export --format md        # Export the latest analysis as Markdown`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.insight-dash/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Analysis service URL (default "+internal.DefaultBackendURL+")")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Session store database file (\"memory\" keeps the session for this run only)")
	rootCmd.PersistentFlags().StringVar(&redisFlag, "redis", "", "Keep the session in Redis instead of the local store (redis://...)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
