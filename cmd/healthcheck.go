package cmd

import (
	"context"
	"fmt"

	"github.com/iksnae/insight-dash/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckVerbose bool
)

// keyLister is implemented by stores that can enumerate their keys
type keyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check configuration, session store and backend reachability",
	Long: `Check the health of insight-dash by verifying:
  • Configuration loading
  • Session store access
  • Analysis service reachability
  • Voice capabilities

This command is useful for debugging connection issues before running an analysis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 Insight Dash Health Check"))
		fmt.Fprintln(out)

		// Step 1: Load configuration and open the store
		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		app, err := newApp(cmd)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to load configuration or session store:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		defer app.Close()
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Backend: %s\n", app.Config.BackendURL)
			fmt.Fprintf(out, "   Timeout: %s (analysis %s)\n", app.Config.Timeout, app.Config.AnalysisTimeout)
			if app.Config.RateLimit > 0 {
				fmt.Fprintf(out, "   Rate limit: %g request(s)/s\n", app.Config.RateLimit)
			}
		}
		fmt.Fprintln(out)

		// Step 2: Session store
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking session store..."))
		if app.Config.RedisURL != "" {
			fmt.Fprintln(out, successStyle.Render("✅ Redis session store reachable"))
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Session store opened"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Database: %s\n", app.Config.StorePath)
				if lister, ok := app.kv.(keyLister); ok {
					if keys, err := lister.Keys(commandContext(cmd), app.Config.KeyPrefix); err == nil {
						fmt.Fprintf(out, "   Stored keys: %d under %q\n", len(keys), app.Config.KeyPrefix)
					}
				}
			}
		}
		if sess := app.Store.Current(); sess != nil {
			fmt.Fprintf(out, "   Logged in as %s\n", sess.Email)
		} else {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Not logged in"))
		}
		fmt.Fprintln(out)

		// Step 3: Backend
		fmt.Fprintln(out, infoStyle.Render("Step 3: Contacting analysis service..."))
		ctx, cancel := app.requestContext(commandContext(cmd))
		defer cancel()
		info, pingErr := app.Client.Ping(ctx)
		if pingErr != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Analysis service unreachable"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   %v\n", pingErr)
			}
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Analysis service reachable"))
			if info.Service != "" {
				fmt.Fprintf(out, "   Service: %s\n", info.Service)
			}
			if healthcheckVerbose {
				for _, ep := range info.Endpoints {
					fmt.Fprintf(out, "   • %s\n", ep)
				}
			}
		}
		fmt.Fprintln(out)

		// Step 4: Voice
		fmt.Fprintln(out, infoStyle.Render("Step 4: Checking voice capabilities..."))
		if _, err := internal.DetectTTS(app.Config.TTSCommand); err != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Voice output unavailable"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   %v\n", err)
			}
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Voice output available"))
		}
		if _, err := internal.DetectSTT(app.Config.STTCommand); err != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Voice input unavailable"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   %v\n", err)
			}
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Voice input available"))
		}
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if pingErr != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintf(out, "   • Cannot reach %s\n", app.Client.BaseURL())
			fmt.Fprintln(out, "   • Make sure the backend is running or pass --backend")
			return fmt.Errorf("health check failed: backend unreachable")
		}
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		fmt.Fprintln(out, successStyle.Render("   • Session store: Available"))
		fmt.Fprintln(out, successStyle.Render("   • Backend: Reachable"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVarP(&healthcheckVerbose, "verbose", "v", false, "Show detailed diagnostic information")
}
