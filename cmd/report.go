package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iksnae/insight-dash/internal"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [load-id]",
	Short: "Show the latest analysis or a previous run",
	Long: `Show the latest analysis, or the run with the given load id.

Use 'insight-dash history' to list previous runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		vm := internal.NewReportViewModel(app.Client)
		ctx, cancel := app.requestContext(commandContext(cmd))
		defer cancel()

		var (
			report *internal.AnalysisReport
			err    error
		)
		msg := "Loading latest analysis"
		if len(args) == 1 {
			msg = "Loading run " + args[0]
		}
		err = app.Printer.RunWithSpinner(ctx, msg, func(ctx context.Context) error {
			var fetchErr error
			if len(args) == 1 {
				report, fetchErr = vm.FetchReportByID(ctx, args[0])
			} else {
				report, fetchErr = vm.FetchCurrentReport(ctx)
			}
			if errors.Is(fetchErr, internal.ErrNoReport) {
				return nil
			}
			return fetchErr
		})
		if err != nil {
			return userError(err)
		}

		if vm.State().Phase == internal.PhaseEmpty || report == nil {
			if len(args) == 1 {
				return fmt.Errorf("report %s not found", args[0])
			}
			app.Printer.Warning("No reports found. Run 'insight-dash connect' to analyse a warehouse.")
			return nil
		}

		r := &reportRenderer{out: cmd.OutOrStdout(), styled: app.Printer.Styled}
		r.Render(report)
		return nil
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous analysis runs",
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		vm := internal.NewReportViewModel(app.Client)
		ctx, cancel := app.requestContext(commandContext(cmd))
		defer cancel()

		runs, err := vm.FetchHistory(ctx)
		if err != nil {
			return userError(err)
		}
		if len(runs) == 0 {
			app.Printer.Info("No previous runs")
			return nil
		}
		printHistory(cmd.OutOrStdout(), runs)
		return nil
	}),
}

func printHistory(out io.Writer, runs []internal.HistoryEntry) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOAD ID\tLOADED AT")
	for _, run := range runs {
		when := run.LoadDatetime
		if t, ok := run.Time(); ok {
			when = formatTime(t)
		}
		fmt.Fprintf(tw, "%s\t%s\n", run.LoadID, when)
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(reportCmd, historyCmd)
}
