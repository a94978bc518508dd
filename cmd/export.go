package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/iksnae/insight-dash/internal"
	"github.com/iksnae/insight-dash/internal/export"
	"github.com/spf13/cobra"
)

const defaultExportDir = "./exports"

var (
	format       string
	outputDir    string
	exportID     string
	exportAll    bool
	exportStdout bool
	clearArchive bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export analysis reports to file",
	Long: `Export analysis reports to various formats (jsonl, md, yaml, json).

By default the latest analysis is exported. Use --id to export a previous
run or --all to export every run in the history. Exported files are listed
in index.yaml inside the output directory.
Use 'insight-dash history' to see available load ids.`,
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}
		if exportAll && exportID != "" {
			return &internal.ValidationError{Msg: "--id and --all cannot be combined"}
		}

		ctx := commandContext(cmd)
		reports, err := collectReports(ctx, app)
		if err != nil {
			return err
		}

		if exportStdout {
			for _, report := range reports {
				if err := exporter.ExportReport(report, cmd.OutOrStdout()); err != nil {
					return &internal.ExportError{Format: format, Err: err}
				}
			}
			return nil
		}

		archive, err := openArchive(app, outputDir)
		if err != nil {
			return err
		}
		if clearArchive {
			if err := archive.Clear(); err != nil {
				internal.LogWarn("Failed to clear archive: %v", err)
			} else {
				internal.LogInfo("Archive cleared")
			}
		}

		exported := 0
		err = app.Printer.RunWithSpinner(ctx, fmt.Sprintf("Exporting %d report(s) to %s", len(reports), archive.Dir()), func(ctx context.Context) error {
			for _, report := range reports {
				path, err := archive.SaveReport(report, format, exporter.Extension(), func(w io.Writer) error {
					return exporter.ExportReport(report, w)
				})
				if err != nil {
					internal.LogError("Failed to export %s: %v", report.Meta.LoadID, err)
					continue
				}
				internal.LogDebug("Exported %s to %s", report.Meta.LoadID, path)
				exported++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if exported < len(reports) {
			return fmt.Errorf("exported %d of %d report(s)", exported, len(reports))
		}

		app.Printer.Success("Export complete: %d report(s) exported to %s", exported, archive.Dir())
		return nil
	}),
}

// collectReports fetches what the flags ask for
func collectReports(ctx context.Context, app *App) ([]*internal.AnalysisReport, error) {
	vm := internal.NewReportViewModel(app.Client)

	if !exportAll {
		var report *internal.AnalysisReport
		err := app.Printer.RunWithSpinner(ctx, "Fetching report", func(ctx context.Context) error {
			ctx, cancel := app.requestContext(ctx)
			defer cancel()
			var err error
			if exportID != "" {
				report, err = vm.FetchReportByID(ctx, exportID)
			} else {
				report, err = vm.FetchCurrentReport(ctx)
			}
			return err
		})
		if errors.Is(err, internal.ErrNoReport) {
			if exportID != "" {
				return nil, fmt.Errorf("report %s not found (use 'insight-dash history' to see available runs)", exportID)
			}
			return nil, errors.New("no reports found")
		}
		if err != nil {
			return nil, userError(err)
		}
		return []*internal.AnalysisReport{report}, nil
	}

	var runs []internal.HistoryEntry
	steps := []internal.ProgressStep{
		{
			Message: "Loading run history",
			Fn: func(ctx context.Context) error {
				ctx, cancel := app.requestContext(ctx)
				defer cancel()
				var err error
				runs, err = vm.FetchHistory(ctx)
				return err
			},
		},
	}
	if err := app.Printer.RunSteps(ctx, steps); err != nil {
		return nil, userError(err)
	}

	reports := make([]*internal.AnalysisReport, 0, len(runs))
	steps = steps[:0]
	for _, run := range runs {
		run := run
		steps = append(steps, internal.ProgressStep{
			Message: "Fetching " + run.LoadID,
			Fn: func(ctx context.Context) error {
				ctx, cancel := app.requestContext(ctx)
				defer cancel()
				report, err := vm.FetchReportByID(ctx, run.LoadID)
				if errors.Is(err, internal.ErrNoReport) {
					internal.LogWarn("Run %s has no report, skipping", run.LoadID)
					return nil
				}
				if err != nil {
					return err
				}
				reports = append(reports, report)
				return nil
			},
		})
	}
	if err := app.Printer.RunSteps(ctx, steps); err != nil {
		return nil, userError(err)
	}
	if len(reports) == 0 {
		return nil, errors.New("no reports found")
	}
	return reports, nil
}

// openArchive opens the archive at dir, stamped with the backend it exports from
func openArchive(app *App, dir string) (*internal.ReportArchive, error) {
	if dir == "" {
		dir = defaultExportDir
	}
	archive := internal.NewReportArchive(dir)
	if err := archive.SetBackend(app.Client.BaseURL()); err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", dir, err)
	}
	return archive, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", defaultExportDir, "Output directory")
	exportCmd.Flags().StringVar(&exportID, "id", "", "Export the run with this load id")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every run in the history")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write to stdout instead of the output directory")
	exportCmd.Flags().BoolVar(&clearArchive, "clear-archive", false, "Remove previously exported files listed in the index first")
}
