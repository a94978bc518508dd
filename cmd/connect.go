package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iksnae/insight-dash/internal"
	"github.com/spf13/cobra"
)

var (
	connAccount    string
	connUser       string
	connRole       string
	connWarehouse  string
	connDatabase   string
	connSchema     string
	connKeyPath    string
	connPassphrase string
	connTables     []string
	connAllTables  bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Configure a warehouse connection and run an analysis",
	Long: `Configure a warehouse connection, pick the tables to analyse and start an
analysis run. When the run completes the latest report is shown.

Values not given as flags are prompted for. Table selection accepts numbers
or names separated by commas, 'all' to toggle every table, 'back' to edit
the connection again and an empty line to start the run.

Credentials and the private key are only held for the duration of the command.`,
	RunE: authenticated(func(cmd *cobra.Command, args []string, app *App) error {
		vm := internal.NewReportViewModel(app.Client)
		var refreshErr error
		wizard := internal.NewConnectionWizard(app.Client, func(ctx context.Context) {
			refreshErr = vm.Refresh(ctx)
		})
		defer wizard.Close()

		s := &connectSession{
			cmd:     cmd,
			app:     app,
			wizard:  wizard,
			prompt:  newPrompter(cmd),
			initial: connectionFromFlags(),
		}
		defer s.prompt.Close()

		if err := s.run(commandContext(cmd)); err != nil {
			return err
		}

		app.Printer.Success("Analysis complete")
		if refreshErr != nil {
			app.Printer.Warning("Could not load the new report: %v", userError(refreshErr))
			return nil
		}
		state := vm.State()
		if state.Report == nil {
			app.Printer.Warning("The analysis finished but no report is available yet.")
			return nil
		}
		r := &reportRenderer{out: cmd.OutOrStdout(), styled: app.Printer.Styled}
		r.Render(state.Report)
		if len(state.History) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d run(s) in history\n", len(state.History))
		}
		return nil
	}),
}

// connectSession drives the wizard from flags and prompts
type connectSession struct {
	cmd     *cobra.Command
	app     *App
	wizard  *internal.ConnectionWizard
	prompt  prompter
	initial internal.ConnectionConfig

	flagsUsed bool
}

func connectionFromFlags() internal.ConnectionConfig {
	return internal.ConnectionConfig{
		Account:    connAccount,
		User:       connUser,
		Role:       connRole,
		Warehouse:  connWarehouse,
		Database:   connDatabase,
		Schema:     connSchema,
		Passphrase: connPassphrase,
	}
}

func (s *connectSession) run(ctx context.Context) error {
	for {
		switch step := s.wizard.Step(); step {
		case internal.StepConfiguring:
			if err := s.configure(ctx); err != nil {
				return err
			}
		case internal.StepError:
			if err := s.recover(); err != nil {
				return err
			}
		case internal.StepTableSelection:
			if err := s.selectAndRun(ctx); err != nil {
				return err
			}
		case internal.StepDone:
			return nil
		default:
			return fmt.Errorf("unexpected wizard step %s", step)
		}
	}
}

// configure collects the connection fields and lists the tables. The first
// pass starts from the flags; later passes let the user edit what they entered.
func (s *connectSession) configure(ctx context.Context) error {
	cfg := s.wizard.Config()
	keyPath := ""
	editing := s.flagsUsed && s.interactive()
	if !s.flagsUsed {
		cfg = mergeConfig(cfg, s.initial)
		keyPath = connKeyPath
		s.flagsUsed = true
	}

	if err := s.promptFields(&cfg, &keyPath, editing); err != nil {
		return err
	}
	if err := s.wizard.SetConfig(cfg); err != nil {
		return err
	}
	if keyPath != "" {
		if err := s.wizard.LoadPrivateKey(keyPath); err != nil {
			var verr *internal.ValidationError
			if errors.As(err, &verr) {
				s.app.Printer.Error("%s", verr.Msg)
			} else {
				s.app.Printer.Error("%v", err)
			}
			return s.retryOrFail(err)
		}
	}

	err := s.app.Printer.RunWithSpinner(ctx, "Listing tables", func(ctx context.Context) error {
		ctx, cancel := s.app.requestContext(ctx)
		defer cancel()
		return s.wizard.FetchTables(ctx)
	})
	var verr *internal.ValidationError
	if errors.As(err, &verr) {
		s.app.Printer.Error("%s", s.wizard.Message())
		return s.retryOrFail(err)
	}
	if err != nil && s.wizard.Step() != internal.StepError {
		return userError(err)
	}
	return nil
}

// promptFields asks for the connection fields. Without editing only empty
// fields are asked for; an empty answer leaves a field empty and validation
// reports it.
func (s *connectSession) promptFields(cfg *internal.ConnectionConfig, keyPath *string, editing bool) error {
	fields := []struct {
		label string
		value *string
	}{
		{"Account", &cfg.Account},
		{"User", &cfg.User},
		{"Role", &cfg.Role},
		{"Warehouse", &cfg.Warehouse},
		{"Database", &cfg.Database},
		{"Schema", &cfg.Schema},
	}
	for _, f := range fields {
		if *f.value != "" && !editing {
			continue
		}
		v, err := promptDefault(s.prompt, f.label, *f.value)
		if err != nil {
			return err
		}
		*f.value = v
	}

	if *keyPath == "" && (cfg.PrivateKey == nil || editing) {
		current := ""
		if cfg.PrivateKey != nil {
			current = cfg.PrivateKey.Name
		}
		v, err := promptDefault(s.prompt, "Private key file (.pem)", current)
		if err != nil {
			return err
		}
		if v == current {
			return nil
		}
		*keyPath = v
		if v != "" && cfg.Passphrase == "" {
			pass, err := s.prompt.PasswordPrompt("Private key passphrase (optional): ")
			if err != nil {
				return err
			}
			cfg.Passphrase = pass
		}
	}
	return nil
}

// retryOrFail offers another attempt at the configuration on a terminal,
// and gives up with err otherwise
func (s *connectSession) retryOrFail(err error) error {
	if !s.interactive() {
		return err
	}
	answer, perr := s.prompt.Prompt("Edit the connection and try again? [Y/n]: ")
	if perr != nil {
		return err
	}
	if a := strings.ToLower(strings.TrimSpace(answer)); a == "n" || a == "no" {
		return err
	}
	return nil
}

func (s *connectSession) recover() error {
	s.app.Printer.Error("%s", s.wizard.Message())
	if err := s.retryOrFail(errors.New(s.wizard.Message())); err != nil {
		return err
	}
	return s.wizard.Resume()
}

// selectAndRun applies the table selection and submits it
func (s *connectSession) selectAndRun(ctx context.Context) error {
	tables := s.wizard.Tables()
	if len(tables) == 0 {
		return errors.New("no tables are visible with this connection")
	}

	switch {
	case connAllTables:
		if len(s.wizard.Selected()) != len(tables) {
			if err := s.wizard.ToggleSelectAll(); err != nil {
				return err
			}
		}
	case len(connTables) > 0:
		for _, t := range connTables {
			if !s.wizard.IsSelected(t) {
				if err := s.wizard.Toggle(t); err != nil {
					return err
				}
			}
		}
	default:
		back, err := s.pickTables(tables)
		if err != nil {
			return err
		}
		if back {
			return s.wizard.Back()
		}
	}

	err := s.app.Printer.RunWithSpinner(ctx, fmt.Sprintf("Running analysis on %d table(s)", len(s.wizard.Selected())), func(ctx context.Context) error {
		ctx, cancel := s.app.analysisContext(ctx)
		defer cancel()
		return s.wizard.RunAnalysis(ctx)
	})
	if err == nil {
		return nil
	}
	s.app.Printer.Error("%s", s.wizard.Message())
	if !s.interactive() || connAllTables || len(connTables) > 0 {
		return userError(err)
	}
	return nil
}

// pickTables runs the interactive selection. It reports true when the user
// asked to go back to the connection settings.
func (s *connectSession) pickTables(tables []string) (bool, error) {
	out := s.cmd.OutOrStdout()
	for {
		printTableChoices(out, tables, s.wizard)
		line, err := s.prompt.Prompt("Tables (numbers/names, 'all', 'back', Enter to run): ")
		if err != nil {
			return false, err
		}
		line = strings.TrimSpace(line)
		s.prompt.AppendHistory(line)

		switch strings.ToLower(line) {
		case "":
			if len(s.wizard.Selected()) == 0 {
				s.app.Printer.Error("Please select at least one table")
				continue
			}
			return false, nil
		case "back":
			return true, nil
		case "all":
			if err := s.wizard.ToggleSelectAll(); err != nil {
				return false, err
			}
			continue
		}

		for _, item := range strings.Split(line, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			name := item
			if n, err := strconv.Atoi(item); err == nil && n >= 1 && n <= len(tables) {
				name = tables[n-1]
			}
			if err := s.wizard.Toggle(name); err != nil {
				s.app.Printer.Warning("%v", err)
			}
		}
	}
}

func (s *connectSession) interactive() bool {
	_, ok := s.prompt.(*linerPrompter)
	return ok
}

func printTableChoices(out io.Writer, tables []string, w *internal.ConnectionWizard) {
	fmt.Fprintf(out, "\n%d of %d table(s) selected\n", len(w.Selected()), len(tables))
	for i, t := range tables {
		mark := " "
		if w.IsSelected(t) {
			mark = "x"
		}
		fmt.Fprintf(out, "  [%s] %2d. %s\n", mark, i+1, t)
	}
}

// mergeConfig fills the empty fields of cfg from defaults
func mergeConfig(cfg, defaults internal.ConnectionConfig) internal.ConnectionConfig {
	pairs := []struct {
		dst *string
		src string
	}{
		{&cfg.Account, defaults.Account},
		{&cfg.User, defaults.User},
		{&cfg.Role, defaults.Role},
		{&cfg.Warehouse, defaults.Warehouse},
		{&cfg.Database, defaults.Database},
		{&cfg.Schema, defaults.Schema},
		{&cfg.Passphrase, defaults.Passphrase},
	}
	for _, p := range pairs {
		if *p.dst == "" {
			*p.dst = p.src
		}
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(connectCmd)

	f := connectCmd.Flags()
	f.StringVar(&connAccount, "account", "", "Warehouse account identifier")
	f.StringVar(&connUser, "user", "", "Warehouse user")
	f.StringVar(&connRole, "role", "", "Warehouse role")
	f.StringVar(&connWarehouse, "warehouse", "", "Compute warehouse")
	f.StringVar(&connDatabase, "database", "", "Database")
	f.StringVar(&connSchema, "schema", "", "Schema")
	f.StringVar(&connKeyPath, "key", "", "Private key file (.pem)")
	f.StringVar(&connPassphrase, "passphrase", "", "Private key passphrase")
	f.StringSliceVar(&connTables, "tables", nil, "Tables to analyse (comma separated)")
	f.BoolVar(&connAllTables, "all-tables", false, "Analyse every visible table")
}
