package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WizardStep is a state of the connection wizard
type WizardStep int

const (
	StepConfiguring WizardStep = iota
	StepListingTables
	StepTableSelection
	StepSubmitting
	StepDone
	StepError
)

func (s WizardStep) String() string {
	switch s {
	case StepConfiguring:
		return "configuring"
	case StepListingTables:
		return "listing-tables"
	case StepTableSelection:
		return "table-selection"
	case StepSubmitting:
		return "submitting"
	case StepDone:
		return "done"
	case StepError:
		return "error"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

const (
	msgInvalidKeyFile   = "Please upload a .pem file"
	msgNoTableSelected  = "Please select at least one table"
	msgListTablesFailed = "Failed to connect to the warehouse. Please check your credentials."
	msgAnalysisFailed   = "Failed to run analysis. Please try again."
)

// ErrWrongStep is returned when an action is not valid in the wizard's current step
var ErrWrongStep = errors.New("action not available in current step")

// ConnectionWizard drives configure -> list tables -> select -> submit.
// Credentials live only in memory and are dropped on Close or completion.
type ConnectionWizard struct {
	backend WarehouseBackend
	onDone  func(ctx context.Context)

	mu       sync.Mutex
	step     WizardStep
	resumeTo WizardStep
	config   ConnectionConfig
	tables   []string
	selected map[string]bool
	message  string
	epoch    uint64 // bumped by Close and completion so in-flight results are dropped
}

// NewConnectionWizard creates a wizard in the Configuring step. onDone runs
// after a successful analysis, typically to refresh the current report.
func NewConnectionWizard(backend WarehouseBackend, onDone func(ctx context.Context)) *ConnectionWizard {
	return &ConnectionWizard{
		backend:  backend,
		onDone:   onDone,
		selected: make(map[string]bool),
	}
}

// Step returns the current step
func (w *ConnectionWizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Message returns the last user-facing error, or ""
func (w *ConnectionWizard) Message() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}

// Config returns a copy of the current connection settings
func (w *ConnectionWizard) Config() ConnectionConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyConfig(w.config)
}

// Tables returns the candidate tables from the last successful listing
func (w *ConnectionWizard) Tables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.tables...)
}

// Selected returns the selected tables in candidate-list order
func (w *ConnectionWizard) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedLocked()
}

// IsSelected reports whether table is selected
func (w *ConnectionWizard) IsSelected(table string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected[table]
}

// SetConfig replaces the connection fields. A nil PrivateKey keeps the key
// already attached.
func (w *ConnectionWizard) SetConfig(cfg ConnectionConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepConfiguring {
		return fmt.Errorf("%w: set config while %s", ErrWrongStep, w.step)
	}
	key := w.config.PrivateKey
	w.config = copyConfig(cfg)
	if w.config.PrivateKey == nil {
		w.config.PrivateKey = key
	}
	w.message = ""
	return nil
}

// AttachPrivateKey sets the key file. Only .pem files are accepted.
func (w *ConnectionWizard) AttachPrivateKey(name string, data []byte) error {
	if !strings.HasSuffix(strings.ToLower(name), ".pem") {
		w.setMessage(msgInvalidKeyFile)
		return &ValidationError{Field: "private_key", Msg: msgInvalidKeyFile}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepConfiguring {
		return fmt.Errorf("%w: attach key while %s", ErrWrongStep, w.step)
	}
	w.config.PrivateKey = &KeyFile{Name: name, Data: append([]byte(nil), data...)}
	w.message = ""
	LogDebug("Wizard: private key attached (%s, %d bytes)", name, len(data))
	return nil
}

// LoadPrivateKey reads a key file from disk and attaches it
func (w *ConnectionWizard) LoadPrivateKey(path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".pem") {
		w.setMessage(msgInvalidKeyFile)
		return &ValidationError{Field: "private_key", Msg: msgInvalidKeyFile}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	return w.AttachPrivateKey(filepath.Base(path), data)
}

// FetchTables validates the configuration and asks the backend for the
// candidate tables. Validation failures never reach the network.
func (w *ConnectionWizard) FetchTables(ctx context.Context) error {
	w.mu.Lock()
	if w.step != StepConfiguring {
		step := w.step
		w.mu.Unlock()
		if step == StepListingTables || step == StepSubmitting {
			return ErrBusy
		}
		return fmt.Errorf("%w: list tables while %s", ErrWrongStep, step)
	}
	if err := w.config.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			w.message = verr.Msg
		}
		w.mu.Unlock()
		LogDebug("Wizard: configuration incomplete")
		return err
	}
	cfg := copyConfig(w.config)
	epoch := w.epoch
	w.transitionLocked(StepListingTables)
	w.mu.Unlock()

	tables, err := w.backend.ListTables(ctx, cfg)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.epoch != epoch {
		LogDebug("Wizard: dropping table list for a closed session")
		return context.Canceled
	}
	if err != nil {
		LogWarn("Listing tables failed: %v", err)
		w.resumeTo = StepConfiguring
		w.message = msgListTablesFailed
		w.transitionLocked(StepError)
		return err
	}

	w.tables = uniqueTables(tables)
	w.selected = make(map[string]bool)
	w.message = ""
	w.transitionLocked(StepTableSelection)
	LogDebug("Wizard: %d candidate tables", len(w.tables))
	return nil
}

// Toggle flips the selection of one candidate table
func (w *ConnectionWizard) Toggle(table string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepTableSelection {
		return fmt.Errorf("%w: toggle while %s", ErrWrongStep, w.step)
	}
	if !containsString(w.tables, table) {
		return &ValidationError{Field: "table", Msg: fmt.Sprintf("unknown table %q", table)}
	}
	if w.selected[table] {
		delete(w.selected, table)
	} else {
		w.selected[table] = true
	}
	return nil
}

// ToggleSelectAll selects every candidate unless all are already selected,
// in which case it clears the selection
func (w *ConnectionWizard) ToggleSelectAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepTableSelection {
		return fmt.Errorf("%w: select all while %s", ErrWrongStep, w.step)
	}
	if len(w.selected) == len(w.tables) {
		w.selected = make(map[string]bool)
		return nil
	}
	w.selected = make(map[string]bool, len(w.tables))
	for _, t := range w.tables {
		w.selected[t] = true
	}
	return nil
}

// Back returns from table selection to configuration, keeping the settings
func (w *ConnectionWizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepTableSelection {
		return fmt.Errorf("%w: back while %s", ErrWrongStep, w.step)
	}
	w.tables = nil
	w.selected = make(map[string]bool)
	w.message = ""
	w.transitionLocked(StepConfiguring)
	return nil
}

// RunAnalysis submits the selection. On success the wizard resets and the
// done callback runs; on failure the selection is kept for a retry.
func (w *ConnectionWizard) RunAnalysis(ctx context.Context) error {
	w.mu.Lock()
	if w.step != StepTableSelection {
		step := w.step
		w.mu.Unlock()
		if step == StepListingTables || step == StepSubmitting {
			return ErrBusy
		}
		return fmt.Errorf("%w: run analysis while %s", ErrWrongStep, step)
	}
	tables := w.selectedLocked()
	if len(tables) == 0 {
		w.message = msgNoTableSelected
		w.mu.Unlock()
		return &ValidationError{Field: "tables", Msg: msgNoTableSelected}
	}
	cfg := copyConfig(w.config)
	epoch := w.epoch
	w.message = ""
	w.transitionLocked(StepSubmitting)
	w.mu.Unlock()

	LogInfo("Running analysis on %d table(s)", len(tables))
	err := w.backend.RunAnalysis(ctx, cfg, tables)

	w.mu.Lock()
	if w.epoch != epoch {
		w.mu.Unlock()
		LogDebug("Wizard: dropping analysis result for a closed session")
		return context.Canceled
	}
	if err != nil {
		LogWarn("Analysis request failed: %v", err)
		w.message = msgAnalysisFailed
		w.transitionLocked(StepTableSelection)
		w.mu.Unlock()
		return err
	}
	w.resetLocked()
	w.transitionLocked(StepDone)
	onDone := w.onDone
	w.mu.Unlock()

	if onDone != nil {
		onDone(ctx)
	}
	return nil
}

// Resume leaves the Error step, returning to where the failure happened
func (w *ConnectionWizard) Resume() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepError {
		return fmt.Errorf("%w: resume while %s", ErrWrongStep, w.step)
	}
	w.transitionLocked(w.resumeTo)
	return nil
}

// Close discards everything, from any step. Results of requests still in
// flight are ignored when they arrive.
func (w *ConnectionWizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.transitionLocked(StepConfiguring)
}

func (w *ConnectionWizard) resetLocked() {
	w.epoch++
	w.config = ConnectionConfig{}
	w.tables = nil
	w.selected = make(map[string]bool)
	w.message = ""
	w.resumeTo = StepConfiguring
}

func (w *ConnectionWizard) transitionLocked(to WizardStep) {
	if w.step != to {
		LogDebug("Wizard: %s -> %s", w.step, to)
	}
	w.step = to
}

func (w *ConnectionWizard) selectedLocked() []string {
	out := make([]string, 0, len(w.selected))
	for _, t := range w.tables {
		if w.selected[t] {
			out = append(out, t)
		}
	}
	return out
}

func (w *ConnectionWizard) setMessage(msg string) {
	w.mu.Lock()
	w.message = msg
	w.mu.Unlock()
}

func copyConfig(cfg ConnectionConfig) ConnectionConfig {
	if cfg.PrivateKey != nil {
		key := *cfg.PrivateKey
		key.Data = append([]byte(nil), key.Data...)
		cfg.PrivateKey = &key
	}
	return cfg
}

func uniqueTables(tables []string) []string {
	seen := make(map[string]bool, len(tables))
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
