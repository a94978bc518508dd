package internal

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/iksnae/insight-dash/testutil"
)

type stubWarehouse struct {
	mu          sync.Mutex
	tables      []string
	listErr     error
	runErr      error
	listCalls   int
	runCalls    int
	lastTables  []string
	beforeReply func()
}

func (s *stubWarehouse) ListTables(ctx context.Context, cfg ConnectionConfig) ([]string, error) {
	s.mu.Lock()
	s.listCalls++
	hook := s.beforeReply
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.tables, s.listErr
}

func (s *stubWarehouse) RunAnalysis(ctx context.Context, cfg ConnectionConfig, tables []string) error {
	s.mu.Lock()
	s.runCalls++
	s.lastTables = tables
	hook := s.beforeReply
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.runErr
}

func configuredWizard(t *testing.T, backend WarehouseBackend, onDone func(context.Context)) *ConnectionWizard {
	t.Helper()
	w := NewConnectionWizard(backend, onDone)
	if err := w.SetConfig(validConnectionConfig()); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	return w
}

func TestWizard_FetchTablesValidation(t *testing.T) {
	fields := []func(*ConnectionConfig){
		func(c *ConnectionConfig) { c.Account = "" },
		func(c *ConnectionConfig) { c.User = "" },
		func(c *ConnectionConfig) { c.Role = "" },
		func(c *ConnectionConfig) { c.Warehouse = "" },
		func(c *ConnectionConfig) { c.Database = "" },
		func(c *ConnectionConfig) { c.Schema = "" },
	}

	for i, unset := range fields {
		backend := &stubWarehouse{tables: []string{"A"}}
		w := NewConnectionWizard(backend, nil)
		cfg := validConnectionConfig()
		unset(&cfg)
		if err := w.SetConfig(cfg); err != nil {
			t.Fatal(err)
		}

		err := w.FetchTables(context.Background())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
		if backend.listCalls != 0 {
			t.Errorf("case %d: backend called %d times", i, backend.listCalls)
		}
		if w.Step() != StepConfiguring {
			t.Errorf("case %d: step = %s, want configuring", i, w.Step())
		}
		if w.Message() == "" {
			t.Errorf("case %d: expected a user-facing message", i)
		}
	}

	// Missing key file
	backend := &stubWarehouse{}
	w := NewConnectionWizard(backend, nil)
	cfg := validConnectionConfig()
	cfg.PrivateKey = nil
	w.SetConfig(cfg)
	if err := w.FetchTables(context.Background()); err == nil || backend.listCalls != 0 {
		t.Errorf("missing key should fail without a request, err=%v calls=%d", err, backend.listCalls)
	}
}

func TestWizard_FetchTablesFailureKeepsConfig(t *testing.T) {
	backend := testutil.NewFakeBackend(t)
	backend.SetStatus("/list-tables", http.StatusInternalServerError)
	client := newTestClient(t, backend)

	w := configuredWizard(t, client, nil)
	err := w.FetchTables(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if w.Step() != StepError {
		t.Fatalf("step = %s, want error", w.Step())
	}
	if w.Message() != msgListTablesFailed {
		t.Errorf("message = %q", w.Message())
	}
	if !reflect.DeepEqual(w.Config(), validConnectionConfig()) {
		t.Errorf("config not preserved: %+v", w.Config())
	}

	if err := w.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if w.Step() != StepConfiguring {
		t.Errorf("step after resume = %s, want configuring", w.Step())
	}

	backend.SetStatus("/list-tables", 0)
	backend.SetTables("A", "B")
	if err := w.FetchTables(context.Background()); err != nil {
		t.Fatalf("retry FetchTables() error = %v", err)
	}
	if w.Step() != StepTableSelection || !reflect.DeepEqual(w.Tables(), []string{"A", "B"}) {
		t.Errorf("unexpected state after retry: %s %v", w.Step(), w.Tables())
	}
}

func TestWizard_SelectAll(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		tables := make([]string, n)
		for i := range tables {
			tables[i] = string(rune('A' + i))
		}
		w := configuredWizard(t, &stubWarehouse{tables: tables}, nil)
		if err := w.FetchTables(context.Background()); err != nil {
			t.Fatal(err)
		}

		w.ToggleSelectAll()
		if got := w.Selected(); !reflect.DeepEqual(got, tables) {
			t.Errorf("n=%d: after select all got %v", n, got)
		}
		w.ToggleSelectAll()
		if got := w.Selected(); len(got) != 0 {
			t.Errorf("n=%d: after second toggle got %v", n, got)
		}

		// One table toggled on: with a single candidate that is already
		// everything, so select-all clears it; otherwise it selects the rest.
		w.Toggle(tables[0])
		w.ToggleSelectAll()
		want := n
		if n == 1 {
			want = 0
		}
		if got := w.Selected(); len(got) != want {
			t.Errorf("n=%d: one selected then select all got %v, want %d tables", n, got, want)
		}
	}
}

func TestWizard_ToggleAndOrder(t *testing.T) {
	w := configuredWizard(t, &stubWarehouse{tables: []string{"C", "A", "B", "A"}}, nil)
	if err := w.FetchTables(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := w.Tables(); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Errorf("duplicates should be dropped, got %v", got)
	}

	w.Toggle("B")
	w.Toggle("C")
	if got := w.Selected(); !reflect.DeepEqual(got, []string{"C", "B"}) {
		t.Errorf("selection should follow candidate order, got %v", got)
	}
	w.Toggle("C")
	if got := w.Selected(); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("toggle twice should deselect, got %v", got)
	}

	var verr *ValidationError
	if err := w.Toggle("Z"); !errors.As(err, &verr) {
		t.Errorf("unknown table should be rejected, got %v", err)
	}
}

func TestWizard_RunAnalysis(t *testing.T) {
	backend := &stubWarehouse{tables: []string{"A", "B"}}
	doneCalls := 0
	w := configuredWizard(t, backend, func(context.Context) { doneCalls++ })
	if err := w.FetchTables(context.Background()); err != nil {
		t.Fatal(err)
	}

	var verr *ValidationError
	if err := w.RunAnalysis(context.Background()); !errors.As(err, &verr) {
		t.Fatalf("empty selection should be a ValidationError, got %v", err)
	}
	if backend.runCalls != 0 {
		t.Fatal("empty selection must not reach the backend")
	}

	w.Toggle("B")
	if err := w.RunAnalysis(context.Background()); err != nil {
		t.Fatalf("RunAnalysis() error = %v", err)
	}
	if !reflect.DeepEqual(backend.lastTables, []string{"B"}) {
		t.Errorf("submitted tables = %v", backend.lastTables)
	}
	if w.Step() != StepDone || doneCalls != 1 {
		t.Errorf("step = %s, done calls = %d", w.Step(), doneCalls)
	}
	if !reflect.DeepEqual(w.Config(), ConnectionConfig{}) || len(w.Tables()) != 0 {
		t.Error("wizard should reset after success")
	}
}

func TestWizard_RunAnalysisFailureKeepsSelection(t *testing.T) {
	backend := &stubWarehouse{tables: []string{"A", "B"}, runErr: &TransportError{Op: "run-analysis", Status: 500}}
	w := configuredWizard(t, backend, func(context.Context) { t.Error("onDone must not run on failure") })
	w.FetchTables(context.Background())
	w.Toggle("A")

	if err := w.RunAnalysis(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if w.Step() != StepTableSelection {
		t.Errorf("step = %s, want table-selection", w.Step())
	}
	if w.Message() != msgAnalysisFailed {
		t.Errorf("message = %q", w.Message())
	}
	if !reflect.DeepEqual(w.Selected(), []string{"A"}) {
		t.Errorf("selection lost: %v", w.Selected())
	}
}

func TestWizard_CloseRetainsNothing(t *testing.T) {
	w := configuredWizard(t, &stubWarehouse{tables: []string{"A"}}, nil)
	w.FetchTables(context.Background())
	w.Toggle("A")

	w.Close()
	if w.Step() != StepConfiguring {
		t.Errorf("step = %s", w.Step())
	}
	if !reflect.DeepEqual(w.Config(), ConnectionConfig{}) || len(w.Tables()) != 0 || len(w.Selected()) != 0 || w.Message() != "" {
		t.Error("close should clear every field")
	}
}

func TestWizard_CloseDropsInFlightResult(t *testing.T) {
	backend := &stubWarehouse{tables: []string{"A"}}
	w := configuredWizard(t, backend, nil)
	backend.beforeReply = w.Close

	err := w.FetchTables(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if w.Step() != StepConfiguring || len(w.Tables()) != 0 {
		t.Errorf("late result should be dropped, step=%s tables=%v", w.Step(), w.Tables())
	}
}

func TestWizard_PrivateKey(t *testing.T) {
	w := NewConnectionWizard(&stubWarehouse{}, nil)

	var verr *ValidationError
	if err := w.AttachPrivateKey("id_rsa", []byte("x")); !errors.As(err, &verr) {
		t.Errorf("non-.pem key should be rejected, got %v", err)
	}
	if w.Message() != msgInvalidKeyFile {
		t.Errorf("message = %q", w.Message())
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "RSA_KEY.PEM")
	if err := os.WriteFile(path, []byte("key-bytes"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := w.LoadPrivateKey(path); err != nil {
		t.Fatalf("LoadPrivateKey() error = %v", err)
	}
	key := w.Config().PrivateKey
	if key == nil || key.Name != "RSA_KEY.PEM" || string(key.Data) != "key-bytes" {
		t.Errorf("unexpected key: %+v", key)
	}

	// SetConfig without a key keeps the attached one
	cfg := validConnectionConfig()
	cfg.PrivateKey = nil
	w.SetConfig(cfg)
	if w.Config().PrivateKey == nil {
		t.Error("attached key should survive SetConfig")
	}

	if err := w.LoadPrivateKey(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWizard_WrongStep(t *testing.T) {
	w := NewConnectionWizard(&stubWarehouse{}, nil)
	if err := w.Toggle("A"); !errors.Is(err, ErrWrongStep) {
		t.Errorf("Toggle in configuring: %v", err)
	}
	if err := w.RunAnalysis(context.Background()); !errors.Is(err, ErrWrongStep) {
		t.Errorf("RunAnalysis in configuring: %v", err)
	}
	if err := w.Resume(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("Resume in configuring: %v", err)
	}
	if err := w.Back(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("Back in configuring: %v", err)
	}
}

func TestWizardStep_String(t *testing.T) {
	if StepTableSelection.String() != "table-selection" || WizardStep(42).String() != "step(42)" {
		t.Error("unexpected step names")
	}
}
