package internal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ReportPhase is the display state of the current report
type ReportPhase string

const (
	PhaseLoading ReportPhase = "loading"
	PhaseLoaded  ReportPhase = "loaded"
	PhaseEmpty   ReportPhase = "empty"
)

// ViewState is a snapshot of the view model. Report and history failures are
// tracked apart; Err is the report failure, or the history failure when the
// report is fine. An error never implies the report was cleared.
type ViewState struct {
	Phase      ReportPhase
	Report     *AnalysisReport
	History    []HistoryEntry
	Err        error
	ReportErr  error
	HistoryErr error
}

// ReportViewModel owns the displayed report and the run history. A newer
// report request cancels the previous one, and any response that still
// arrives late is dropped.
type ReportViewModel struct {
	source     ReportSource
	normalizer *Normalizer

	mu         sync.Mutex
	phase      ReportPhase
	report     *AnalysisReport
	history    []HistoryEntry
	reportErr  error
	historyErr error
	generation uint64
	cancel     context.CancelFunc
	byID       map[string]*AnalysisReport
}

// NewReportViewModel creates a view model in the loading phase
func NewReportViewModel(source ReportSource) *ReportViewModel {
	return &ReportViewModel{
		source:     source,
		normalizer: NewNormalizer(),
		phase:      PhaseLoading,
		history:    []HistoryEntry{},
		byID:       make(map[string]*AnalysisReport),
	}
}

// State returns a snapshot of the current state
func (vm *ReportViewModel) State() ViewState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	err := vm.reportErr
	if err == nil {
		err = vm.historyErr
	}
	return ViewState{
		Phase:      vm.phase,
		Report:     vm.report,
		History:    append([]HistoryEntry(nil), vm.history...),
		Err:        err,
		ReportErr:  vm.reportErr,
		HistoryErr: vm.historyErr,
	}
}

// FetchCurrentReport loads the latest report. ErrNoReport means the phase
// moved to empty.
func (vm *ReportViewModel) FetchCurrentReport(ctx context.Context) (*AnalysisReport, error) {
	return vm.fetchReport(ctx, "", vm.source.CurrentReport)
}

// FetchReportByID loads a past run and makes it the displayed report.
// Runs are immutable, so repeated requests for the same id are served from memory.
func (vm *ReportViewModel) FetchReportByID(ctx context.Context, loadID string) (*AnalysisReport, error) {
	vm.mu.Lock()
	if cached, ok := vm.byID[loadID]; ok {
		vm.supersedeLocked()
		vm.phase = PhaseLoaded
		vm.report = cached
		vm.reportErr = nil
		vm.mu.Unlock()
		LogDebug("Report %s served from memory", loadID)
		return cached, nil
	}
	vm.mu.Unlock()

	return vm.fetchReport(ctx, loadID, func(ctx context.Context) (json.RawMessage, error) {
		return vm.source.ReportByID(ctx, loadID)
	})
}

// FetchHistory loads the list of past runs. A failure keeps the previous list.
func (vm *ReportViewModel) FetchHistory(ctx context.Context) ([]HistoryEntry, error) {
	runs, err := vm.source.Runs(ctx)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		LogWarn("Failed to fetch history: %v", err)
		vm.historyErr = err
		return nil, err
	}
	vm.history = runs
	vm.historyErr = nil
	return append([]HistoryEntry(nil), runs...), nil
}

// Refresh fetches the current report and the history in parallel. One
// failing does not cancel the other; the first error is returned.
func (vm *ReportViewModel) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := vm.FetchCurrentReport(ctx)
		if errors.Is(err, ErrNoReport) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		_, err := vm.FetchHistory(ctx)
		return err
	})
	return g.Wait()
}

func (vm *ReportViewModel) fetchReport(ctx context.Context, loadID string, fetch func(context.Context) (json.RawMessage, error)) (*AnalysisReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vm.mu.Lock()
	vm.supersedeLocked()
	gen := vm.generation
	vm.cancel = cancel
	if vm.report == nil {
		vm.phase = PhaseLoading
	}
	vm.mu.Unlock()

	data, err := fetch(ctx)

	var report *AnalysisReport
	if err == nil {
		report = vm.normalizer.NormalizeJSON(data)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if gen != vm.generation {
		LogDebug("Dropping superseded report response")
		return nil, context.Canceled
	}
	vm.cancel = nil

	switch {
	case errors.Is(err, ErrNoReport):
		vm.phase = PhaseEmpty
		vm.report = nil
		vm.reportErr = nil
		return nil, ErrNoReport
	case err != nil:
		LogWarn("Failed to fetch report: %v", err)
		vm.reportErr = err
		if vm.report == nil {
			vm.phase = PhaseEmpty
		}
		return nil, err
	}

	if loadID != "" {
		vm.byID[loadID] = report
	}
	vm.phase = PhaseLoaded
	vm.report = report
	vm.reportErr = nil
	return report, nil
}

// supersedeLocked cancels the in-flight report request, if any
func (vm *ReportViewModel) supersedeLocked() {
	vm.generation++
	if vm.cancel != nil {
		vm.cancel()
		vm.cancel = nil
	}
}
