package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/insight-dash/testutil"
)

func newTestArchive(t *testing.T) (*ReportArchive, *time.Time) {
	t.Helper()
	dir := testutil.CreateTempDir(t)
	t.Cleanup(func() { os.RemoveAll(dir) })
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewReportArchive(filepath.Join(dir, "exports"))
	a.now = func() time.Time { return now }
	return a, &now
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func TestReportArchive_Paths(t *testing.T) {
	a := NewReportArchive("/tmp/exports")
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"index", a.IndexPath(), filepath.Join("/tmp/exports", "index.yaml")},
		{"report", a.ReportPath("LOAD_1", "md"), filepath.Join("/tmp/exports", "report_LOAD_1.md")},
		{"unsafe id", a.ReportPath("../x/y z", "json"), filepath.Join("/tmp/exports", "report_.._x_y_z.json")},
		{"empty id", a.ReportPath("", "json"), filepath.Join("/tmp/exports", "report_unknown.json")},
		{"transcript", a.TranscriptPath(time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), "jsonl"), filepath.Join("/tmp/exports", "transcript_20250203_040506.jsonl")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestReportArchive_LoadMissingIndex(t *testing.T) {
	a, _ := newTestArchive(t)
	index, err := a.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if len(index.Entries) != 0 {
		t.Errorf("expected empty index, got %d entries", len(index.Entries))
	}
}

func TestReportArchive_SaveReport(t *testing.T) {
	a, now := newTestArchive(t)
	report := CreateTestReport("LOAD_1")

	path, err := a.SaveReport(report, "markdown", "md", writeString("# Analysis LOAD_1\n"))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "# Analysis LOAD_1\n" {
		t.Fatalf("report file = %q, %v", data, err)
	}

	// Same run and format again replaces the entry
	*now = now.Add(time.Minute)
	if _, err := a.SaveReport(report, "markdown", "md", writeString("v2")); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Minute)
	if _, err := a.SaveReport(CreateTestReport("LOAD_2"), "json", "json", writeString("{}")); err != nil {
		t.Fatal(err)
	}

	index, err := a.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex() error = %v", err)
	}
	if len(index.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(index.Entries))
	}
	newest := index.Entries[0]
	if newest.LoadID != "LOAD_2" || newest.Format != "json" || newest.File != "report_LOAD_2.json" {
		t.Errorf("newest entry = %+v", newest)
	}
	older := index.Entries[1]
	if older.Kind != ArchiveKindReport || older.Schema != "SALES" || older.KPIs != 1 || older.QualityScore != 91.5 {
		t.Errorf("older entry = %+v", older)
	}
	if index.Metadata.Version != archiveVersion || !index.Metadata.UpdatedAt.After(index.Metadata.CreatedAt) {
		t.Errorf("metadata = %+v", index.Metadata)
	}
}

func TestReportArchive_WriteFailure(t *testing.T) {
	a, _ := newTestArchive(t)
	_, err := a.SaveReport(CreateTestReport("LOAD_1"), "json", "json", func(io.Writer) error {
		return fmt.Errorf("encode failed")
	})

	var exportErr *ExportError
	if !errors.As(err, &exportErr) || exportErr.Format != "json" {
		t.Fatalf("expected ExportError, got %v", err)
	}
	if _, statErr := os.Stat(a.ReportPath("LOAD_1", "json")); !os.IsNotExist(statErr) {
		t.Error("partial file should be removed")
	}
	index, _ := a.LoadIndex()
	if len(index.Entries) != 0 {
		t.Error("failed export must not be indexed")
	}
}

func TestReportArchive_TranscriptAndClear(t *testing.T) {
	a, _ := newTestArchive(t)
	if err := a.SetBackend("http://127.0.0.1:8082"); err != nil {
		t.Fatal(err)
	}
	path, err := a.SaveTranscript(CreateTestTranscript(), "jsonl", "jsonl", writeString("{}\n"))
	if err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}
	if !strings.HasSuffix(path, "transcript_20250101_120000.jsonl") {
		t.Errorf("path = %s", path)
	}

	index, _ := a.LoadIndex()
	if len(index.Entries) != 1 || index.Entries[0].Messages != 3 || index.Entries[0].Kind != ArchiveKindTranscript {
		t.Errorf("entries = %+v", index.Entries)
	}
	if index.Metadata.BackendURL != "http://127.0.0.1:8082" {
		t.Errorf("backend = %q", index.Metadata.BackendURL)
	}

	if err := a.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("transcript file should be removed")
	}
	if _, err := os.Stat(a.IndexPath()); !os.IsNotExist(err) {
		t.Error("index should be removed")
	}
}

func TestReportArchive_CorruptIndex(t *testing.T) {
	a, _ := newTestArchive(t)
	if err := a.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.IndexPath(), []byte("entries: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.LoadIndex(); err == nil {
		t.Error("expected parse error")
	}
	// Saving starts a fresh index
	if _, err := a.SaveReport(CreateTestReport("LOAD_1"), "yaml", "yaml", writeString("x")); err != nil {
		t.Fatal(err)
	}
	index, err := a.LoadIndex()
	if err != nil || len(index.Entries) != 1 {
		t.Errorf("index after recovery = %+v, %v", index, err)
	}
}
