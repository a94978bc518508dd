package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const archiveVersion = "1.0"

// ReportArchive keeps exported reports in a directory together with a YAML
// index of what was written.
type ReportArchive struct {
	dir string
	now func() time.Time
}

// ArchiveMetadata describes the index itself
type ArchiveMetadata struct {
	BackendURL string    `yaml:"backend_url,omitempty"`
	Version    string    `yaml:"version"`
	CreatedAt  time.Time `yaml:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// ArchiveEntry is one exported file
type ArchiveEntry struct {
	LoadID       string    `yaml:"load_id,omitempty"`
	Kind         string    `yaml:"kind"`
	Format       string    `yaml:"format"`
	File         string    `yaml:"file"`
	Schema       string    `yaml:"schema,omitempty"`
	QualityScore float64   `yaml:"quality_score,omitempty"`
	KPIs         int       `yaml:"kpis,omitempty"`
	Messages     int       `yaml:"messages,omitempty"`
	ExportedAt   time.Time `yaml:"exported_at"`
}

// Archive entry kinds
const (
	ArchiveKindReport     = "report"
	ArchiveKindTranscript = "transcript"
)

// ArchiveIndex is the content of index.yaml
type ArchiveIndex struct {
	Entries  []ArchiveEntry  `yaml:"entries"`
	Metadata ArchiveMetadata `yaml:"metadata"`
}

// NewReportArchive creates an archive rooted at dir
func NewReportArchive(dir string) *ReportArchive {
	return &ReportArchive{dir: dir, now: time.Now}
}

// Dir returns the archive directory
func (a *ReportArchive) Dir() string {
	return a.dir
}

// EnsureDir ensures the archive directory exists
func (a *ReportArchive) EnsureDir() error {
	return os.MkdirAll(a.dir, 0755)
}

// IndexPath returns the path to index.yaml
func (a *ReportArchive) IndexPath() string {
	return filepath.Join(a.dir, "index.yaml")
}

// ReportPath returns where a run is written for the given extension
func (a *ReportArchive) ReportPath(loadID, ext string) string {
	return filepath.Join(a.dir, fmt.Sprintf("report_%s.%s", safeFileName(loadID), ext))
}

// TranscriptPath returns where a transcript exported at t is written
func (a *ReportArchive) TranscriptPath(t time.Time, ext string) string {
	return filepath.Join(a.dir, fmt.Sprintf("transcript_%s.%s", t.UTC().Format("20060102_150405"), ext))
}

// LoadIndex loads the index. A missing index is an empty one.
func (a *ReportArchive) LoadIndex() (*ArchiveIndex, error) {
	data, err := os.ReadFile(a.IndexPath())
	if os.IsNotExist(err) {
		return &ArchiveIndex{Entries: []ArchiveEntry{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var index ArchiveIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	if index.Entries == nil {
		index.Entries = []ArchiveEntry{}
	}
	return &index, nil
}

// SaveIndex saves the index
func (a *ReportArchive) SaveIndex(index *ArchiveIndex) error {
	if err := a.EnsureDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return os.WriteFile(a.IndexPath(), data, 0644)
}

// SaveReport writes report with write and records it in the index. A run
// exported again in the same format replaces its previous entry.
func (a *ReportArchive) SaveReport(report *AnalysisReport, format, ext string, write func(io.Writer) error) (string, error) {
	path := a.ReportPath(report.Meta.LoadID, ext)
	if err := a.writeFile(path, format, write); err != nil {
		return "", err
	}
	entry := ArchiveEntry{
		LoadID:       report.Meta.LoadID,
		Kind:         ArchiveKindReport,
		Format:       format,
		File:         filepath.Base(path),
		Schema:       report.Meta.SchemaAnalyzed,
		QualityScore: report.DataQuality.OverallScore,
		KPIs:         len(report.KPIs),
		ExportedAt:   a.now(),
	}
	return path, a.record(entry, "")
}

// SaveTranscript writes a conversation with write and records it in the index
func (a *ReportArchive) SaveTranscript(messages []ChatMessage, format, ext string, write func(io.Writer) error) (string, error) {
	now := a.now()
	path := a.TranscriptPath(now, ext)
	if err := a.writeFile(path, format, write); err != nil {
		return "", err
	}
	entry := ArchiveEntry{
		Kind:       ArchiveKindTranscript,
		Format:     format,
		File:       filepath.Base(path),
		Messages:   len(messages),
		ExportedAt: now,
	}
	return path, a.record(entry, "")
}

// SetBackend stamps the backend the archived runs came from
func (a *ReportArchive) SetBackend(backendURL string) error {
	return a.record(ArchiveEntry{}, backendURL)
}

func (a *ReportArchive) writeFile(path, format string, write func(io.Writer) error) error {
	if err := a.EnsureDir(); err != nil {
		return &ExportError{Format: format, Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &ExportError{Format: format, Path: path, Err: err}
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return &ExportError{Format: format, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ExportError{Format: format, Path: path, Err: err}
	}
	LogDebug("Wrote %s", path)
	return nil
}

// record upserts entry (skipped when it has no file) and refreshes metadata
func (a *ReportArchive) record(entry ArchiveEntry, backendURL string) error {
	index, err := a.LoadIndex()
	if err != nil {
		LogWarn("Archive index unreadable, starting a new one: %v", err)
		index = &ArchiveIndex{Entries: []ArchiveEntry{}}
	}

	now := a.now()
	if index.Metadata.Version == "" {
		index.Metadata = ArchiveMetadata{Version: archiveVersion, CreatedAt: now}
	}
	index.Metadata.UpdatedAt = now
	if backendURL != "" {
		index.Metadata.BackendURL = backendURL
	}

	if entry.File != "" {
		found := false
		for i, existing := range index.Entries {
			if existing.File == entry.File {
				index.Entries[i] = entry
				found = true
				break
			}
		}
		if !found {
			index.Entries = append(index.Entries, entry)
		}
		sort.SliceStable(index.Entries, func(i, j int) bool {
			return index.Entries[i].ExportedAt.After(index.Entries[j].ExportedAt)
		})
	}

	return a.SaveIndex(index)
}

// Clear removes every indexed file and the index
func (a *ReportArchive) Clear() error {
	index, err := a.LoadIndex()
	if err == nil {
		for _, entry := range index.Entries {
			_ = os.Remove(filepath.Join(a.dir, entry.File))
		}
	}
	if err := os.Remove(a.IndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// safeFileName keeps load ids usable as file names
func safeFileName(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
