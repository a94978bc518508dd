package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/insight-dash/internal"
)

// JSONLExporter writes one JSON record per line
type JSONLExporter struct{}

// sectionRecord is one report section on its own line
type sectionRecord struct {
	LoadID  string      `json:"load_id"`
	Section string      `json:"section"`
	Data    interface{} `json:"data"`
}

// ExportReport writes one line per report section, each tagged with the run's load id
func (e *JSONLExporter) ExportReport(report *internal.AnalysisReport, w io.Writer) error {
	enc := json.NewEncoder(w)
	sections := []sectionRecord{
		{Section: "meta", Data: report.Meta},
		{Section: "summary", Data: report.Summary},
		{Section: "understanding", Data: report.Understanding},
		{Section: "kpis", Data: report.KPIs},
		{Section: "charts", Data: report.Charts},
		{Section: "data_quality", Data: report.DataQuality},
		{Section: "transformations", Data: report.Transformations},
		{Section: "insights", Data: report.Insights},
	}
	for _, rec := range sections {
		rec.LoadID = report.Meta.LoadID
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode %s: %w", rec.Section, err)
		}
	}
	return nil
}

// ExportTranscript writes one message per line
func (e *JSONLExporter) ExportTranscript(messages []internal.ChatMessage, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, msg := range messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
