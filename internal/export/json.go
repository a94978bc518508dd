package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/insight-dash/internal"
)

// JSONExporter writes pretty-printed JSON
type JSONExporter struct{}

// ExportReport writes the report as one JSON document
func (e *JSONExporter) ExportReport(report *internal.AnalysisReport, w io.Writer) error {
	return e.encode(report, w)
}

// ExportTranscript writes the transcript as a JSON array
func (e *JSONExporter) ExportTranscript(messages []internal.ChatMessage, w io.Writer) error {
	if messages == nil {
		messages = []internal.ChatMessage{}
	}
	return e.encode(messages, w)
}

func (e *JSONExporter) encode(v interface{}, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
