package export

import (
	"io"

	"github.com/iksnae/insight-dash/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter writes YAML documents
type YAMLExporter struct{}

// ExportReport writes the report as one YAML document
func (e *YAMLExporter) ExportReport(report *internal.AnalysisReport, w io.Writer) error {
	return e.encode(report, w)
}

// ExportTranscript writes the transcript as a YAML sequence
func (e *YAMLExporter) ExportTranscript(messages []internal.ChatMessage, w io.Writer) error {
	if messages == nil {
		messages = []internal.ChatMessage{}
	}
	return e.encode(messages, w)
}

func (e *YAMLExporter) encode(v interface{}, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(v)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
