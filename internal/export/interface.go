package export

import (
	"fmt"
	"io"

	"github.com/iksnae/insight-dash/internal"
)

// Exporter writes reports and chat transcripts in one file format
type Exporter interface {
	ExportReport(report *internal.AnalysisReport, w io.Writer) error
	ExportTranscript(messages []internal.ChatMessage, w io.Writer) error
	Extension() string
}

// Formats lists the accepted format names
var Formats = []string{"json", "jsonl", "md", "yaml"}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}
