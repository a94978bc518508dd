package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/insight-dash/internal"
)

func TestJSONLExporter_ExportReport(t *testing.T) {
	var buf bytes.Buffer
	report := internal.CreateTestReport("LOAD_1")
	if err := (&JSONLExporter{}).ExportReport(report, &buf); err != nil {
		t.Fatalf("ExportReport() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	wantSections := []string{"meta", "summary", "understanding", "kpis", "charts", "data_quality", "transformations", "insights"}
	if len(lines) != len(wantSections) {
		t.Fatalf("lines = %d, want %d", len(lines), len(wantSections))
	}
	for i, line := range lines {
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if rec["section"] != wantSections[i] || rec["load_id"] != "LOAD_1" {
			t.Errorf("line %d = %v", i, rec)
		}
	}
}

func TestJSONLExporter_ExportTranscript(t *testing.T) {
	tests := []struct {
		name     string
		messages []internal.ChatMessage
		want     []string
	}{
		{
			name:     "empty transcript",
			messages: nil,
			want:     nil,
		},
		{
			name:     "conversation",
			messages: internal.CreateTestTranscript(),
			want:     []string{`"role":"assistant"`, `"role":"user"`, `"timestamp":"2025-01-01T12:01:00Z"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONLExporter{}).ExportTranscript(tt.messages, &buf); err != nil {
				t.Fatalf("ExportTranscript() error = %v", err)
			}
			output := buf.String()
			if len(tt.messages) == 0 && output != "" {
				t.Errorf("expected no output, got %q", output)
			}
			if n := strings.Count(output, "\n"); n != len(tt.messages) {
				t.Errorf("lines = %d, want %d", n, len(tt.messages))
			}
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %s:\n%s", want, output)
				}
			}
		})
	}
}
