package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/insight-dash/internal"
)

func TestJSONExporter_ExportReport(t *testing.T) {
	tests := []struct {
		name   string
		report *internal.AnalysisReport
	}{
		{"full report", internal.CreateTestReport("LOAD_1")},
		{"defaults only", internal.Normalize(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&JSONExporter{}).ExportReport(tt.report, &buf); err != nil {
				t.Fatalf("ExportReport() error = %v", err)
			}

			var decoded internal.AnalysisReport
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if decoded.Meta.LoadID != tt.report.Meta.LoadID {
				t.Errorf("load id = %q, want %q", decoded.Meta.LoadID, tt.report.Meta.LoadID)
			}
			if strings.Contains(buf.String(), ": null") {
				t.Errorf("empty sections should be [] not null:\n%s", buf.String())
			}
			var raw map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
				t.Fatal(err)
			}
			for _, key := range []string{"kpis", "charts", "transformations"} {
				if _, ok := raw[key].([]interface{}); !ok {
					t.Errorf("%s = %#v, want an array", key, raw[key])
				}
			}
			if !strings.Contains(buf.String(), "\n  ") {
				t.Error("output should be indented")
			}
		})
	}
}

func TestJSONExporter_ExportTranscript(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).ExportTranscript(internal.CreateTestTranscript(), &buf); err != nil {
		t.Fatalf("ExportTranscript() error = %v", err)
	}
	var decoded []internal.ChatMessage
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded) != 3 || decoded[1].Role != internal.RoleUser {
		t.Errorf("unexpected transcript: %+v", decoded)
	}

	buf.Reset()
	if err := (&JSONExporter{}).ExportTranscript(nil, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty transcript = %q, want []", buf.String())
	}
}
