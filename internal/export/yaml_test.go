package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/insight-dash/internal"
	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_ExportReport(t *testing.T) {
	var buf bytes.Buffer
	report := internal.CreateTestReport("LOAD_1")
	if err := (&YAMLExporter{}).ExportReport(report, &buf); err != nil {
		t.Fatalf("ExportReport() error = %v", err)
	}

	var decoded internal.AnalysisReport
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded.Meta.LoadID != "LOAD_1" || len(decoded.KPIs) != 1 || decoded.KPIs[0].Value != 1250000.5 {
		t.Errorf("unexpected round trip: %+v", decoded)
	}
	for _, key := range []string{"load_id:", "quality_score:", "key_points:", "sample_data:"} {
		if !strings.Contains(buf.String(), key) {
			t.Errorf("output missing %s", key)
		}
	}
}

func TestYAMLExporter_ExportTranscript(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).ExportTranscript(internal.CreateTestTranscript(), &buf); err != nil {
		t.Fatalf("ExportTranscript() error = %v", err)
	}
	var decoded []internal.ChatMessage
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if len(decoded) != 3 || decoded[2].Content != "CUSTOMERS, mostly **missing emails**." {
		t.Errorf("unexpected transcript: %+v", decoded)
	}
}
