package cmd

import (
	"bytes"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/iksnae/insight-dash/internal"
	"github.com/iksnae/insight-dash/testutil"
)

func TestReport(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		setup      func(b *testutil.FakeBackend)
		wantErr    string
		wantOut    []string
		wantStderr string
	}{
		{
			name:  "latest",
			args:  []string{"report"},
			setup: func(b *testutil.FakeBackend) { b.SetCurrentReport(testutil.ReportJSON) },
			wantOut: []string{
				"Analysis LOAD_20250101_120000",
				"Tables: 3",
				"1,250,000.5",
				"Monthly Revenue",
				"ORDERS ↔ CUSTOMERS",
				"87.5%",
				"Backfill from CRM",
			},
		},
		{
			name:       "no report yet",
			args:       []string{"report"},
			wantStderr: "No reports found",
		},
		{
			name: "by load id",
			args: []string{"report", "LOAD_20241201_090000"},
			setup: func(b *testutil.FakeBackend) {
				b.SetCurrentReport(testutil.ReportJSON)
				b.AddRun("LOAD_20241201_090000", "2024-12-01 09:00:00", testutil.SecondReportJSON)
			},
			wantOut: []string{"Analysis LOAD_20241201_090000"},
		},
		{
			name:    "unknown load id",
			args:    []string{"report", "LOAD_MISSING"},
			wantErr: "report LOAD_MISSING not found",
		},
		{
			name:    "service down",
			args:    []string{"report"},
			setup:   func(b *testutil.FakeBackend) { b.SetStatus("/clean-report", http.StatusBadGateway) },
			wantErr: "could not be reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			env.login()
			if tt.setup != nil {
				tt.setup(env.backend)
			}

			stdout, stderr, err := env.run("", tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("report: %v", err)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(stdout, want) {
					t.Errorf("output missing %q:\n%s", want, stdout)
				}
			}
			if !strings.Contains(stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	env := newCLIEnv(t)
	env.login()

	stdout, _, err := env.run("", "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "No previous runs") {
		t.Errorf("empty history output = %q", stdout)
	}

	env.backend.AddRun("LOAD_20250101_120000", "2025-01-01 12:00:00", testutil.ReportJSON)
	env.backend.AddRun("LOAD_20241201_090000", "not a date", testutil.SecondReportJSON)
	stdout, _, err = env.run("", "history")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("history lines = %d:\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "LOAD ID") || !strings.HasPrefix(lines[1], "LOAD_20250101_120000") {
		t.Errorf("unexpected history:\n%s", stdout)
	}
	// Unparseable timestamps are shown as sent
	if !strings.Contains(lines[2], "not a date") {
		t.Errorf("raw timestamp missing: %q", lines[2])
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, []internal.HistoryEntry{{LoadID: "A", LoadDatetime: "x"}, {LoadID: "LONGER_ID", LoadDatetime: "y"}})
	want := "LOAD ID    LOADED AT\nA          x\nLONGER_ID  y\n"
	if buf.String() != want {
		t.Errorf("printHistory() = %q, want %q", buf.String(), want)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{3900, "3,900"},
		{1250000.5, "1,250,000.5"},
		{-98765.25, "-98,765.25"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChartColumns(t *testing.T) {
	c := internal.Chart{
		XAxis: "MONTH",
		YAxis: "REVENUE",
		SampleData: []map[string]interface{}{
			{"MONTH": "2024-11", "REVENUE": 1, "Z": 1},
			{"B": 2},
		},
	}
	want := []string{"MONTH", "REVENUE", "B", "Z"}
	if got := chartColumns(c); !reflect.DeepEqual(got, want) {
		t.Errorf("chartColumns() = %v, want %v", got, want)
	}
}

func TestRenderPlain(t *testing.T) {
	report := internal.NewNormalizer().Normalize(testutil.ReportPayload(t))
	var buf bytes.Buffer
	r := &reportRenderer{out: &buf}
	r.Render(report)
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Error("plain rendering must not contain escape codes")
	}
	for _, want := range []string{"Total Revenue", "Active Customers", "3,900", "2024-12"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
}
