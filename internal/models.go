package internal

import (
	"strings"
	"time"
)

// AnalysisReport is the normalized report consumed by the views.
// Only the normalizer builds one; treat it as read-only afterwards.
type AnalysisReport struct {
	Meta            ReportMeta       `json:"meta" yaml:"meta"`
	Summary         ReportSummary    `json:"summary" yaml:"summary"`
	Understanding   Understanding    `json:"understanding" yaml:"understanding"`
	KPIs            []KPI            `json:"kpis" yaml:"kpis"`
	Charts          []Chart          `json:"charts" yaml:"charts"`
	DataQuality     DataQuality      `json:"data_quality" yaml:"data_quality"`
	Transformations []Transformation `json:"transformations" yaml:"transformations"`
	Insights        Insights         `json:"insights" yaml:"insights"`
}

// ReportMeta identifies the analysis run
type ReportMeta struct {
	LoadID         string `json:"load_id" yaml:"load_id"`
	GeneratedAt    string `json:"generated_at" yaml:"generated_at"`
	SchemaAnalyzed string `json:"schema_analyzed" yaml:"schema_analyzed"`
}

// ReportSummary holds the headline counters
type ReportSummary struct {
	TablesCount  int     `json:"tables_count" yaml:"tables_count"`
	KPIsCount    int     `json:"kpis_count" yaml:"kpis_count"`
	ChartsCount  int     `json:"charts_count" yaml:"charts_count"`
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
}

// Understanding describes the analyzed schema
type Understanding struct {
	TotalTables   int            `json:"total_tables" yaml:"total_tables"`
	Tables        []TableProfile `json:"tables" yaml:"tables"`
	Relationships []Relationship `json:"relationships" yaml:"relationships"`
}

// TableProfile is one analyzed table
type TableProfile struct {
	Table   string `json:"table" yaml:"table"`
	Columns int    `json:"columns" yaml:"columns"`
	Rows    int64  `json:"rows" yaml:"rows"`
}

// Relationship links two tables
type Relationship struct {
	Table1       string `json:"table1" yaml:"table1"`
	Table2       string `json:"table2" yaml:"table2"`
	Relationship string `json:"relationship" yaml:"relationship"`
}

// KPI is a computed metric with the SQL that produced it
type KPI struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	SQL         string  `json:"sql" yaml:"sql"`
	Value       float64 `json:"value" yaml:"value"`
}

// Chart types understood by the renderers
const (
	ChartLine = "line"
	ChartBar  = "bar"
)

// Chart is a suggested visualization plus sample rows
type Chart struct {
	Name        string                   `json:"name" yaml:"name"`
	Description string                   `json:"description" yaml:"description"`
	ChartType   string                   `json:"chart_type" yaml:"chart_type"`
	XAxis       string                   `json:"x_axis" yaml:"x_axis"`
	YAxis       string                   `json:"y_axis" yaml:"y_axis"`
	SQL         string                   `json:"sql" yaml:"sql"`
	SampleData  []map[string]interface{} `json:"sample_data" yaml:"sample_data"`
}

// DataQuality holds the overall score and the findings
type DataQuality struct {
	OverallScore float64        `json:"overall_score" yaml:"overall_score"`
	Issues       []QualityIssue `json:"issues" yaml:"issues"`
}

// QualityIssue is a single data-quality finding
type QualityIssue struct {
	Table        string `json:"table" yaml:"table"`
	Column       string `json:"column" yaml:"column"`
	Issue        string `json:"issue" yaml:"issue"`
	SuggestedFix string `json:"suggested_fix" yaml:"suggested_fix"`
}

// Transformation is a recommended cleanup action
type Transformation struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
	Issue  string `json:"issue" yaml:"issue"`
	Action string `json:"action" yaml:"action"`
}

// Insights is the narrative section: a summary and ordered key points
type Insights struct {
	Summary   string   `json:"summary" yaml:"summary"`
	KeyPoints []string `json:"key_points" yaml:"key_points"`
}

// HistoryEntry points at a past analysis run
type HistoryEntry struct {
	LoadID       string `json:"load_id" yaml:"load_id"`
	LoadDatetime string `json:"load_datetime" yaml:"load_datetime"`
}

// Time parses LoadDatetime. The backend sends str(datetime), so both
// "2006-01-02 15:04:05.999999" and RFC3339 shapes occur.
func (h HistoryEntry) Time() (time.Time, bool) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
	}
	s := strings.TrimSpace(h.LoadDatetime)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Chat roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one transcript entry. Never mutated after creation.
type ChatMessage struct {
	ID        string    `json:"id" yaml:"id"`
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// KeyFile is private-key material uploaded for a single request
type KeyFile struct {
	Name string
	Data []byte
}

// ConnectionConfig holds warehouse credentials for one wizard session. Never persisted.
type ConnectionConfig struct {
	Account    string
	User       string
	Role       string
	Warehouse  string
	Database   string
	Schema     string
	PrivateKey *KeyFile
	Passphrase string
}

// Validate reports the first missing required field. Passphrase is optional.
func (c ConnectionConfig) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"account", c.Account},
		{"user", c.User},
		{"role", c.Role},
		{"warehouse", c.Warehouse},
		{"database", c.Database},
		{"schema", c.Schema},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Msg: "Please fill in all required fields and upload the private key file"}
		}
	}
	if c.PrivateKey == nil || len(c.PrivateKey.Data) == 0 {
		return &ValidationError{Field: "private_key", Msg: "Please fill in all required fields and upload the private key file"}
	}
	return nil
}
