package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLoadID          = "unknown"
	defaultSchema          = "UNKNOWN"
	defaultInsightsSummary = "Domain analysis complete"
	defaultKeyPoint        = "Data analysis completed"
	fallbackKeyPoint       = "Data analysis completed successfully"
	qualityPercentKey      = "data_quality_%"
)

// Normalizer turns a loosely-typed backend report payload into an AnalysisReport.
// It never fails: every missing or wrong-typed field gets a default.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize is NewNormalizer().Normalize
func Normalize(raw interface{}) *AnalysisReport {
	return NewNormalizer().Normalize(raw)
}

// NormalizeJSON is NewNormalizer().NormalizeJSON
func NormalizeJSON(data []byte) *AnalysisReport {
	return NewNormalizer().NormalizeJSON(data)
}

// NormalizeJSON decodes data and normalizes it. Undecodable input yields the
// all-defaults report.
func (n *Normalizer) NormalizeJSON(data []byte) *AnalysisReport {
	raw, err := decodeJSON(data)
	if err != nil {
		LogDebug("Report payload is not JSON, using defaults: %v", err)
		return n.Normalize(nil)
	}
	return n.Normalize(raw)
}

// Normalize builds the report from raw, a value produced by encoding/json
// (maps, slices, strings, float64 or json.Number, bools, nil).
func (n *Normalizer) Normalize(raw interface{}) *AnalysisReport {
	// VARIANT columns sometimes arrive as a JSON string
	if s, ok := raw.(string); ok {
		if decoded, err := decodeJSON([]byte(s)); err == nil {
			raw = decoded
		}
	}
	root := asMap(raw)

	return &AnalysisReport{
		Meta:            n.normalizeMeta(root["meta"]),
		Summary:         normalizeSummary(root["summary"]),
		Understanding:   normalizeUnderstanding(root["understanding"]),
		KPIs:            normalizeKPIs(root["kpis"]),
		Charts:          normalizeCharts(root["charts"]),
		DataQuality:     normalizeDataQuality(root["data_quality"]),
		Transformations: normalizeTransformations(root["transformations"]),
		Insights:        normalizeInsights(root["insights"]),
	}
}

func (n *Normalizer) normalizeMeta(v interface{}) ReportMeta {
	m := asMap(v)
	meta := ReportMeta{
		LoadID:         asString(m["load_id"]),
		GeneratedAt:    asString(m["generated_at"]),
		SchemaAnalyzed: asString(m["schema_analyzed"]),
	}
	if meta.LoadID == "" {
		meta.LoadID = defaultLoadID
	}
	if meta.GeneratedAt == "" {
		meta.GeneratedAt = n.now().UTC().Format(time.RFC3339)
	}
	if meta.SchemaAnalyzed == "" {
		meta.SchemaAnalyzed = defaultSchema
	}
	return meta
}

func normalizeSummary(v interface{}) ReportSummary {
	m := asMap(v)
	return ReportSummary{
		TablesCount:  asInt(m["tables_count"]),
		KPIsCount:    asInt(m["kpis_count"]),
		ChartsCount:  asInt(m["charts_count"]),
		QualityScore: asFloat(m["quality_score"]),
	}
}

func normalizeUnderstanding(v interface{}) Understanding {
	m := asMap(v)
	u := Understanding{
		TotalTables:   asInt(m["total_tables"]),
		Tables:        []TableProfile{},
		Relationships: []Relationship{},
	}
	for _, item := range asSlice(m["tables"]) {
		t, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		u.Tables = append(u.Tables, TableProfile{
			Table:   asString(t["table"]),
			Columns: asInt(t["columns"]),
			Rows:    int64(asFloat(t["rows"])),
		})
	}
	for _, item := range asSlice(m["relationships"]) {
		r, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		u.Relationships = append(u.Relationships, Relationship{
			Table1:       asString(r["table1"]),
			Table2:       asString(r["table2"]),
			Relationship: asString(r["relationship"]),
		})
	}
	return u
}

func normalizeKPIs(v interface{}) []KPI {
	kpis := []KPI{}
	for _, item := range asSlice(v) {
		k, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		kpis = append(kpis, KPI{
			Name:        asString(k["name"]),
			Description: asString(k["description"]),
			SQL:         asString(k["sql"]),
			Value:       asFloat(k["value"]),
		})
	}
	return kpis
}

func normalizeCharts(v interface{}) []Chart {
	charts := []Chart{}
	for _, item := range asSlice(v) {
		c, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		chart := Chart{
			Name:        asString(c["name"]),
			Description: asString(c["description"]),
			ChartType:   asString(c["chart_type"]),
			XAxis:       asString(c["x_axis"]),
			YAxis:       asString(c["y_axis"]),
			SQL:         asString(c["sql"]),
			SampleData:  []map[string]interface{}{},
		}
		if chart.ChartType != ChartLine {
			chart.ChartType = ChartBar
		}
		for _, row := range asSlice(c["sample_data"]) {
			if r, ok := row.(map[string]interface{}); ok {
				chart.SampleData = append(chart.SampleData, r)
			}
		}
		charts = append(charts, chart)
	}
	return charts
}

func normalizeDataQuality(v interface{}) DataQuality {
	m := asMap(v)
	dq := DataQuality{
		OverallScore: asFloat(m["overall_score"]),
		Issues:       []QualityIssue{},
	}
	for _, item := range asSlice(m["issues"]) {
		i, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		dq.Issues = append(dq.Issues, QualityIssue{
			Table:        asString(i["table"]),
			Column:       asString(i["column"]),
			Issue:        asString(i["issue"]),
			SuggestedFix: asString(i["suggested_fix"]),
		})
	}
	return dq
}

func normalizeTransformations(v interface{}) []Transformation {
	out := []Transformation{}
	for _, item := range asSlice(v) {
		t, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Transformation{
			Table:  asString(t["table"]),
			Column: asString(t["column"]),
			Issue:  asString(t["issue"]),
			Action: asString(t["action"]),
		})
	}
	return out
}

func normalizeInsights(v interface{}) Insights {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Insights{Summary: defaultInsightsSummary, KeyPoints: []string{defaultKeyPoint}}
	}

	insights := Insights{Summary: asString(m["summary"])}
	if insights.Summary == "" {
		insights.Summary = defaultInsightsSummary
	}

	switch kp := m["key_points"].(type) {
	case []interface{}:
		insights.KeyPoints = normalizeKeyPoints(kp)
	case string:
		if kp != "" {
			insights.KeyPoints = []string{kp}
		}
	}
	if insights.KeyPoints == nil {
		insights.KeyPoints = []string{defaultKeyPoint}
	}
	return insights
}

// normalizeKeyPoints passes plain strings through. Structured entries are
// projected into sentences; when that yields nothing the fallback line is used.
func normalizeKeyPoints(items []interface{}) []string {
	structured := false
	out := []string{}
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			if item != nil {
				out = append(out, formatScalar(item))
			}
			continue
		}
		structured = true
		out = append(out, projectKeyPoint(obj)...)
	}
	if structured && len(out) == 0 {
		return []string{fallbackKeyPoint}
	}
	return out
}

func projectKeyPoint(obj map[string]interface{}) []string {
	var lines []string
	if domains, ok := obj["main_data_domains"].([]interface{}); ok {
		lines = append(lines, "Main domains: "+joinFirst(domains, 3))
	}
	if tables, ok := obj["key_tables"].([]interface{}); ok {
		lines = append(lines, "Key tables: "+joinFirst(tables, 5))
	}
	if total, ok := obj["total_tables"]; ok && total != nil {
		lines = append(lines, "Total tables analyzed: "+formatScalar(total))
	}
	if key, ok := percentKey(obj); ok {
		lines = append(lines, "Data quality score: "+formatScalar(obj[key])+"%")
	}
	return lines
}

// percentKey picks data_quality_% when present, otherwise the first other
// %-suffixed key in sorted order
func percentKey(obj map[string]interface{}) (string, bool) {
	if v, ok := obj[qualityPercentKey]; ok && v != nil {
		return qualityPercentKey, true
	}
	var keys []string
	for k, v := range obj {
		if strings.HasSuffix(k, "%") && v != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	return keys[0], true
}

func joinFirst(items []interface{}, limit int) string {
	if len(items) > limit {
		items = items[:limit]
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, formatScalar(item))
	}
	return strings.Join(parts, ", ")
}

func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	return nil
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return formatScalar(t)
	}
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(v interface{}) int {
	f := asFloat(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// formatScalar renders a value the way it would appear in the dashboard text
func formatScalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formatScalar(item))
		}
		return strings.Join(parts, ",")
	case map[string]interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}
