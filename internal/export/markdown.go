package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/iksnae/insight-dash/internal"
)

// MarkdownExporter writes human-readable Markdown
type MarkdownExporter struct{}

// ExportReport writes every report section with headings and tables
func (e *MarkdownExporter) ExportReport(report *internal.AnalysisReport, w io.Writer) error {
	b := &strings.Builder{}

	fmt.Fprintf(b, "# Analysis %s\n\n", report.Meta.LoadID)
	fmt.Fprintf(b, "**Schema:** %s  \n", report.Meta.SchemaAnalyzed)
	fmt.Fprintf(b, "**Generated:** %s\n\n", report.Meta.GeneratedAt)

	fmt.Fprintf(b, "## Summary\n\n")
	writeTable(b, []string{"Tables", "KPIs", "Charts", "Quality score"}, [][]string{{
		strconv.Itoa(report.Summary.TablesCount),
		strconv.Itoa(report.Summary.KPIsCount),
		strconv.Itoa(report.Summary.ChartsCount),
		formatNumber(report.Summary.QualityScore),
	}})

	fmt.Fprintf(b, "## Insights\n\n%s\n\n", escapeMarkdown(report.Insights.Summary))
	for _, point := range report.Insights.KeyPoints {
		fmt.Fprintf(b, "- %s\n", escapeMarkdown(point))
	}
	b.WriteString("\n")

	if len(report.KPIs) > 0 {
		fmt.Fprintf(b, "## KPIs\n\n")
		rows := make([][]string, 0, len(report.KPIs))
		for _, k := range report.KPIs {
			rows = append(rows, []string{k.Name, formatNumber(k.Value), k.Description})
		}
		writeTable(b, []string{"KPI", "Value", "Description"}, rows)
		for _, k := range report.KPIs {
			if k.SQL != "" {
				fmt.Fprintf(b, "**%s**\n\n```sql\n%s\n```\n\n", k.Name, k.SQL)
			}
		}
	}

	for _, c := range report.Charts {
		fmt.Fprintf(b, "## Chart: %s\n\n", c.Name)
		if c.Description != "" {
			fmt.Fprintf(b, "%s\n\n", escapeMarkdown(c.Description))
		}
		fmt.Fprintf(b, "*%s chart, %s by %s*\n\n", c.ChartType, c.YAxis, c.XAxis)
		if len(c.SampleData) > 0 {
			cols := sampleColumns(c)
			rows := make([][]string, 0, len(c.SampleData))
			for _, row := range c.SampleData {
				cells := make([]string, len(cols))
				for i, col := range cols {
					if v, ok := row[col]; ok && v != nil {
						cells[i] = fmt.Sprint(v)
					}
				}
				rows = append(rows, cells)
			}
			writeTable(b, cols, rows)
		}
	}

	fmt.Fprintf(b, "## Schema understanding\n\n")
	fmt.Fprintf(b, "**Total tables:** %d\n\n", report.Understanding.TotalTables)
	if len(report.Understanding.Tables) > 0 {
		rows := make([][]string, 0, len(report.Understanding.Tables))
		for _, t := range report.Understanding.Tables {
			rows = append(rows, []string{t.Table, strconv.Itoa(t.Columns), strconv.FormatInt(t.Rows, 10)})
		}
		writeTable(b, []string{"Table", "Columns", "Rows"}, rows)
	}
	for _, r := range report.Understanding.Relationships {
		fmt.Fprintf(b, "- %s ↔ %s: %s\n", r.Table1, r.Table2, escapeMarkdown(r.Relationship))
	}
	if len(report.Understanding.Relationships) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(b, "## Data quality\n\n**Overall score:** %s\n\n", formatNumber(report.DataQuality.OverallScore))
	if len(report.DataQuality.Issues) > 0 {
		rows := make([][]string, 0, len(report.DataQuality.Issues))
		for _, i := range report.DataQuality.Issues {
			rows = append(rows, []string{i.Table, i.Column, i.Issue, i.SuggestedFix})
		}
		writeTable(b, []string{"Table", "Column", "Issue", "Suggested fix"}, rows)
	}

	if len(report.Transformations) > 0 {
		fmt.Fprintf(b, "## Recommended transformations\n\n")
		rows := make([][]string, 0, len(report.Transformations))
		for _, t := range report.Transformations {
			rows = append(rows, []string{t.Table, t.Column, t.Issue, t.Action})
		}
		writeTable(b, []string{"Table", "Column", "Issue", "Action"}, rows)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ExportTranscript writes the conversation, one section per message
func (e *MarkdownExporter) ExportTranscript(messages []internal.ChatMessage, w io.Writer) error {
	b := &strings.Builder{}
	fmt.Fprintf(b, "# Assistant conversation\n\n")
	fmt.Fprintf(b, "**Messages:** %d\n\n---\n\n", len(messages))

	for i, msg := range messages {
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(b, "**%s:**%s\n\n%s\n\n", msg.Role, timestamp, escapeMarkdown(msg.Content))
		if i < len(messages)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// sampleColumns orders chart columns as x axis, y axis, then the rest alphabetically
func sampleColumns(c internal.Chart) []string {
	seen := map[string]bool{}
	var cols []string
	for _, axis := range []string{c.XAxis, c.YAxis} {
		if axis == "" || seen[axis] {
			continue
		}
		for _, row := range c.SampleData {
			if _, ok := row[axis]; ok {
				cols = append(cols, axis)
				seen[axis] = true
				break
			}
		}
	}
	var rest []string
	for _, row := range c.SampleData {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func writeTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(escapeCells(header), " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows {
		b.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	b.WriteString("\n")
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", "\\|")
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeMarkdown escapes emphasis markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
