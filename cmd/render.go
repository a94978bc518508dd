package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/insight-dash/internal"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)

	tileStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2).
			Align(lipgloss.Center)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// maxSampleRows caps the chart sample table in the terminal
const maxSampleRows = 10

// reportRenderer writes a report to a terminal, with lipgloss styling when styled
type reportRenderer struct {
	out    io.Writer
	styled bool
}

func (r *reportRenderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *reportRenderer) section(title string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.style(sectionStyle, title))
}

// Render writes every section of report
func (r *reportRenderer) Render(report *internal.AnalysisReport) {
	fmt.Fprintln(r.out, r.style(sectionStyle, "Analysis "+report.Meta.LoadID))
	fmt.Fprintf(r.out, "Schema: %s   Generated: %s\n", report.Meta.SchemaAnalyzed, report.Meta.GeneratedAt)

	r.renderSummary(report.Summary)
	r.renderInsights(report.Insights)
	r.renderKPIs(report.KPIs)
	for _, c := range report.Charts {
		r.renderChart(c)
	}
	r.renderUnderstanding(report.Understanding)
	r.renderQuality(report.DataQuality)
	r.renderTransformations(report.Transformations)
}

func (r *reportRenderer) renderSummary(s internal.ReportSummary) {
	tiles := [][2]string{
		{"Tables", strconv.Itoa(s.TablesCount)},
		{"KPIs", strconv.Itoa(s.KPIsCount)},
		{"Charts", strconv.Itoa(s.ChartsCount)},
		{"Quality", formatScore(s.QualityScore)},
	}
	fmt.Fprintln(r.out)
	if !r.styled {
		parts := make([]string, len(tiles))
		for i, t := range tiles {
			parts[i] = t[0] + ": " + t[1]
		}
		fmt.Fprintln(r.out, strings.Join(parts, "   "))
		return
	}
	rendered := make([]string, len(tiles))
	for i, t := range tiles {
		rendered[i] = tileStyle.Render(lipgloss.NewStyle().Bold(true).Render(t[1]) + "\n" + mutedStyle.Render(t[0]))
	}
	fmt.Fprintln(r.out, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

func (r *reportRenderer) renderInsights(in internal.Insights) {
	r.section("Insights")
	fmt.Fprintln(r.out, in.Summary)
	for _, p := range in.KeyPoints {
		fmt.Fprintf(r.out, "  • %s\n", p)
	}
}

func (r *reportRenderer) renderKPIs(kpis []internal.KPI) {
	if len(kpis) == 0 {
		return
	}
	r.section("KPIs")
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KPI\tVALUE\tDESCRIPTION")
	for _, k := range kpis {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k.Name, formatValue(k.Value), k.Description)
	}
	tw.Flush()
}

func (r *reportRenderer) renderChart(c internal.Chart) {
	r.section(fmt.Sprintf("Chart: %s (%s)", c.Name, c.ChartType))
	if c.Description != "" {
		fmt.Fprintln(r.out, c.Description)
	}
	fmt.Fprintln(r.out, r.style(mutedStyle, fmt.Sprintf("%s by %s", c.YAxis, c.XAxis)))
	if len(c.SampleData) == 0 {
		return
	}

	cols := chartColumns(c)
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for i, row := range c.SampleData {
		if i == maxSampleRows {
			break
		}
		cells := make([]string, len(cols))
		for j, col := range cols {
			if v, ok := row[col]; ok && v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	if extra := len(c.SampleData) - maxSampleRows; extra > 0 {
		fmt.Fprintln(r.out, r.style(mutedStyle, fmt.Sprintf("... and %d more rows", extra)))
	}
}

func (r *reportRenderer) renderUnderstanding(u internal.Understanding) {
	r.section("Schema understanding")
	fmt.Fprintf(r.out, "Total tables: %d\n", u.TotalTables)
	if len(u.Tables) > 0 {
		tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TABLE\tCOLUMNS\tROWS")
		for _, t := range u.Tables {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", t.Table, t.Columns, t.Rows)
		}
		tw.Flush()
	}
	for _, rel := range u.Relationships {
		fmt.Fprintf(r.out, "  %s ↔ %s: %s\n", rel.Table1, rel.Table2, rel.Relationship)
	}
}

func (r *reportRenderer) renderQuality(dq internal.DataQuality) {
	r.section("Data quality")
	score := formatScore(dq.OverallScore)
	switch {
	case dq.OverallScore >= 80:
		score = r.style(successStyle, score)
	case dq.OverallScore >= 50:
		score = r.style(warningStyle, score)
	default:
		score = r.style(errorStyle, score)
	}
	fmt.Fprintf(r.out, "Overall score: %s\n", score)
	if len(dq.Issues) == 0 {
		return
	}
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCOLUMN\tISSUE\tSUGGESTED FIX")
	for _, i := range dq.Issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", i.Table, i.Column, i.Issue, i.SuggestedFix)
	}
	tw.Flush()
}

func (r *reportRenderer) renderTransformations(ts []internal.Transformation) {
	if len(ts) == 0 {
		return
	}
	r.section("Recommended transformations")
	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCOLUMN\tISSUE\tACTION")
	for _, t := range ts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Table, t.Column, t.Issue, t.Action)
	}
	tw.Flush()
}

// chartColumns lists the x axis, the y axis, then the remaining sample keys sorted
func chartColumns(c internal.Chart) []string {
	seen := map[string]bool{}
	var cols []string
	for _, axis := range []string{c.XAxis, c.YAxis} {
		if axis != "" && !seen[axis] {
			seen[axis] = true
			cols = append(cols, axis)
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

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64) + "%"
}

// formatValue prints KPI values with thousands separators
func formatValue(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
