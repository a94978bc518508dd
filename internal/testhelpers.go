package internal

import (
	"time"
)

// CreateTestReport creates a fully populated report for tests
func CreateTestReport(loadID string) *AnalysisReport {
	return &AnalysisReport{
		Meta: ReportMeta{
			LoadID:         loadID,
			GeneratedAt:    "2025-01-01T12:00:00Z",
			SchemaAnalyzed: "SALES",
		},
		Summary: ReportSummary{TablesCount: 2, KPIsCount: 1, ChartsCount: 1, QualityScore: 91.5},
		Understanding: Understanding{
			TotalTables: 2,
			Tables: []TableProfile{
				{Table: "ORDERS", Columns: 12, Rows: 150000},
				{Table: "CUSTOMERS", Columns: 8, Rows: 4200},
			},
			Relationships: []Relationship{
				{Table1: "ORDERS", Table2: "CUSTOMERS", Relationship: "ORDERS.CUSTOMER_ID -> CUSTOMERS.ID"},
			},
		},
		KPIs: []KPI{
			{Name: "Total Revenue", Description: "Sum of order totals", SQL: "SELECT SUM(TOTAL) FROM ORDERS", Value: 1250000.5},
		},
		Charts: []Chart{
			{
				Name:      "Monthly Revenue",
				ChartType: ChartLine,
				XAxis:     "MONTH",
				YAxis:     "REVENUE",
				SampleData: []map[string]interface{}{
					{"MONTH": "2024-11", "REVENUE": 98000.0},
					{"MONTH": "2024-12", "REVENUE": 121000.0},
				},
			},
		},
		DataQuality: DataQuality{
			OverallScore: 91.5,
			Issues: []QualityIssue{
				{Table: "CUSTOMERS", Column: "EMAIL", Issue: "12% null values", SuggestedFix: "Backfill from CRM"},
			},
		},
		Transformations: []Transformation{
			{Table: "CUSTOMERS", Column: "EMAIL", Issue: "12% null values", Action: "Backfill from CRM"},
		},
		Insights: Insights{
			Summary:   "Sales data is healthy.",
			KeyPoints: []string{"Main domains: Sales, Customers", "Data quality score: 91.5%"},
		},
	}
}

// CreateTestTranscript creates a short conversation for tests
func CreateTestTranscript() []ChatMessage {
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return []ChatMessage{
		{ID: "m1", Role: RoleAssistant, Content: assistantGreeting, Timestamp: ts},
		{ID: "m2", Role: RoleUser, Content: "Which table has the most issues?", Timestamp: ts.Add(time.Minute)},
		{ID: "m3", Role: RoleAssistant, Content: "CUSTOMERS, mostly **missing emails**.", Timestamp: ts.Add(2 * time.Minute)},
	}
}
