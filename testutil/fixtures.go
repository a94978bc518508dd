package testutil

import (
	"encoding/json"
	"testing"
)

// ReportJSON is a complete clean-report payload as the analysis service stores it
const ReportJSON = `{
  "meta": {
    "load_id": "LOAD_20250101_120000",
    "generated_at": "2025-01-01T12:00:00",
    "schema_analyzed": "SALES"
  },
  "summary": {
    "tables_count": 3,
    "kpis_count": 2,
    "charts_count": 1,
    "quality_score": 87.5
  },
  "understanding": {
    "total_tables": 3,
    "tables": [
      {"table": "ORDERS", "columns": 12, "rows": 150000},
      {"table": "CUSTOMERS", "columns": 8, "rows": 4200},
      {"table": "PRODUCTS", "columns": 6, "rows": null}
    ],
    "relationships": [
      {"table1": "ORDERS", "table2": "CUSTOMERS", "relationship": "ORDERS.CUSTOMER_ID -> CUSTOMERS.ID"}
    ]
  },
  "kpis": [
    {"name": "Total Revenue", "description": "Sum of order totals", "sql": "SELECT SUM(TOTAL) FROM ORDERS", "value": 1250000.5},
    {"name": "Active Customers", "description": "Customers with an order", "sql": "SELECT COUNT(DISTINCT CUSTOMER_ID) FROM ORDERS", "value": 3900}
  ],
  "charts": [
    {
      "name": "Monthly Revenue",
      "description": "Revenue by month",
      "chart_type": "line",
      "x_axis": "MONTH",
      "y_axis": "REVENUE",
      "sql": "SELECT ...",
      "sample_data": [
        {"MONTH": "2024-11", "REVENUE": 98000},
        {"MONTH": "2024-12", "REVENUE": 121000}
      ]
    }
  ],
  "data_quality": {
    "overall_score": 87.5,
    "issues": [
      {"table": "CUSTOMERS", "column": "EMAIL", "issue": "12% null values", "suggested_fix": "Backfill from CRM"}
    ]
  },
  "transformations": [
    {"table": "CUSTOMERS", "column": "EMAIL", "issue": "12% null values", "action": "Backfill from CRM"}
  ],
  "insights": {
    "summary": "Sales schema is healthy with minor gaps in customer contact data.",
    "key_points": [
      {"main_data_domains": ["Sales", "Customers", "Products", "Finance"], "key_tables": ["ORDERS", "CUSTOMERS", "PRODUCTS"]},
      {"total_tables": 3, "data_quality_%": 87.5}
    ]
  }
}`

// ReportPayload decodes ReportJSON into a fresh untyped tree
func ReportPayload(t *testing.T) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(ReportJSON), &payload); err != nil {
		t.Fatalf("Failed to decode report fixture: %v", err)
	}
	return payload
}

// SecondReportJSON is an older run with plain-string key points
const SecondReportJSON = `{
  "meta": {"load_id": "LOAD_20241201_090000", "generated_at": "2024-12-01T09:00:00", "schema_analyzed": "SALES"},
  "summary": {"tables_count": 2, "kpis_count": 0, "charts_count": 0, "quality_score": 70},
  "insights": {"summary": "Initial scan.", "key_points": ["Two tables analyzed", "Quality needs work"]}
}`
