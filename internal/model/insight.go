package model

// InsightCategory classifies an insight.
type InsightCategory string

const (
	CategoryEngagement  InsightCategory = "engagement"
	CategoryOpportunity InsightCategory = "opportunity"
	CategoryStrategy    InsightCategory = "strategy"
	CategoryPriority    InsightCategory = "priority"
)

// Insight is one categorized, confidence-scored statement about a lead.
// ID is unique only within a single lead's insight set.
type Insight struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Category   InsightCategory `json:"category"`
	Confidence float64         `json:"confidence"`
}

// DataStats aggregates stored record counts for the presentation layer.
type DataStats struct {
	TotalLeads    int `json:"total_leads"`
	TotalInsights int `json:"total_insights"`
}
