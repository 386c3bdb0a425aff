// Package insight derives sales insights for CRM leads, either from
// deterministic heuristics or a hosted model with rule-based fallback.
package insight

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/lead-navigator/internal/model"
)

// seniorTitle matches titles indicating a senior decision maker.
var seniorTitle = regexp.MustCompile(`(?i)(vp|vice president|director|head)`)

// Analyzer produces rule-based insights from a lead's attributes. It is
// deterministic: the only ambient input is the clock, which is injectable.
type Analyzer struct {
	now func() time.Time
}

// NewAnalyzer creates an Analyzer using the wall clock.
func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// WithNow sets a fixed time for testing.
func (a *Analyzer) WithNow(t time.Time) *Analyzer {
	a.now = func() time.Time { return t }
	return a
}

// Analyze runs the four heuristics in fixed category order: engagement,
// opportunity, strategy, priority. Rules that do not apply are skipped, so
// the result holds at most one insight per category. Engagement always
// fires, so the result is never empty.
func (a *Analyzer) Analyze(lead model.Lead) []model.Insight {
	var insights []model.Insight
	for _, in := range []*model.Insight{
		AnalyzeEngagement(lead, a.now()),
		AnalyzeOpportunity(lead),
		AnalyzeGeography(lead),
		AnalyzePriority(lead),
	} {
		if in != nil {
			insights = append(insights, *in)
		}
	}
	return insights
}

// AnalyzeEngagement scores recency of activity from date_modified. Exactly
// one branch fires; confidence is a fixed constant per branch.
func AnalyzeEngagement(lead model.Lead, now time.Time) *model.Insight {
	var content string
	confidence := 0.8

	days, ok := lead.DaysSinceModified(now)
	switch {
	case !ok:
		content = "No recent activity data available. Consider reaching out to re-establish contact."
	case days < 3:
		content = fmt.Sprintf("This lead was recently active (%d days ago) with status %q. High engagement potential - prioritize immediate follow-up with a discovery call.", days, lead.Status)
		confidence = 0.9
	case days < 14:
		content = fmt.Sprintf("Moderate engagement - last activity %d days ago. Consider sending a personalized email to re-engage and schedule a call.", days)
	default:
		content = fmt.Sprintf("Cold lead - %d days since last activity. Implement a re-engagement campaign with valuable content before direct outreach.", days)
		confidence = 0.7
	}

	return &model.Insight{
		ID:         "engagement-1",
		Title:      "Lead Engagement Level & Next Action",
		Content:    content,
		Category:   model.CategoryEngagement,
		Confidence: confidence,
	}
}

// AnalyzeOpportunity pattern-matches title, description, and account name
// for cross-sell signals. Returns nil when nothing matches.
func AnalyzeOpportunity(lead model.Lead) *model.Insight {
	title := strings.ToLower(lead.Title)
	description := strings.ToLower(lead.Description)
	accountName := strings.ToLower(lead.AccountName)

	var opportunities []string
	confidence := 0.7

	if containsAny(title, "vp", "director", "manager") {
		opportunities = append(opportunities, "High decision-making authority - good candidate for premium solutions")
		confidence = 0.85
	}

	if containsAny(description, "warehouse", "inventory") {
		opportunities = append(opportunities, "Supply chain optimization modules, inventory analytics dashboard")
	}
	if containsAny(description, "erp", "integration") {
		opportunities = append(opportunities, "API integration services, custom connector development")
	}
	if containsAny(description, "management", "system") {
		opportunities = append(opportunities, "Advanced reporting suite, workflow automation tools")
	}

	if containsAny(accountName, "logistics", "shipping") {
		opportunities = append(opportunities, "Transportation management system, route optimization tools")
	}

	if len(opportunities) == 0 {
		return nil
	}

	return &model.Insight{
		ID:         "opportunity-1",
		Title:      "Cross-selling & Upselling Opportunities",
		Content:    fmt.Sprintf("Based on their role and stated needs: %s", strings.Join(opportunities, ". ")),
		Category:   model.CategoryOpportunity,
		Confidence: confidence,
	}
}

// AnalyzeGeography suggests a call window from the lead's primary address.
// Returns nil when no city, state, or country is present.
func AnalyzeGeography(lead model.Lead) *model.Insight {
	if lead.PrimaryAddressCity == "" && lead.PrimaryAddressState == "" && lead.PrimaryAddressCountry == "" {
		return nil
	}

	bestCallTime := "9 AM - 4 PM EST"
	switch lead.PrimaryAddressState {
	case "California", "Washington", "Oregon":
		bestCallTime = "9 AM - 4 PM PST"
	case "Texas", "Colorado", "Arizona":
		bestCallTime = "9 AM - 4 PM local time"
	}

	return &model.Insight{
		ID:         "strategy-1",
		Title:      "Geographic Outreach Strategy",
		Content:    fmt.Sprintf("Lead located in %s. Optimal contact window: %s. Consider referencing local market conditions or similar clients in the region to build rapport.", lead.Location(), bestCallTime),
		Category:   model.CategoryStrategy,
		Confidence: 0.8,
	}
}

// AnalyzePriority accumulates weighted signals into a priority score and
// maps it to a High/Medium/Low label with a recommended action.
func AnalyzePriority(lead model.Lead) *model.Insight {
	score := 0
	var factors []string

	switch lead.Status {
	case model.StatusNew:
		score += 3
		factors = append(factors, "New lead (high urgency)")
	case model.StatusContacted:
		score += 2
		factors = append(factors, "Recently contacted")
	}

	if seniorTitle.MatchString(lead.Title) {
		score += 2
		factors = append(factors, "Senior decision maker")
	}

	if lead.LeadSource == "Referral" {
		score += 2
		factors = append(factors, "Referral source (higher conversion)")
	}

	if len(lead.Description) > 50 {
		score++
		factors = append(factors, "Detailed requirements provided")
	}

	priority := "Medium"
	action := "Follow up within 2-3 days."
	switch {
	case score >= 5:
		priority = "High"
		action = "Schedule immediate follow-up."
	case score <= 2:
		priority = "Low"
		action = "Add to nurture campaign."
	}

	return &model.Insight{
		ID:         "priority-1",
		Title:      fmt.Sprintf("Lead Priority: %s", priority),
		Content:    fmt.Sprintf("Priority factors: %s. %s", strings.Join(factors, ", "), action),
		Category:   model.CategoryPriority,
		Confidence: 0.85,
	}
}

// containsAny checks if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
