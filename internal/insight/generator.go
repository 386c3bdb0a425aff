package insight

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-navigator/internal/model"
	"github.com/sells-group/lead-navigator/pkg/anthropic"
)

// Generator produces an insight set for a lead. Implementations may fail;
// the Selector handles fallback.
type Generator interface {
	Generate(ctx context.Context, lead model.Lead) ([]model.Insight, error)
}

// LLMGenerator generates insights by prompting a hosted model and parsing
// its JSON response.
type LLMGenerator struct {
	client anthropic.Client
	model  string
}

// NewLLMGenerator creates an LLMGenerator using the given model ID.
func NewLLMGenerator(client anthropic.Client, modelID string) *LLMGenerator {
	return &LLMGenerator{client: client, model: modelID}
}

// Generate prompts the model and parses the response into insights. It
// fails when the call errors or no candidate in the response validates.
func (g *LLMGenerator) Generate(ctx context.Context, lead model.Lead) ([]model.Insight, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(lead)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "insight: llm call")
	}

	resp.Usage.Log(g.model, "generate_insights")

	insights, err := parseInsights(resp.Text())
	if err != nil {
		return nil, eris.Wrapf(err, "insight: parse response for lead %s", lead.ID)
	}
	return insights, nil
}

const systemPrompt = `You are a sales intelligence assistant. Given a CRM lead, respond with a JSON array of exactly 4 objects and nothing else. Each object has the fields "id" (string), "title" (short headline), "content" (2-3 sentence recommendation), "category" (one of "engagement", "opportunity", "strategy", "priority") and "confidence" (number between 0.5 and 1.0).`

// buildPrompt renders the lead's contact and context fields into the user
// prompt.
func buildPrompt(lead model.Lead) string {
	var b strings.Builder
	b.WriteString("Analyze this sales lead:\n")
	for _, f := range []struct{ label, value string }{
		{"Name", lead.FullName()},
		{"Title", lead.Title},
		{"Company", lead.AccountName},
		{"Email", lead.Email1},
		{"Phone", lead.PhoneWork},
		{"Website", lead.Website},
		{"Lead Source", lead.LeadSource},
		{"Status", lead.Status},
		{"Description", lead.Description},
		{"Department", lead.Department},
		{"Location", lead.Location()},
		{"Created", lead.DateEntered},
		{"Last Modified", lead.DateModified},
	} {
		if f.value == "" {
			continue
		}
		b.WriteString(f.label)
		b.WriteString(": ")
		b.WriteString(f.value)
		b.WriteString("\n")
	}
	return b.String()
}

// candidate mirrors the Insight shape with pointer fields so absent keys
// can be told apart from zero values during validation.
type candidate struct {
	ID         *string  `json:"id"`
	Title      *string  `json:"title"`
	Content    *string  `json:"content"`
	Category   *string  `json:"category"`
	Confidence *float64 `json:"confidence"`
}

func (c candidate) valid() bool {
	return c.ID != nil && *c.ID != "" &&
		c.Title != nil && *c.Title != "" &&
		c.Content != nil && *c.Content != "" &&
		c.Category != nil && *c.Category != "" &&
		c.Confidence != nil
}

// parseInsights decodes a model response into insights. Candidates missing
// any required field are dropped; zero valid candidates is an error so the
// caller falls back. Category membership is deliberately not checked: extra
// categories from the model are stored as-is.
func parseInsights(raw string) ([]model.Insight, error) {
	raw = stripCodeFence(raw)

	var candidates []candidate
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil, eris.Wrap(err, "unmarshal insight array")
	}

	var insights []model.Insight
	for _, c := range candidates {
		if !c.valid() {
			zap.L().Debug("insight: dropping invalid candidate")
			continue
		}
		insights = append(insights, model.Insight{
			ID:         *c.ID,
			Title:      *c.Title,
			Content:    *c.Content,
			Category:   model.InsightCategory(*c.Category),
			Confidence: *c.Confidence,
		})
	}

	if len(insights) == 0 {
		return nil, eris.New("no valid insight candidates")
	}
	return insights, nil
}

// stripCodeFence removes a markdown code fence wrapper, which models emit
// despite instructions to return bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Selector chooses the generation strategy: the hosted model when
// configured, with automatic fallback to the rule-based analyzer on any
// failure. Generate never fails and never returns an empty set.
type Selector struct {
	llm      Generator
	analyzer *Analyzer
}

// NewSelector creates a Selector. llm may be nil, in which case the
// rule-based analyzer is always used.
func NewSelector(llm Generator, analyzer *Analyzer) *Selector {
	return &Selector{llm: llm, analyzer: analyzer}
}

// Generate produces the insight set for a lead.
func (s *Selector) Generate(ctx context.Context, lead model.Lead) []model.Insight {
	if s.llm != nil {
		insights, err := s.llm.Generate(ctx, lead)
		if err == nil {
			return insights
		}
		zap.L().Warn("insight: generation failed, using rule-based analyzer",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}
	return s.analyzer.Analyze(lead)
}
