package insight

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-navigator/internal/model"
	"github.com/sells-group/lead-navigator/pkg/anthropic"
)

// fakeAnthropicClient returns a canned response or error.
type fakeAnthropicClient struct {
	text    string
	err     error
	lastReq anthropic.MessageRequest
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

const validResponse = `[
  {"id": "engagement-1", "title": "Warm lead", "content": "Reach out this week.", "category": "engagement", "confidence": 0.9},
  {"id": "opportunity-1", "title": "Upsell", "content": "Pitch the analytics add-on.", "category": "opportunity", "confidence": 0.8},
  {"id": "strategy-1", "title": "Call window", "content": "Call mornings CST.", "category": "strategy", "confidence": 0.7},
  {"id": "priority-1", "title": "High priority", "content": "Schedule a call now.", "category": "priority", "confidence": 0.85}
]`

func TestLLMGeneratorGenerate(t *testing.T) {
	client := &fakeAnthropicClient{text: validResponse}
	gen := NewLLMGenerator(client, "test-model")

	insights, err := gen.Generate(context.Background(), model.Lead{
		ID:        "lead-1",
		FirstName: "Sarah",
		LastName:  "Lee",
		Title:     "Director of IT",
	})
	require.NoError(t, err)
	require.Len(t, insights, 4)

	assert.Equal(t, "engagement-1", insights[0].ID)
	assert.Equal(t, model.CategoryEngagement, insights[0].Category)
	assert.Equal(t, 0.9, insights[0].Confidence)

	assert.Equal(t, "test-model", client.lastReq.Model)
	assert.NotEmpty(t, client.lastReq.System)
	require.Len(t, client.lastReq.Messages, 1)
	assert.Contains(t, client.lastReq.Messages[0].Content, "Name: Sarah Lee")
	assert.Contains(t, client.lastReq.Messages[0].Content, "Title: Director of IT")
	assert.NotContains(t, client.lastReq.Messages[0].Content, "Company:")
}

func TestLLMGeneratorCallError(t *testing.T) {
	gen := NewLLMGenerator(&fakeAnthropicClient{err: eris.New("rate limited")}, "test-model")

	_, err := gen.Generate(context.Background(), model.Lead{ID: "lead-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm call")
}

func TestLLMGeneratorUnparsableResponse(t *testing.T) {
	gen := NewLLMGenerator(&fakeAnthropicClient{text: "I cannot produce JSON for this lead."}, "test-model")

	_, err := gen.Generate(context.Background(), model.Lead{ID: "lead-1"})
	require.Error(t, err)
}

func TestParseInsights(t *testing.T) {
	t.Run("strips code fence", func(t *testing.T) {
		insights, err := parseInsights("```json\n" + validResponse + "\n```")
		require.NoError(t, err)
		assert.Len(t, insights, 4)
	})

	t.Run("drops candidates missing fields", func(t *testing.T) {
		insights, err := parseInsights(`[
			{"id": "a", "title": "ok", "content": "ok", "category": "engagement", "confidence": 0.9},
			{"id": "b", "title": "missing content", "category": "priority", "confidence": 0.8},
			{"title": "missing id", "content": "x", "category": "strategy", "confidence": 0.7}
		]`)
		require.NoError(t, err)
		require.Len(t, insights, 1)
		assert.Equal(t, "a", insights[0].ID)
	})

	t.Run("all invalid is an error", func(t *testing.T) {
		_, err := parseInsights(`[{"id": "", "title": "", "content": "", "category": "", "confidence": 0}]`)
		require.Error(t, err)
	})

	t.Run("unknown category kept as-is", func(t *testing.T) {
		insights, err := parseInsights(`[{"id": "x-1", "title": "t", "content": "c", "category": "competitive", "confidence": 0.6}]`)
		require.NoError(t, err)
		require.Len(t, insights, 1)
		assert.Equal(t, model.InsightCategory("competitive"), insights[0].Category)
	})
}

func TestSelectorFallsBackOnError(t *testing.T) {
	sel := NewSelector(
		NewLLMGenerator(&fakeAnthropicClient{err: eris.New("api down")}, "test-model"),
		NewAnalyzer().WithNow(fixedNow),
	)

	insights := sel.Generate(context.Background(), model.Lead{ID: "lead-1", Status: model.StatusNew})
	require.NotEmpty(t, insights)
	assert.Equal(t, "engagement-1", insights[0].ID)
}

func TestSelectorPrefersLLM(t *testing.T) {
	sel := NewSelector(
		NewLLMGenerator(&fakeAnthropicClient{text: validResponse}, "test-model"),
		NewAnalyzer().WithNow(fixedNow),
	)

	insights := sel.Generate(context.Background(), model.Lead{ID: "lead-1"})
	require.Len(t, insights, 4)
	assert.Equal(t, "Warm lead", insights[0].Title)
}

func TestSelectorWithoutLLM(t *testing.T) {
	sel := NewSelector(nil, NewAnalyzer().WithNow(fixedNow))

	insights := sel.Generate(context.Background(), model.Lead{ID: "lead-1", Status: model.StatusNew})
	require.NotEmpty(t, insights)
	for _, in := range insights {
		assert.NotEmpty(t, in.Category)
	}
}
