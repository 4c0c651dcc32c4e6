package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-planner/internal/llm"
	"recipe-planner/internal/shared"
)

// mockTextGenerator is a mock implementation of llm.TextGenerator for testing.
type mockTextGenerator struct {
	response    string
	shouldError bool
	prompt      string
}

func (m *mockTextGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	m.prompt = prompt
	if m.shouldError {
		return llm.ContentResponse{}, errors.New("LLM error")
	}
	return llm.ContentResponse{
		Content: m.response,
		Usage:   shared.TokenUsage{PromptTokens: 100, CompletionTokens: 50, Model: "mock"},
	}, nil
}

func fptr(v float64) *float64 { return &v }

func TestExtractor_Extract(t *testing.T) {
	ctx := context.Background()
	post := PostData{
		ID:        "1",
		Title:     "Test Recipe",
		SourceURL: "https://example.com/pancakes",
		UpdatedAt: "2024-03-01T10:00:00Z",
		HTML:      "<h1>Test Recipe</h1><p>Ingredients: ...</p>",
	}

	t.Run("Success", func(t *testing.T) {
		gen := &mockTextGenerator{
			response: `{
				"title": "Pancakes",
				"ingredients": [
					{"text": "2 cups flour", "quantity": 2, "unit": "cups", "item": "flour", "category": "Pantry"},
					{"text": "1 1/2 cups milk", "quantity": "1 1/2", "unit": "cups", "item": "milk", "category": "dairy"},
					{"text": "salt to taste", "item": "salt"},
					{"text": "", "item": ""}
				],
				"instructions": ["Mix.", "Cook."],
				"tags": ["breakfast"],
				"prep_time": "20 mins",
				"servings": 4
			}`,
		}

		rec, meta, err := NewExtractor(gen).Extract(ctx, post)
		require.NoError(t, err)

		want := Recipe{
			ID:        "1",
			Title:     "Pancakes",
			SourceURL: "https://example.com/pancakes",
			Ingredients: []Ingredient{
				{Text: "2 cups flour", Quantity: fptr(2), Unit: "cups", Item: "flour", Category: "pantry"},
				{Text: "1 1/2 cups milk", Quantity: fptr(1.5), Unit: "cups", Item: "milk", Category: "dairy"},
				{Text: "salt to taste", Item: "salt"},
			},
			Instructions: []string{"Mix.", "Cook."},
			Tags:         []string{"breakfast"},
			PrepTime:     "20 mins",
			Servings:     "4",
			UpdatedAt:    "2024-03-01T10:00:00Z",
		}
		if diff := cmp.Diff(want, rec); diff != "" {
			t.Errorf("extracted recipe mismatch (-want +got):\n%s", diff)
		}

		assert.Equal(t, "Extractor", meta.AgentName)
		assert.Equal(t, 100, meta.Usage.PromptTokens)
		assert.Contains(t, gen.prompt, `Content for "Test Recipe"`)
		assert.Contains(t, gen.prompt, "<h1>Test Recipe</h1>")
		assert.Contains(t, gen.prompt, "meat_seafood")
	})

	t.Run("InstructionsAsString", func(t *testing.T) {
		gen := &mockTextGenerator{response: `{"title": "", "ingredients": [], "instructions": "Step 1. Do something."}`}

		rec, _, err := NewExtractor(gen).Extract(ctx, post)
		require.NoError(t, err)
		assert.Equal(t, "Test Recipe", rec.Title, "falls back to the post title")
		assert.Equal(t, []string{"Step 1. Do something."}, rec.Instructions)
	})

	t.Run("LLMError", func(t *testing.T) {
		_, _, err := NewExtractor(&mockTextGenerator{shouldError: true}).Extract(ctx, post)
		require.Error(t, err)
		assert.Equal(t, "failed to get LLM response: LLM error", err.Error())
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, meta, err := NewExtractor(&mockTextGenerator{response: "this is not json"}).Extract(ctx, post)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal LLM response")
		assert.Equal(t, 50, meta.Usage.CompletionTokens, "usage is reported for failed parses")
	})
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{``, nil},
		{`null`, nil},
		{`2`, fptr(2)},
		{`0`, nil},
		{`"0.5"`, fptr(0.5)},
		{`"1/2"`, fptr(0.5)},
		{`"1 1/2"`, fptr(1.5)},
		{`"a pinch"`, nil},
		{`"1/0"`, nil},
		{`true`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseQuantity(json.RawMessage(tt.raw)))
		})
	}
}

func TestIngredientName(t *testing.T) {
	assert.Equal(t, "flour", Ingredient{Text: "2 cups flour", Item: " flour "}.Name())
	assert.Equal(t, "salt to taste", Ingredient{Text: " salt to taste "}.Name())
	assert.Empty(t, Ingredient{}.Name())
}

func TestRecipeUpdatedTime(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, now, Recipe{}.updatedTime(now))
	assert.Equal(t, now, Recipe{UpdatedAt: "yesterday"}.updatedTime(now))
	assert.True(t, Recipe{UpdatedAt: "2024-02-01T10:00:00Z"}.updatedTime(now).Equal(time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC)))
}
