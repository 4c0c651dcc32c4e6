package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"recipe-planner/internal/llm"
	"recipe-planner/internal/shared"
)

//go:embed extractor_prompt.md
var extractorPrompt string

var extractorTmpl = template.Must(template.New("extractor").Parse(extractorPrompt))

// extractorCategories are offered to the model for each ingredient line.
// Lines it cannot place are classified later by the shopping list.
var extractorCategories = []string{
	"produce", "meat_seafood", "dairy", "bakery", "pantry",
	"frozen", "spices", "condiments", "beverages", "other",
}

// Extractor turns raw recipe content into a structured Recipe using an LLM.
type Extractor struct {
	textGen llm.TextGenerator
}

// NewExtractor creates a new Extractor.
func NewExtractor(textGen llm.TextGenerator) *Extractor {
	return &Extractor{textGen: textGen}
}

// llmRecipe mirrors Recipe but tolerates the loose shapes models emit.
type llmRecipe struct {
	Title        string          `json:"title"`
	Ingredients  []llmIngredient `json:"ingredients"`
	Instructions flexibleList    `json:"instructions"`
	Tags         []string        `json:"tags"`
	PrepTime     string          `json:"prep_time"`
	Servings     flexibleString  `json:"servings"`
}

type llmIngredient struct {
	Text     string          `json:"text"`
	Quantity json.RawMessage `json:"quantity"`
	Unit     string          `json:"unit"`
	Item     string          `json:"item"`
	Category string          `json:"category"`
}

// Extract sends the post to the model and returns the parsed recipe along
// with the call's metadata. The returned meta is populated even when the
// response cannot be parsed, so its usage can still be recorded.
func (e *Extractor) Extract(ctx context.Context, data PostData) (Recipe, shared.AgentMeta, error) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: "Extractor"}

	prompt, err := buildExtractorPrompt(data)
	if err != nil {
		return Recipe{}, meta, err
	}

	resp, err := e.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return Recipe{}, meta, fmt.Errorf("failed to get LLM response: %w", err)
	}
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)

	var raw llmRecipe
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return Recipe{}, meta, fmt.Errorf("failed to unmarshal LLM response: %w", err)
	}

	rec := Recipe{
		ID:           data.ID,
		Title:        strings.TrimSpace(raw.Title),
		SourceURL:    data.SourceURL,
		Instructions: []string(raw.Instructions),
		Tags:         raw.Tags,
		PrepTime:     raw.PrepTime,
		Servings:     string(raw.Servings),
		UpdatedAt:    data.UpdatedAt,
	}
	if rec.Title == "" {
		rec.Title = data.Title
	}
	for _, in := range raw.Ingredients {
		line := Ingredient{
			Text:     strings.TrimSpace(in.Text),
			Quantity: parseQuantity(in.Quantity),
			Unit:     strings.TrimSpace(in.Unit),
			Item:     strings.TrimSpace(in.Item),
			Category: strings.ToLower(strings.TrimSpace(in.Category)),
		}
		if line.Text == "" && line.Item == "" {
			continue
		}
		if line.Text == "" {
			line.Text = line.Item
		}
		rec.Ingredients = append(rec.Ingredients, line)
	}
	return rec, meta, nil
}

func buildExtractorPrompt(data PostData) (string, error) {
	var buf bytes.Buffer
	err := extractorTmpl.Execute(&buf, struct {
		Post       PostData
		Categories []string
	}{Post: data, Categories: extractorCategories})
	if err != nil {
		return "", fmt.Errorf("failed to build extractor prompt: %w", err)
	}
	return buf.String(), nil
}

// parseQuantity accepts a JSON number or a string such as "2", "0.5",
// "1/2" or "1 1/2". Anything else yields no quantity.
func parseQuantity(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return nil
		}
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}

	var total float64
	for _, part := range strings.Fields(s) {
		if num, den, ok := strings.Cut(part, "/"); ok {
			a, err1 := strconv.ParseFloat(num, 64)
			b, err2 := strconv.ParseFloat(den, 64)
			if err1 != nil || err2 != nil || b == 0 {
				return nil
			}
			total += a / b
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil
		}
		total += v
	}
	if total <= 0 {
		return nil
	}
	return &total
}

// flexibleList decodes either a JSON array of strings or a single string.
type flexibleList []string

func (l *flexibleList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s = strings.TrimSpace(s); s != "" {
		*l = []string{s}
	}
	return nil
}

// flexibleString decodes a JSON string or number as a string.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleString(n.String())
	return nil
}
