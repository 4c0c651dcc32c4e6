package categorize

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"recipe-planner/internal/llm"
	"recipe-planner/internal/shared"
	"recipe-planner/internal/shopping"
)

//go:embed classifier_prompt.md
var classifierPrompt string

var classifierTmpl = template.Must(template.New("classifier").Parse(classifierPrompt))

const agentName = "Classifier"

// Recorder stores the token usage of LLM calls.
type Recorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// LLMClassifier asks a language model for the category of an ingredient.
// Failed calls and answers outside the allowed categories are resolved by
// the keyword fallback instead.
type LLMClassifier struct {
	gen      llm.TextGenerator
	fallback *KeywordClassifier
	recorder Recorder
	logger   *zap.Logger
}

// NewLLMClassifier creates an LLMClassifier. recorder may be nil.
func NewLLMClassifier(gen llm.TextGenerator, fallback *KeywordClassifier, recorder Recorder, logger *zap.Logger) *LLMClassifier {
	return &LLMClassifier{gen: gen, fallback: fallback, recorder: recorder, logger: logger}
}

// Classify implements shopping.Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, name string) shopping.Category {
	category, _ := c.ClassifyDetailed(ctx, name)
	return category
}

// ClassifyDetailed is Classify that also reports whether the answer came
// from the model. A false ok means the keyword fallback answered.
func (c *LLMClassifier) ClassifyDetailed(ctx context.Context, name string) (shopping.Category, bool) {
	category, err := c.ask(ctx, name)
	if err != nil {
		c.logger.Warn("llm classification failed, using keywords",
			zap.String("ingredient", name), zap.Error(err))
		return c.fallback.Classify(ctx, name), false
	}
	return category, true
}

func (c *LLMClassifier) ask(ctx context.Context, name string) (shopping.Category, error) {
	allowed := c.fallback.Categories()

	var prompt bytes.Buffer
	err := classifierTmpl.Execute(&prompt, struct {
		Name       string
		Categories []shopping.Category
	}{Name: strings.TrimSpace(name), Categories: allowed})
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}

	start := time.Now()
	resp, err := c.gen.GenerateContent(ctx, prompt.String())
	if err != nil {
		return "", fmt.Errorf("failed to get LLM response: %w", err)
	}
	c.record(ctx, resp.Usage, time.Since(start))

	var answer struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &answer); err != nil {
		return "", fmt.Errorf("failed to unmarshal LLM response: %w", err)
	}
	category, ok := shopping.ParseCategory(answer.Category)
	if !ok {
		return "", fmt.Errorf("unknown category %q", answer.Category)
	}
	for _, a := range allowed {
		if a == category {
			return category, nil
		}
	}
	return c.fallback.fold(category), nil
}

func (c *LLMClassifier) record(ctx context.Context, usage shared.TokenUsage, latency time.Duration) {
	if c.recorder == nil {
		return
	}
	meta := shared.AgentMeta{AgentName: agentName, Usage: usage, Latency: latency}
	if err := c.recorder.RecordMeta(ctx, meta); err != nil {
		c.logger.Warn("failed to record classifier metrics", zap.Error(err))
	}
}
