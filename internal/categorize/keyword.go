// Package categorize provides the ingredient classifiers behind the
// shopping list's category resolution.
package categorize

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"recipe-planner/internal/shopping"
)

//go:embed keywords.yaml
var defaultKeywords []byte

type keyword struct {
	phrase   string
	category shopping.Category
}

// KeywordClassifier classifies names by whole-word keyword matches. It is
// deterministic and never fails, which makes it the fallback for the
// LLM-backed classifier.
type KeywordClassifier struct {
	keywords      []keyword
	includeCanned bool
}

// NewKeywordClassifier loads the embedded keyword table. Unless
// includeCanned is set, the canned category is folded into pantry.
func NewKeywordClassifier(includeCanned bool) (*KeywordClassifier, error) {
	return NewKeywordClassifierFromYAML(defaultKeywords, includeCanned)
}

// NewKeywordClassifierFromYAML builds a classifier from a YAML mapping of
// category to keyword list.
func NewKeywordClassifierFromYAML(data []byte, includeCanned bool) (*KeywordClassifier, error) {
	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table: %w", err)
	}

	k := &KeywordClassifier{includeCanned: includeCanned}
	for name, phrases := range table {
		c, ok := shopping.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q in keyword table", name)
		}
		for _, p := range phrases {
			p = normalize(p)
			if p == "" {
				continue
			}
			k.keywords = append(k.keywords, keyword{phrase: p, category: c})
		}
	}
	return k, nil
}

// Categories returns the categories this classifier can answer with.
func (k *KeywordClassifier) Categories() []shopping.Category {
	var out []shopping.Category
	for _, c := range shopping.Categories() {
		if c == shopping.CategoryCanned && !k.includeCanned {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Classify implements shopping.Classifier.
func (k *KeywordClassifier) Classify(_ context.Context, name string) shopping.Category {
	text := " " + normalize(name) + " "
	singular := " " + singularize(normalize(name)) + " "

	var best *keyword
	for i := range k.keywords {
		kw := &k.keywords[i]
		needle := " " + kw.phrase + " "
		if !strings.Contains(text, needle) && !strings.Contains(singular, needle) {
			continue
		}
		if best == nil || better(kw, best) {
			best = kw
		}
	}
	if best == nil {
		return shopping.CategoryOther
	}
	return k.fold(best.category)
}

// fold maps categories outside this classifier's enumeration onto their
// nearest member.
func (k *KeywordClassifier) fold(c shopping.Category) shopping.Category {
	if c == shopping.CategoryCanned && !k.includeCanned {
		return shopping.CategoryPantry
	}
	return c
}

// better orders candidate matches: longer phrases first, then a fixed
// tie-break so the result never depends on map iteration order.
func better(a, b *keyword) bool {
	if len(a.phrase) != len(b.phrase) {
		return len(a.phrase) > len(b.phrase)
	}
	if a.phrase != b.phrase {
		return a.phrase < b.phrase
	}
	return a.category < b.category
}

// normalize lowercases s and collapses everything but letters and digits
// into single spaces.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func singularize(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		switch {
		case strings.HasSuffix(w, "ies") && len(w) > 4:
			words[i] = strings.TrimSuffix(w, "ies") + "y"
		case strings.HasSuffix(w, "oes") && len(w) > 4:
			words[i] = strings.TrimSuffix(w, "es")
		case strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes"):
			words[i] = strings.TrimSuffix(w, "es")
		case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, " ")
}
