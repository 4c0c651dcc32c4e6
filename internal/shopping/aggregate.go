package shopping

import (
	"context"
	"strings"
)

// Entry is one aggregated ingredient. Sources holds the titles of the
// recipes that contributed to it, deduplicated, in first-seen order.
type Entry struct {
	Key      string
	Name     string
	Quantity float64
	Unit     string
	Category Category
	Sources  []string
}

func (e *Entry) addSource(title string) {
	if title == "" {
		return
	}
	for _, s := range e.Sources {
		if s == title {
			return
		}
	}
	e.Sources = append(e.Sources, title)
}

// Aggregation is an insertion-ordered map from key to entry.
type Aggregation struct {
	order   []string
	entries map[string]*Entry
}

func newAggregation() *Aggregation {
	return &Aggregation{entries: make(map[string]*Entry)}
}

// Len returns the number of distinct keys.
func (a *Aggregation) Len() int { return len(a.order) }

// Get returns the entry for key, if any.
func (a *Aggregation) Get(key string) (*Entry, bool) {
	e, ok := a.entries[key]
	return e, ok
}

// Entries returns the entries in insertion order.
func (a *Aggregation) Entries() []*Entry {
	out := make([]*Entry, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.entries[k])
	}
	return out
}

// merge folds one occurrence into the accumulator. Occurrences with the
// same name but different units stay separate entries.
func (a *Aggregation) merge(ctx context.Context, classifier Classifier, name string, quantity *float64, unit, declaredCategory, source string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	unit = NormalizeUnit(unit)
	key := Key(name, unit)

	qty := 1.0
	if quantity != nil && *quantity != 0 {
		qty = *quantity
	}

	if e, ok := a.entries[key]; ok {
		e.Quantity += qty
		e.addSource(source)
		return
	}

	e := &Entry{
		Key:      key,
		Name:     name,
		Quantity: qty,
		Unit:     unit,
		Category: resolveCategory(ctx, classifier, declaredCategory, name),
	}
	e.addSource(source)
	a.entries[key] = e
	a.order = append(a.order, key)
}

// Aggregate folds the ingredient lines of every recipe, then the custom
// items, into one keyed collection. Lines without a quantity count as 1.
// The classifier is only consulted for entries whose declared category is
// missing or generic.
func Aggregate(ctx context.Context, classifier Classifier, recipes []RecipeIngredients, custom []CustomItem) *Aggregation {
	agg := newAggregation()
	for _, r := range recipes {
		for _, line := range r.Lines {
			agg.merge(ctx, classifier, line.Name(), line.Quantity, line.Unit, line.Category, r.Title)
		}
	}
	for _, c := range custom {
		agg.merge(ctx, classifier, c.Ingredient, c.Quantity, c.Unit, string(c.Category), c.SourceRecipeTitle)
	}
	return agg
}
