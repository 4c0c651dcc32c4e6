package shopping

import (
	"context"
	"strings"
)

// Category is the store section an ingredient is shopped in.
type Category string

const (
	CategoryProduce     Category = "produce"
	CategoryMeatSeafood Category = "meat_seafood"
	CategoryDairy       Category = "dairy"
	CategoryBakery      Category = "bakery"
	CategoryPantry      Category = "pantry"
	CategoryCanned      Category = "canned"
	CategoryFrozen      Category = "frozen"
	CategorySpices      Category = "spices"
	CategoryCondiments  Category = "condiments"
	CategoryBeverages   Category = "beverages"
	CategoryOther       Category = "other"
)

// categoryOrder is the aisle order used when rendering a list.
var categoryOrder = []Category{
	CategoryProduce,
	CategoryMeatSeafood,
	CategoryDairy,
	CategoryBakery,
	CategoryPantry,
	CategoryCanned,
	CategoryFrozen,
	CategorySpices,
	CategoryCondiments,
	CategoryBeverages,
	CategoryOther,
}

// Categories returns every known category in aisle order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory maps a free-form string onto a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categoryOrder {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// rank returns the sort position of c; unknown categories sort last.
func rank(c Category) int {
	for i, known := range categoryOrder {
		if c == known {
			return i
		}
	}
	return len(categoryOrder)
}

// Classifier resolves the category of an ingredient name. Implementations
// must always return a category, falling back to CategoryOther.
type Classifier interface {
	Classify(ctx context.Context, name string) Category
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, name string) Category

func (f ClassifierFunc) Classify(ctx context.Context, name string) Category {
	return f(ctx, name)
}

// resolveCategory returns the declared category unless it is missing or
// the generic fallback, in which case the classifier decides. Whatever the
// classifier answers is accepted as is. A declared category outside the
// enumeration is kept and sorts last.
func resolveCategory(ctx context.Context, classifier Classifier, declared, name string) Category {
	if c, ok := ParseCategory(declared); ok {
		if c != CategoryOther {
			return c
		}
	} else if d := strings.ToLower(strings.TrimSpace(declared)); d != "" {
		return Category(d)
	}
	if classifier == nil {
		return CategoryOther
	}
	return classifier.Classify(ctx, name)
}
