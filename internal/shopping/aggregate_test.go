package shopping

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-planner/internal/recipe"
)

func qty(v float64) *float64 { return &v }

// countingClassifier records every name it is asked about.
type countingClassifier struct {
	calls  []string
	answer Category
}

func (c *countingClassifier) Classify(_ context.Context, name string) Category {
	c.calls = append(c.calls, name)
	if c.answer == "" {
		return CategoryOther
	}
	return c.answer
}

func TestAggregate_MergesAcrossRecipes(t *testing.T) {
	ctx := context.Background()
	recipes := []RecipeIngredients{
		{Title: "Pancakes", Lines: []recipe.Ingredient{
			{Text: "2 cups flour", Quantity: qty(2), Unit: "cups", Item: "flour", Category: "pantry"},
		}},
		{Title: "Waffles", Lines: []recipe.Ingredient{
			{Text: "1 cup flour", Quantity: qty(1), Unit: "cup", Item: "flour", Category: "pantry"},
		}},
	}

	agg := Aggregate(ctx, &countingClassifier{}, recipes, nil)

	require.Equal(t, 1, agg.Len())
	e, ok := agg.Get("flour|cups")
	require.True(t, ok)
	want := &Entry{
		Key:      "flour|cups",
		Name:     "flour",
		Quantity: 3,
		Unit:     "cups",
		Category: CategoryPantry,
		Sources:  []string{"Pancakes", "Waffles"},
	}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Errorf("aggregated entry mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_MissingQuantityCountsAsOne(t *testing.T) {
	recipes := []RecipeIngredients{
		{Title: "Soup", Lines: []recipe.Ingredient{
			{Text: "salt to taste", Item: "salt", Category: "spices"},
		}},
		{Title: "Stew", Lines: []recipe.Ingredient{
			{Text: "salt to taste", Item: "salt", Category: "spices"},
		}},
	}

	agg := Aggregate(context.Background(), nil, recipes[:1], nil)
	e, ok := agg.Get("salt|")
	require.True(t, ok)
	assert.Equal(t, 1.0, e.Quantity)

	agg = Aggregate(context.Background(), nil, recipes, nil)
	e, _ = agg.Get("salt|")
	assert.Equal(t, 2.0, e.Quantity)
}

func TestAggregate_DifferentUnitsStaySeparate(t *testing.T) {
	recipes := []RecipeIngredients{
		{Title: "Bread", Lines: []recipe.Ingredient{
			{Text: "500 g flour", Quantity: qty(500), Unit: "grams", Item: "flour"},
			{Text: "1 cup flour", Quantity: qty(1), Unit: "cup", Item: "flour"},
		}},
	}

	agg := Aggregate(context.Background(), nil, recipes, nil)

	assert.Equal(t, 2, agg.Len())
	_, ok := agg.Get("flour|g")
	assert.True(t, ok)
	_, ok = agg.Get("flour|cups")
	assert.True(t, ok)
}

func TestAggregate_NameFallsBackToTextAndSkipsEmpty(t *testing.T) {
	recipes := []RecipeIngredients{
		{Title: "Salad", Lines: []recipe.Ingredient{
			{Text: "Lettuce"},
			{Text: "   "},
			{},
		}},
	}

	agg := Aggregate(context.Background(), nil, recipes, nil)

	require.Equal(t, 1, agg.Len())
	e, ok := agg.Get("lettuce|")
	require.True(t, ok)
	assert.Equal(t, "Lettuce", e.Name)
}

func TestAggregate_ClassifiesOnlyMissingOrOtherCategories(t *testing.T) {
	classifier := &countingClassifier{answer: CategoryProduce}
	recipes := []RecipeIngredients{
		{Title: "Mix", Lines: []recipe.Ingredient{
			{Text: "milk", Item: "milk", Category: "dairy"},
			{Text: "apple", Item: "apple"},
			{Text: "kale", Item: "kale", Category: "other"},
			{Text: "thing", Item: "thing", Category: "not-a-category"},
			{Text: "apple", Item: "apple"},
		}},
	}

	agg := Aggregate(context.Background(), classifier, recipes, nil)

	assert.Equal(t, []string{"apple", "kale"}, classifier.calls)
	milk, _ := agg.Get("milk|")
	assert.Equal(t, CategoryDairy, milk.Category)
	kale, _ := agg.Get("kale|")
	assert.Equal(t, CategoryProduce, kale.Category)
	thing, _ := agg.Get("thing|")
	assert.Equal(t, Category("not-a-category"), thing.Category)
}

func TestAggregate_ClassifierAnsweringOtherIsAccepted(t *testing.T) {
	classifier := &countingClassifier{answer: CategoryOther}
	recipes := []RecipeIngredients{
		{Title: "Mystery", Lines: []recipe.Ingredient{{Text: "unobtainium", Item: "unobtainium"}}},
	}

	agg := Aggregate(context.Background(), classifier, recipes, nil)

	e, _ := agg.Get("unobtainium|")
	assert.Equal(t, CategoryOther, e.Category)
	assert.Len(t, classifier.calls, 1)
}

func TestAggregate_CustomItems(t *testing.T) {
	recipes := []RecipeIngredients{
		{Title: "Pancakes", Lines: []recipe.Ingredient{
			{Text: "2 eggs", Quantity: qty(2), Item: "eggs", Category: "dairy"},
		}},
	}
	custom := []CustomItem{
		{Ingredient: "Eggs", Quantity: qty(6), Category: CategoryDairy},
		{Ingredient: "Eggs", Category: CategoryDairy, SourceRecipeTitle: "Omelette"},
		{Ingredient: "paper towels", Category: CategoryOther},
	}

	agg := Aggregate(context.Background(), &countingClassifier{}, recipes, custom)

	eggs, ok := agg.Get("eggs|")
	require.True(t, ok)
	assert.Equal(t, 9.0, eggs.Quantity)
	assert.Equal(t, []string{"Pancakes", "Omelette"}, eggs.Sources)

	towels, ok := agg.Get("paper towels|")
	require.True(t, ok)
	assert.Empty(t, towels.Sources)
}

func TestAggregate_CommutativeForSharedKeys(t *testing.T) {
	a := RecipeIngredients{Title: "A", Lines: []recipe.Ingredient{
		{Text: "2 cups flour", Quantity: qty(2), Unit: "cups", Item: "flour", Category: "pantry"},
		{Text: "sugar", Item: "sugar", Category: "pantry"},
	}}
	b := RecipeIngredients{Title: "B", Lines: []recipe.Ingredient{
		{Text: "1.5 cup Flour", Quantity: qty(1.5), Unit: "cup", Item: "Flour", Category: "pantry"},
		{Text: "3 tbsp sugar", Quantity: qty(3), Item: "sugar", Category: "pantry"},
	}}

	ab := Aggregate(context.Background(), nil, []RecipeIngredients{a, b}, nil)
	ba := Aggregate(context.Background(), nil, []RecipeIngredients{b, a}, nil)

	require.Equal(t, ab.Len(), ba.Len())
	for _, e1 := range ab.Entries() {
		e2, ok := ba.Get(e1.Key)
		require.True(t, ok, "key %s", e1.Key)
		assert.Equal(t, e1.Quantity, e2.Quantity, "quantity of %s", e1.Key)

		s1 := append([]string{}, e1.Sources...)
		s2 := append([]string{}, e2.Sources...)
		sort.Strings(s1)
		sort.Strings(s2)
		assert.Equal(t, s1, s2, "sources of %s", e1.Key)
	}
}
