package categorize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-planner/internal/shopping"
)

func TestKeywordClassifier(t *testing.T) {
	k, err := NewKeywordClassifier(false)
	require.NoError(t, err)

	tests := []struct {
		name string
		want shopping.Category
	}{
		{"Apple", shopping.CategoryProduce},
		{"2 large tomatoes", shopping.CategoryProduce},
		{"red bell pepper", shopping.CategoryProduce},
		{"freshly ground black pepper", shopping.CategorySpices},
		{"boneless chicken breasts", shopping.CategoryMeatSeafood},
		{"chicken broth", shopping.CategoryPantry},
		{"eggs", shopping.CategoryDairy},
		{"unsalted butter", shopping.CategoryDairy},
		{"peanut butter", shopping.CategoryPantry},
		{"extra-virgin olive oil", shopping.CategoryPantry},
		{"ice cream", shopping.CategoryFrozen},
		{"frozen peas", shopping.CategoryFrozen},
		{"soy sauce", shopping.CategoryCondiments},
		{"sourdough bread", shopping.CategoryBakery},
		{"sparkling water", shopping.CategoryBeverages},
		{"berries", shopping.CategoryProduce},
		{"paper towels", shopping.CategoryOther},
		{"", shopping.CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, k.Classify(context.Background(), tt.name))
		})
	}
}

func TestKeywordClassifier_Canned(t *testing.T) {
	folded, err := NewKeywordClassifier(false)
	require.NoError(t, err)
	withCanned, err := NewKeywordClassifier(true)
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, shopping.CategoryPantry, folded.Classify(ctx, "coconut milk"))
	assert.Equal(t, shopping.CategoryCanned, withCanned.Classify(ctx, "coconut milk"))
	assert.Equal(t, shopping.CategoryCanned, withCanned.Classify(ctx, "diced tomatoes"))

	assert.NotContains(t, folded.Categories(), shopping.CategoryCanned)
	assert.Contains(t, withCanned.Categories(), shopping.CategoryCanned)
}

func TestKeywordClassifier_LongestMatchWins(t *testing.T) {
	k, err := NewKeywordClassifierFromYAML([]byte(`
dairy: [cream]
frozen: [ice cream]
pantry: [cream of tartar]
`), true)
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, shopping.CategoryDairy, k.Classify(ctx, "heavy cream"))
	assert.Equal(t, shopping.CategoryFrozen, k.Classify(ctx, "vanilla ice cream"))
	assert.Equal(t, shopping.CategoryPantry, k.Classify(ctx, "Cream of Tartar"))
	assert.Equal(t, shopping.CategoryOther, k.Classify(ctx, "creamer"), "keywords match whole words only")
}

func TestNewKeywordClassifierFromYAML_Errors(t *testing.T) {
	_, err := NewKeywordClassifierFromYAML([]byte(`snacks: [chips]`), false)
	assert.Error(t, err)

	_, err = NewKeywordClassifierFromYAML([]byte(`dairy: [cream`), false)
	assert.Error(t, err)
}
