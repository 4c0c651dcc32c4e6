package shopping

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-planner/internal/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.X)
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t)

	list, err := repo.Get(context.Background(), "u1", monday)

	require.NoError(t, err)
	assert.Nil(t, list)
}

func TestRepository_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	addedAt := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)

	list := &ShoppingList{
		UserID:          "u1",
		WeekStart:       monday,
		CheckedItemKeys: []string{"flour|cups"},
		CustomItems: []CustomItem{
			{Ingredient: "flour", Quantity: qty(2), Unit: "cups", Category: CategoryPantry, SourceRecipeID: "r1", SourceRecipeTitle: "Pancakes", AddedAt: addedAt},
			{Ingredient: "paper towels", Category: CategoryOther, AddedAt: addedAt},
		},
		UpdatedAt: addedAt,
	}
	require.NoError(t, repo.Upsert(ctx, list))
	assert.NotZero(t, list.ID)

	got, err := repo.Get(ctx, "u1", monday)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, list.ID, got.ID)
	assert.True(t, got.WeekStart.Equal(monday))
	assert.True(t, got.UpdatedAt.Equal(addedAt))
	assert.Equal(t, []string{"flour|cups"}, got.CheckedItemKeys)
	require.Len(t, got.CustomItems, 2)
	assert.Equal(t, "Pancakes", got.CustomItems[0].SourceRecipeTitle)
	require.NotNil(t, got.CustomItems[0].Quantity)
	assert.Equal(t, 2.0, *got.CustomItems[0].Quantity)
	assert.Nil(t, got.CustomItems[1].Quantity)
	assert.True(t, got.CustomItems[1].AddedAt.Equal(addedAt))
}

func TestRepository_UpsertReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first := &ShoppingList{UserID: "u1", WeekStart: monday, CheckedItemKeys: []string{"a|", "b|"}, UpdatedAt: time.Now()}
	require.NoError(t, repo.Upsert(ctx, first))

	second := &ShoppingList{UserID: "u1", WeekStart: monday, UpdatedAt: time.Now()}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.Get(ctx, "u1", monday)
	require.NoError(t, err)
	assert.Empty(t, got.CheckedItemKeys)
	assert.Empty(t, got.CustomItems)
}

func TestRepository_ScopedByUserAndWeek(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	nextWeek := monday.AddDate(0, 0, 7)

	require.NoError(t, repo.Upsert(ctx, &ShoppingList{UserID: "u1", WeekStart: monday, CheckedItemKeys: []string{"u1|"}, UpdatedAt: time.Now()}))
	require.NoError(t, repo.Upsert(ctx, &ShoppingList{UserID: "u2", WeekStart: monday, CheckedItemKeys: []string{"u2|"}, UpdatedAt: time.Now()}))
	require.NoError(t, repo.Upsert(ctx, &ShoppingList{UserID: "u1", WeekStart: nextWeek, CheckedItemKeys: []string{"next|"}, UpdatedAt: time.Now()}))

	got, err := repo.Get(ctx, "u2", monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2|"}, got.CheckedItemKeys)

	got, err = repo.Get(ctx, "u1", nextWeek)
	require.NoError(t, err)
	assert.Equal(t, []string{"next|"}, got.CheckedItemKeys)
}
