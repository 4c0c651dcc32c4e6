package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recipe-planner/internal/database"
	"recipe-planner/internal/recipe"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")
	for _, key := range []string{"JWT_SECRET", "GROQ_API_KEY", "GEMINI_API_KEY", "GHOST_API_URL", "GHOST_CONTENT_API_KEY", "GHOST_ADMIN_API_KEY", "CATEGORY_CACHE_PATH", "TELEGRAM_ALLOWED_USER_IDS", "PORT", "RECIPE_ARCHIVE_PATH"} {
		t.Setenv(key, "")
	}
	return dbPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{}
	root := c.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	c.close()
	return out.String(), err
}

func seedRecipe(t *testing.T, dbPath string) {
	t.Helper()
	db, err := database.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()
	q := 2.0
	require.NoError(t, recipe.NewRepository(db.X, zap.NewNop()).Save(context.Background(), recipe.Recipe{
		ID:    "r1",
		Title: "Pancakes",
		Ingredients: []recipe.Ingredient{
			{Text: "2 cups flour", Quantity: &q, Unit: "cups", Item: "flour", Category: "pantry"},
		},
	}))
}

func TestCLI_PlanAndShow(t *testing.T) {
	dbPath := setupEnv(t)

	out, err := run(t, "user", "create", "--name", "Ana")
	require.NoError(t, err)
	userID := strings.TrimSpace(out)
	require.NotEmpty(t, userID)

	seedRecipe(t, dbPath)

	out, err = run(t, "plan", "add", "--user", userID, "--date", "2024-03-05", "--slot", "Dinner", "--recipe", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-05 dinner Pancakes")

	out, err = run(t, "plan", "list", "--user", userID, "--start", "2024-03-04")
	require.NoError(t, err)
	assert.Contains(t, out, "r1")

	out, err = run(t, "list", "show", "--user", userID, "--start", "2024-03-04", "--end", "2024-03-10")
	require.NoError(t, err)
	assert.Contains(t, out, "Week of 2024-03-04: 1 recipes, 1 meals, 0 custom items")
	assert.Contains(t, out, "[pantry]")
	assert.Contains(t, out, "flour|cups")

	out, err = run(t, "list", "show", "--user", userID, "--start", "2024-03-04", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"recipe_count": 1`)

	out, err = run(t, "recipes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Pancakes")
}

func TestCLI_PlanAddValidation(t *testing.T) {
	dbPath := setupEnv(t)
	seedRecipe(t, dbPath)

	_, err := run(t, "plan", "add", "--user", "u1", "--date", "tomorrow", "--recipe", "r1")
	assert.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = run(t, "plan", "add", "--user", "u1", "--date", "2024-03-05", "--slot", "brunch", "--recipe", "r1")
	assert.ErrorContains(t, err, "invalid meal slot")

	_, err = run(t, "plan", "add", "--user", "u1", "--date", "2024-03-05", "--recipe", "missing")
	assert.ErrorContains(t, err, "recipe not found")

	_, err = run(t, "plan", "add", "--date", "2024-03-05", "--recipe", "r1")
	assert.ErrorContains(t, err, "--user")
}

func TestCLI_TokenIssue(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "token", "issue", "--user", "someone")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	_, err = run(t, "token", "issue", "--user", "someone")
	assert.ErrorContains(t, err, "not found")

	out, err := run(t, "user", "create", "--name", "Ana")
	require.NoError(t, err)
	out, err = run(t, "token", "issue", "--user", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestCLI_CommandsNeedingCredentials(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "ingest")
	assert.ErrorContains(t, err, "GHOST_API_URL")

	_, err = run(t, "clip", "https://example.com/pie")
	assert.ErrorContains(t, err, "GROQ_API_KEY")
}

func TestCLI_MetricsCleanup(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "metrics-cleanup", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0 old metric records")
}

func TestCLI_RecipesExportImport(t *testing.T) {
	dbPath := setupEnv(t)
	seedRecipe(t, dbPath)
	dir := t.TempDir()

	_, err := run(t, "recipes", "export")
	assert.ErrorContains(t, err, "RECIPE_ARCHIVE_PATH")

	out, err := run(t, "recipes", "export", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 recipes")

	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "fresh.db"))
	t.Setenv("RECIPE_ARCHIVE_PATH", dir)
	out, err = run(t, "recipes", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 recipes")

	out, err = run(t, "recipes", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Pancakes")
}
