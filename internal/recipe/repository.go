package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"recipe-planner/internal/database"
)

// Repository is a database-backed repository for recipes.
type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRepository creates a new Repository.
func NewRepository(d *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{db: d, logger: logger}
}

type recipeRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Data      string `db:"data"`
	UpdatedAt string `db:"updated_at"`
}

// Save inserts or updates a recipe in the database.
func (r *Repository) Save(ctx context.Context, rec Recipe) error {
	if rec.ID == "" {
		return errors.New("recipe has no id")
	}
	recipeJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	if rec.UpdatedAt != "" {
		if _, err := time.Parse(time.RFC3339, rec.UpdatedAt); err != nil {
			r.logger.Warn("unparsable recipe updated_at, using current time",
				zap.String("recipe_id", rec.ID),
				zap.String("updated_at", rec.UpdatedAt),
				zap.Error(err))
		}
	}
	updatedAt := rec.updatedTime(time.Now().UTC())

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO recipes (id, title, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, data = excluded.data, updated_at = excluded.updated_at`,
		rec.ID, rec.Title, string(recipeJSON), updatedAt.UTC().Format(database.TimeLayout))
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

// Get retrieves a recipe by its ID. It returns nil when the recipe does
// not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Recipe, error) {
	var row recipeRow
	err := r.db.GetContext(ctx, &row, `SELECT id, title, data, updated_at FROM recipes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe by ID: %w", err)
	}

	var rec Recipe
	if err := json.Unmarshal([]byte(row.Data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w", err)
	}
	return &rec, nil
}

// GetByIDs retrieves multiple recipes by their IDs. Unknown IDs are
// silently absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]Recipe, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, title, data, updated_at FROM recipes WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build recipes query: %w", err)
	}
	var rows []recipeRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get recipes by IDs: %w", err)
	}
	return r.decode(rows), nil
}

// List retrieves all recipes ordered by title.
func (r *Repository) List(ctx context.Context) ([]Recipe, error) {
	var rows []recipeRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, title, data, updated_at FROM recipes ORDER BY title`); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return r.decode(rows), nil
}

// Count returns the number of recipes in the database.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM recipes`); err != nil {
		return 0, fmt.Errorf("failed to count recipes: %w", err)
	}
	return count, nil
}

// Delete removes a recipe. Deleting an unknown recipe is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete recipe %s: %w", id, err)
	}
	return nil
}

// UpdatedAt returns the stored updated_at of a recipe, or "" when absent.
func (r *Repository) UpdatedAt(ctx context.Context, id string) (string, error) {
	rec, err := r.Get(ctx, id)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.UpdatedAt, nil
}

func (r *Repository) decode(rows []recipeRow) []Recipe {
	recipes := make([]Recipe, 0, len(rows))
	for _, row := range rows {
		var rec Recipe
		if err := json.Unmarshal([]byte(row.Data), &rec); err != nil {
			r.logger.Warn("skipping recipe with corrupt JSON", zap.String("recipe_id", row.ID), zap.Error(err))
			continue
		}
		recipes = append(recipes, rec)
	}
	return recipes
}
