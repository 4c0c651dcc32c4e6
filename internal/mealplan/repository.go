package mealplan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"recipe-planner/internal/database"
)

// Repository is a database-backed repository for meal plans.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new meal plan Repository.
func NewRepository(d *sqlx.DB) *Repository {
	return &Repository{db: d}
}

type entryRow struct {
	ID       int64  `db:"id"`
	PlanDate string `db:"plan_date"`
	Slot     string `db:"slot"`
	RecipeID string `db:"recipe_id"`
	Servings *int   `db:"servings"`
}

// AddMeal schedules a recipe for a user on a date and returns the meal id.
func (r *Repository) AddMeal(ctx context.Context, userID string, date time.Time, slot Slot, recipeID string, servings *int) (int64, error) {
	if _, err := ParseSlot(string(slot)); err != nil {
		return 0, fmt.Errorf("%w: %q", err, slot)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO meal_plan_entries (user_id, plan_date, slot, recipe_id, servings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, Day(date).Format(database.DateLayout), string(slot), recipeID, servings,
		time.Now().UTC().Format(database.TimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to insert meal plan entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read meal plan entry id: %w", err)
	}
	return id, nil
}

// RemoveMeal deletes one scheduled meal of a user. Removing an unknown
// meal is not an error.
func (r *Repository) RemoveMeal(ctx context.Context, userID string, mealID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM meal_plan_entries WHERE user_id = ? AND id = ?`, userID, mealID)
	if err != nil {
		return fmt.Errorf("failed to delete meal plan entry %d: %w", mealID, err)
	}
	return nil
}

// ListRange returns the user's meal plans for every date in [start, end]
// that has at least one meal, ordered by date and then by slot.
func (r *Repository) ListRange(ctx context.Context, userID string, start, end time.Time) ([]MealPlan, error) {
	var rows []entryRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, plan_date, slot, recipe_id, servings FROM meal_plan_entries
		 WHERE user_id = ? AND plan_date >= ? AND plan_date <= ?
		 ORDER BY plan_date, id`,
		userID, Day(start).Format(database.DateLayout), Day(end).Format(database.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans for user %s: %w", userID, err)
	}

	var plans []MealPlan
	for _, row := range rows {
		date, err := time.Parse(database.DateLayout, row.PlanDate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse plan date %q: %w", row.PlanDate, err)
		}
		if n := len(plans); n == 0 || !plans[n-1].Date.Equal(date) {
			plans = append(plans, MealPlan{Date: date})
		}
		p := &plans[len(plans)-1]
		p.Meals = append(p.Meals, Meal{
			ID:       row.ID,
			Slot:     Slot(row.Slot),
			RecipeID: row.RecipeID,
			Servings: row.Servings,
		})
	}

	for i := range plans {
		meals := plans[i].Meals
		sort.SliceStable(meals, func(a, b int) bool {
			return slotRank(meals[a].Slot) < slotRank(meals[b].Slot)
		})
	}
	return plans, nil
}
