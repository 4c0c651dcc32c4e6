package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"recipe-planner/internal/database"
)

// Repository handles persistence of shopping lists.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new shopping list repository.
func NewRepository(d *sqlx.DB) *Repository {
	return &Repository{db: d}
}

type shoppingListRow struct {
	ID              int64  `db:"id"`
	UserID          string `db:"user_id"`
	WeekStart       string `db:"week_start"`
	CheckedItemKeys string `db:"checked_item_keys"`
	CustomItems     string `db:"custom_items"`
	UpdatedAt       string `db:"updated_at"`
}

// Get retrieves the list of a user for the week starting at weekStart.
// It returns nil when no list was saved for that week.
func (r *Repository) Get(ctx context.Context, userID string, weekStart time.Time) (*ShoppingList, error) {
	var row shoppingListRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, user_id, week_start, checked_item_keys, custom_items, updated_at
		 FROM shopping_lists WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.Format(database.DateLayout))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shopping list by user and week: %w", err)
	}
	return row.toList()
}

// Upsert replaces the stored list for (user, week) or creates it.
func (r *Repository) Upsert(ctx context.Context, list *ShoppingList) error {
	checked := list.CheckedItemKeys
	if checked == nil {
		checked = []string{}
	}
	checkedJSON, err := json.Marshal(checked)
	if err != nil {
		return fmt.Errorf("failed to marshal checked item keys: %w", err)
	}
	custom := list.CustomItems
	if custom == nil {
		custom = []CustomItem{}
	}
	customJSON, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to marshal custom items: %w", err)
	}

	var id int64
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO shopping_lists (user_id, week_start, checked_item_keys, custom_items, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, week_start) DO UPDATE SET
		   checked_item_keys = excluded.checked_item_keys,
		   custom_items = excluded.custom_items,
		   updated_at = excluded.updated_at
		 RETURNING id`,
		list.UserID,
		list.WeekStart.Format(database.DateLayout),
		string(checkedJSON),
		string(customJSON),
		list.UpdatedAt.UTC().Format(database.TimeLayout),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert shopping list: %w", err)
	}
	list.ID = id
	return nil
}

func (row shoppingListRow) toList() (*ShoppingList, error) {
	weekStart, err := time.Parse(database.DateLayout, row.WeekStart)
	if err != nil {
		return nil, fmt.Errorf("failed to parse week start %q: %w", row.WeekStart, err)
	}
	updatedAt, err := time.Parse(database.TimeLayout, row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated at %q: %w", row.UpdatedAt, err)
	}

	list := &ShoppingList{
		ID:        row.ID,
		UserID:    row.UserID,
		WeekStart: weekStart,
		UpdatedAt: updatedAt,
	}
	if err := json.Unmarshal([]byte(row.CheckedItemKeys), &list.CheckedItemKeys); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checked item keys: %w", err)
	}
	if err := json.Unmarshal([]byte(row.CustomItems), &list.CustomItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal custom items: %w", err)
	}
	return list, nil
}
