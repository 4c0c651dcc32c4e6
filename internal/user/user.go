// Package user stores the people who own meal plans and shopping lists.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"recipe-planner/internal/database"
)

// ErrTelegramIDTaken is returned when a Telegram account is already linked
// to another user.
var ErrTelegramIDTaken = errors.New("telegram id already registered")

// User is an account.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TelegramID *int64    `json:"telegram_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository is a database-backed repository for users.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new user Repository.
func NewRepository(d *sqlx.DB) *Repository {
	return &Repository{db: d}
}

type userRow struct {
	ID         string        `db:"id"`
	Name       string        `db:"name"`
	TelegramID sql.NullInt64 `db:"telegram_id"`
	CreatedAt  string        `db:"created_at"`
}

func (r userRow) toUser() (*User, error) {
	createdAt, err := time.Parse(database.TimeLayout, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", r.CreatedAt, err)
	}
	u := &User{ID: r.ID, Name: r.Name, CreatedAt: createdAt}
	if r.TelegramID.Valid {
		id := r.TelegramID.Int64
		u.TelegramID = &id
	}
	return u, nil
}

// Create registers a new user with a fresh id.
func (r *Repository) Create(ctx context.Context, name string, telegramID *int64) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("user name is required")
	}

	if telegramID != nil {
		existing, err := r.GetByTelegramID(ctx, *telegramID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %d", ErrTelegramIDTaken, *telegramID)
		}
	}

	u := &User{
		ID:         uuid.NewString(),
		Name:       name,
		TelegramID: telegramID,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, telegram_id, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, telegramID, u.CreatedAt.Format(database.TimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// Get retrieves a user by id. It returns nil when the user does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, `SELECT id, name, telegram_id, created_at FROM users WHERE id = ?`, id)
}

// GetByTelegramID retrieves the user linked to a Telegram account, or nil.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return r.getOne(ctx, `SELECT id, name, telegram_id, created_at FROM users WHERE telegram_id = ?`, telegramID)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toUser()
}
