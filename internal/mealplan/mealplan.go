package mealplan

import (
	"errors"
	"strings"
	"time"
)

// Slot is the meal of the day a recipe is planned for.
type Slot string

const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
	SlotSnack     Slot = "snack"
)

var slotOrder = []Slot{SlotBreakfast, SlotLunch, SlotDinner, SlotSnack}

// ErrInvalidSlot is returned for an unknown meal slot.
var ErrInvalidSlot = errors.New("invalid meal slot")

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, error) {
	slot := Slot(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range slotOrder {
		if slot == known {
			return slot, nil
		}
	}
	return "", ErrInvalidSlot
}

func slotRank(s Slot) int {
	for i, known := range slotOrder {
		if s == known {
			return i
		}
	}
	return len(slotOrder)
}

// Meal is one recipe scheduled into a slot.
type Meal struct {
	ID       int64  `json:"id"`
	Slot     Slot   `json:"slot"`
	RecipeID string `json:"recipe_id"`
	Servings *int   `json:"servings,omitempty"`
}

// MealPlan holds every meal planned for a single date.
type MealPlan struct {
	Date  time.Time `json:"date"`
	Meals []Meal    `json:"meals"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
