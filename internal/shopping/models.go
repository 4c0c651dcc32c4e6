package shopping

import (
	"time"

	"recipe-planner/internal/recipe"
)

// CustomItem is a shopping entry the user added, either ad hoc or by
// adding a whole recipe to the list.
type CustomItem struct {
	Ingredient        string    `json:"ingredient"`
	Quantity          *float64  `json:"quantity,omitempty"`
	Unit              string    `json:"unit,omitempty"`
	Category          Category  `json:"category"`
	SourceRecipeID    string    `json:"source_recipe_id,omitempty"`
	SourceRecipeTitle string    `json:"source_recipe_title,omitempty"`
	AddedAt           time.Time `json:"added_at"`
}

// Key returns the aggregation key of the item.
func (c CustomItem) Key() string {
	return Key(c.Ingredient, c.Unit)
}

// ShoppingList is the persisted per-user, per-week state: which items are
// checked and which custom items were added.
type ShoppingList struct {
	ID              int64        `json:"id"`
	UserID          string       `json:"user_id"`
	WeekStart       time.Time    `json:"week_start"`
	CheckedItemKeys []string     `json:"checked_item_keys"`
	CustomItems     []CustomItem `json:"custom_items"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// RecipeIngredients is the ingredient list of one recipe together with
// the title credited in the aggregated list.
type RecipeIngredients struct {
	Title string
	Lines []recipe.Ingredient
}

// Item is one rendered line of the shopping list.
type Item struct {
	ID         int      `json:"id"`
	Key        string   `json:"key"`
	Ingredient string   `json:"ingredient"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Category   Category `json:"category"`
	Recipes    []string `json:"recipes"`
	Checked    bool     `json:"checked"`
}

// GeneratedList is the result of building a list from meal plans.
type GeneratedList struct {
	WeekStart       time.Time `json:"week_start"`
	Items           []Item    `json:"items"`
	RecipeCount     int       `json:"recipe_count"`
	MealCount       int       `json:"meal_count"`
	CustomItemCount int       `json:"custom_item_count"`
}
