package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-planner/internal/clipper"
	"recipe-planner/internal/mealplan"
	"recipe-planner/internal/metrics"
	"recipe-planner/internal/recipe"
	"recipe-planner/internal/shopping"
	"recipe-planner/internal/user"
)

// ShoppingService defines the shopping list operations exposed over HTTP.
type ShoppingService interface {
	GenerateFromMealPlans(ctx context.Context, userID string, start, end time.Time) (*shopping.GeneratedList, error)
	GetSaved(ctx context.Context, userID string, weekStart time.Time) (*shopping.ShoppingList, error)
	SaveCheckedItems(ctx context.Context, userID string, weekStart time.Time, keys []string) (*shopping.ShoppingList, error)
	AddRecipeToList(ctx context.Context, userID string, weekStart time.Time, recipeID string) (*shopping.ShoppingList, error)
	AddCustomItem(ctx context.Context, userID string, weekStart time.Time, item shopping.CustomItem) (*shopping.ShoppingList, error)
	RemoveItem(ctx context.Context, userID string, weekStart time.Time, key string) (*shopping.ShoppingList, error)
	ClearCustomItems(ctx context.Context, userID string, weekStart time.Time) (*shopping.ShoppingList, error)
}

// RecipeStore loads recipes.
type RecipeStore interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// MealPlanStore reads and writes meal plans.
type MealPlanStore interface {
	AddMeal(ctx context.Context, userID string, date time.Time, slot mealplan.Slot, recipeID string, servings *int) (int64, error)
	ListRange(ctx context.Context, userID string, start, end time.Time) ([]mealplan.MealPlan, error)
}

// UserStore looks up users.
type UserStore interface {
	Get(ctx context.Context, id string) (*user.User, error)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// ClipFunc clips a recipe URL into the recipe store.
type ClipFunc func(ctx context.Context, url string) (*recipe.Recipe, error)

// Handler handles HTTP requests.
type Handler struct {
	Shopping  ShoppingService
	Recipes   RecipeStore
	MealPlans MealPlanStore
	Users     UserStore
	Tokens    TokenVerifier
	Clip      ClipFunc
	Health    func() metrics.SysHealth
	Logger    *zap.Logger
}

const userIDKey = "userID"

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, errors.New("dates must use the YYYY-MM-DD format")
	}
	return t, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// fail maps service errors to responses. Unexpected errors are logged and
// hidden behind a 500.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, shopping.ErrInvalidInput), errors.Is(err, mealplan.ErrInvalidSlot), errors.Is(err, clipper.ErrInvalidURL):
		badRequest(c, err)
	case errors.Is(err, shopping.ErrRecipeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, shopping.ErrMissingUser):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, clipper.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// respondList writes a saved list. Operations that were no-ops return
// an empty list for the week.
func respondList(c *gin.Context, userID string, week time.Time, list *shopping.ShoppingList) {
	if list == nil {
		list = &shopping.ShoppingList{
			UserID:          userID,
			WeekStart:       shopping.WeekStart(week),
			CheckedItemKeys: []string{},
			CustomItems:     []shopping.CustomItem{},
		}
	}
	c.JSON(http.StatusOK, list)
}

// GetHealth reports liveness and a system snapshot.
func (h *Handler) GetHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.Health != nil {
		resp["system"] = h.Health()
	}
	c.JSON(http.StatusOK, resp)
}

// GenerateShoppingList builds the list for the meal plans between start
// and end.
func (h *Handler) GenerateShoppingList(c *gin.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		badRequest(c, err)
		return
	}

	list, err := h.Shopping.GenerateFromMealPlans(c.Request.Context(), currentUser(c), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetSavedList returns the saved state of a week.
func (h *Handler) GetSavedList(c *gin.Context) {
	week, err := parseDate(c.Query("week"))
	if err != nil {
		badRequest(c, err)
		return
	}

	list, err := h.Shopping.GetSaved(c.Request.Context(), currentUser(c), week)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no saved shopping list for this week"})
		return
	}
	c.JSON(http.StatusOK, list)
}

type checkedRequest struct {
	Week string   `json:"week" binding:"required"`
	Keys []string `json:"keys"`
}

// SaveChecked replaces the checked item keys of a week.
func (h *Handler) SaveChecked(c *gin.Context) {
	var req checkedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	week, err := parseDate(req.Week)
	if err != nil {
		badRequest(c, err)
		return
	}
	if req.Keys == nil {
		req.Keys = []string{}
	}

	list, err := h.Shopping.SaveCheckedItems(c.Request.Context(), currentUser(c), week, req.Keys)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type addRecipeRequest struct {
	Week     string `json:"week" binding:"required"`
	RecipeID string `json:"recipe_id" binding:"required"`
}

// AddRecipe copies a recipe's ingredients into the week's custom items.
func (h *Handler) AddRecipe(c *gin.Context) {
	var req addRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	week, err := parseDate(req.Week)
	if err != nil {
		badRequest(c, err)
		return
	}

	list, err := h.Shopping.AddRecipeToList(c.Request.Context(), currentUser(c), week, req.RecipeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type addItemRequest struct {
	Week       string   `json:"week" binding:"required"`
	Ingredient string   `json:"ingredient" binding:"required"`
	Quantity   *float64 `json:"quantity"`
	Unit       string   `json:"unit"`
	Category   string   `json:"category"`
}

// AddItem appends an ad-hoc item to the week's list.
func (h *Handler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	week, err := parseDate(req.Week)
	if err != nil {
		badRequest(c, err)
		return
	}

	list, err := h.Shopping.AddCustomItem(c.Request.Context(), currentUser(c), week, shopping.CustomItem{
		Ingredient: req.Ingredient,
		Quantity:   req.Quantity,
		Unit:       req.Unit,
		Category:   shopping.Category(strings.ToLower(strings.TrimSpace(req.Category))),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// RemoveItem drops a custom item by key and un-checks it.
func (h *Handler) RemoveItem(c *gin.Context) {
	week, err := parseDate(c.Query("week"))
	if err != nil {
		badRequest(c, err)
		return
	}
	key := c.Query("key")
	if key == "" {
		badRequest(c, errors.New("key is required"))
		return
	}

	userID := currentUser(c)
	list, err := h.Shopping.RemoveItem(c.Request.Context(), userID, week, key)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondList(c, userID, week, list)
}

// ClearCustomItems removes every custom item of the week.
func (h *Handler) ClearCustomItems(c *gin.Context) {
	week, err := parseDate(c.Query("week"))
	if err != nil {
		badRequest(c, err)
		return
	}

	userID := currentUser(c)
	list, err := h.Shopping.ClearCustomItems(c.Request.Context(), userID, week)
	if err != nil {
		h.fail(c, err)
		return
	}
	respondList(c, userID, week, list)
}

type clipRequest struct {
	URL string `json:"url" binding:"required"`
}

// ClipRecipe extracts and stores the recipe found at a URL.
func (h *Handler) ClipRecipe(c *gin.Context) {
	var req clipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if h.Clip == nil {
		h.fail(c, clipper.ErrUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
	defer cancel()

	rec, err := h.Clip(ctx, req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GetRecipe returns a stored recipe.
func (h *Handler) GetRecipe(c *gin.Context) {
	rec, err := h.Recipes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if rec == nil {
		h.fail(c, shopping.ErrRecipeNotFound)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type addMealRequest struct {
	Date     string `json:"date" binding:"required"`
	Slot     string `json:"slot" binding:"required"`
	RecipeID string `json:"recipe_id" binding:"required"`
	Servings *int   `json:"servings"`
}

// AddMeal schedules a recipe into a meal slot.
func (h *Handler) AddMeal(c *gin.Context) {
	var req addMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, err)
		return
	}
	slot, err := mealplan.ParseSlot(req.Slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Servings != nil && *req.Servings <= 0 {
		badRequest(c, errors.New("servings must be positive"))
		return
	}

	ctx := c.Request.Context()
	rec, err := h.Recipes.Get(ctx, req.RecipeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if rec == nil {
		h.fail(c, shopping.ErrRecipeNotFound)
		return
	}

	id, err := h.MealPlans.AddMeal(ctx, currentUser(c), date, slot, req.RecipeID, req.Servings)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mealplan.Meal{ID: id, Slot: slot, RecipeID: req.RecipeID, Servings: req.Servings})
}

// ListMealPlans returns the meal plans between start and end.
func (h *Handler) ListMealPlans(c *gin.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		badRequest(c, err)
		return
	}
	if end.Before(start) {
		badRequest(c, errors.New("end date is before start date"))
		return
	}

	plans, err := h.MealPlans.ListRange(c.Request.Context(), currentUser(c), start, end)
	if err != nil {
		h.fail(c, err)
		return
	}
	if plans == nil {
		plans = []mealplan.MealPlan{}
	}
	c.JSON(http.StatusOK, plans)
}
