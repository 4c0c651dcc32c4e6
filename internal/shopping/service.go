package shopping

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"recipe-planner/internal/mealplan"
	"recipe-planner/internal/recipe"
)

var (
	// ErrRecipeNotFound is returned when an operation names a recipe that
	// does not exist.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrMissingUser is returned when an operation has no user context.
	ErrMissingUser = errors.New("missing user")
	// ErrInvalidInput is returned for malformed dates or items.
	ErrInvalidInput = errors.New("invalid input")
)

// MealPlanSource yields the meal plans of a user in a date range.
type MealPlanSource interface {
	ListRange(ctx context.Context, userID string, start, end time.Time) ([]mealplan.MealPlan, error)
}

// RecipeSource loads a recipe by id, returning nil when it does not exist.
type RecipeSource interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// ListStore persists weekly shopping lists.
type ListStore interface {
	Get(ctx context.Context, userID string, weekStart time.Time) (*ShoppingList, error)
	Upsert(ctx context.Context, list *ShoppingList) error
}

// Service builds shopping lists from meal plans and manages the saved
// per-week state.
//
// Mutations of one (user, week) list are serialized within the process.
// The store replaces whole records, so concurrent writers in different
// processes resolve as last-writer-wins.
type Service struct {
	plans      MealPlanSource
	recipes    RecipeSource
	lists      ListStore
	classifier Classifier
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	locks map[string]*weekLock
}

// weekLock guards one (user, week) list. refs counts holders and waiters
// so the entry can be dropped once idle.
type weekLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a new shopping list Service.
func NewService(plans MealPlanSource, recipes RecipeSource, lists ListStore, classifier Classifier, logger *zap.Logger) *Service {
	return &Service{
		plans:      plans,
		recipes:    recipes,
		lists:      lists,
		classifier: classifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		locks:      make(map[string]*weekLock),
	}
}

func (s *Service) lock(userID string, weekStart time.Time) func() {
	id := userID + "@" + weekStart.Format(time.DateOnly)
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &weekLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// GenerateFromMealPlans aggregates the ingredients of every recipe planned
// between start and end (inclusive) with the custom items saved for the
// week containing start. Recipes that cannot be loaded are skipped.
func (s *Service) GenerateFromMealPlans(ctx context.Context, userID string, start, end time.Time) (*GeneratedList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidInput, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	plans, err := s.plans.ListRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load meal plans: %w", err)
	}

	var (
		mealCount int
		recipeIDs []string
		seen      = make(map[string]struct{})
	)
	for _, p := range plans {
		for _, m := range p.Meals {
			mealCount++
			if _, ok := seen[m.RecipeID]; ok {
				continue
			}
			seen[m.RecipeID] = struct{}{}
			recipeIDs = append(recipeIDs, m.RecipeID)
		}
	}

	groups := make([]RecipeIngredients, 0, len(recipeIDs))
	for _, id := range recipeIDs {
		rec, err := s.recipes.Get(ctx, id)
		if err != nil {
			s.logger.Warn("skipping recipe that failed to load", zap.String("recipe_id", id), zap.Error(err))
			continue
		}
		if rec == nil {
			s.logger.Warn("skipping missing recipe", zap.String("recipe_id", id))
			continue
		}
		groups = append(groups, RecipeIngredients{Title: rec.Title, Lines: rec.Ingredients})
	}

	week := WeekStart(start)
	saved, err := s.lists.Get(ctx, userID, week)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved shopping list: %w", err)
	}
	var (
		custom  []CustomItem
		checked []string
	)
	if saved != nil {
		custom = saved.CustomItems
		checked = saved.CheckedItemKeys
	}

	agg := Aggregate(ctx, s.classifier, groups, custom)
	return &GeneratedList{
		WeekStart:       week,
		Items:           BuildList(agg, checked),
		RecipeCount:     len(groups),
		MealCount:       mealCount,
		CustomItemCount: len(custom),
	}, nil
}

// GetSaved returns the saved list of the week containing weekStart, or nil
// when none exists.
func (s *Service) GetSaved(ctx context.Context, userID string, weekStart time.Time) (*ShoppingList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.lists.Get(ctx, userID, WeekStart(weekStart))
}

// SaveCheckedItems replaces the checked keys of the week's list, creating
// the list when needed.
func (s *Service) SaveCheckedItems(ctx context.Context, userID string, weekStart time.Time, keys []string) (*ShoppingList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	week := WeekStart(weekStart)
	defer s.lock(userID, week)()

	list, err := s.loadOrNew(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	list.CheckedItemKeys = append([]string{}, keys...)
	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddRecipeToList copies every ingredient of a recipe into the week's
// custom items. All new items share one added-at timestamp.
func (s *Service) AddRecipeToList(ctx context.Context, userID string, weekStart time.Time, recipeID string) (*ShoppingList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	rec, err := s.recipes.Get(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe %s: %w", recipeID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("recipe %s: %w", recipeID, ErrRecipeNotFound)
	}

	addedAt := s.now()
	items := make([]CustomItem, 0, len(rec.Ingredients))
	for _, line := range rec.Ingredients {
		name := line.Name()
		if name == "" {
			continue
		}
		items = append(items, CustomItem{
			Ingredient:        name,
			Quantity:          line.Quantity,
			Unit:              line.Unit,
			Category:          resolveCategory(ctx, s.classifier, line.Category, name),
			SourceRecipeID:    rec.ID,
			SourceRecipeTitle: rec.Title,
			AddedAt:           addedAt,
		})
	}

	week := WeekStart(weekStart)
	defer s.lock(userID, week)()

	list, err := s.loadOrNew(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	list.CustomItems = append(list.CustomItems, items...)
	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// AddCustomItem appends one ad-hoc item to the week's list.
func (s *Service) AddCustomItem(ctx context.Context, userID string, weekStart time.Time, item CustomItem) (*ShoppingList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	item.Ingredient = strings.TrimSpace(item.Ingredient)
	if item.Ingredient == "" {
		return nil, fmt.Errorf("%w: custom item has no ingredient", ErrInvalidInput)
	}
	if q := item.Quantity; q != nil && (*q < 0 || math.IsNaN(*q) || math.IsInf(*q, 0)) {
		return nil, fmt.Errorf("%w: invalid quantity %v", ErrInvalidInput, *q)
	}
	item.Category = resolveCategory(ctx, s.classifier, string(item.Category), item.Ingredient)
	item.AddedAt = s.now()

	week := WeekStart(weekStart)
	defer s.lock(userID, week)()

	list, err := s.loadOrNew(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	list.CustomItems = append(list.CustomItems, item)
	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// RemoveItem drops every custom item with the given key and un-checks it.
// A malformed key or a week without a list is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID string, weekStart time.Time, key string) (*ShoppingList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	name, unit, ok := ParseKey(key)
	if !ok {
		s.logger.Debug("ignoring malformed item key", zap.String("key", key))
		return nil, nil
	}
	target := Key(name, unit)

	week := WeekStart(weekStart)
	defer s.lock(userID, week)()

	list, err := s.lists.Get(ctx, userID, week)
	if err != nil {
		return nil, fmt.Errorf("failed to load shopping list: %w", err)
	}
	if list == nil {
		return nil, nil
	}

	custom := make([]CustomItem, 0, len(list.CustomItems))
	for _, c := range list.CustomItems {
		if c.Key() != target {
			custom = append(custom, c)
		}
	}
	checked := make([]string, 0, len(list.CheckedItemKeys))
	for _, k := range list.CheckedItemKeys {
		if k != target && k != key {
			checked = append(checked, k)
		}
	}
	list.CustomItems = custom
	list.CheckedItemKeys = checked
	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// ClearCustomItems removes all custom items of the week's list, keeping
// the checked state. A week without a list is a no-op.
func (s *Service) ClearCustomItems(ctx context.Context, userID string, weekStart time.Time) (*ShoppingList, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	week := WeekStart(weekStart)
	defer s.lock(userID, week)()

	list, err := s.lists.Get(ctx, userID, week)
	if err != nil {
		return nil, fmt.Errorf("failed to load shopping list: %w", err)
	}
	if list == nil {
		return nil, nil
	}
	list.CustomItems = []CustomItem{}
	if err := s.save(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) loadOrNew(ctx context.Context, userID string, week time.Time) (*ShoppingList, error) {
	list, err := s.lists.Get(ctx, userID, week)
	if err != nil {
		return nil, fmt.Errorf("failed to load shopping list: %w", err)
	}
	if list == nil {
		list = &ShoppingList{
			UserID:          userID,
			WeekStart:       week,
			CheckedItemKeys: []string{},
			CustomItems:     []CustomItem{},
		}
	}
	return list, nil
}

func (s *Service) save(ctx context.Context, list *ShoppingList) error {
	list.UpdatedAt = s.now()
	if err := s.lists.Upsert(ctx, list); err != nil {
		return fmt.Errorf("failed to save shopping list: %w", err)
	}
	return nil
}
