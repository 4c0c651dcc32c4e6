package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recipe-planner/internal/auth"
	"recipe-planner/internal/categorize"
	"recipe-planner/internal/clipper"
	"recipe-planner/internal/config"
	"recipe-planner/internal/database"
	"recipe-planner/internal/ghost"
	"recipe-planner/internal/llm"
	"recipe-planner/internal/mealplan"
	"recipe-planner/internal/metrics"
	"recipe-planner/internal/recipe"
	"recipe-planner/internal/shopping"
	"recipe-planner/internal/storage"
	"recipe-planner/internal/user"
)

// ErrLLMUnavailable is returned by operations that need a language model
// when no provider is configured.
var ErrLLMUnavailable = errors.New("no LLM provider configured")

// App holds the application's dependencies.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *database.DB
	Recipes   *recipe.Repository
	MealPlans *mealplan.Repository
	Users     *user.Repository
	Lists     *shopping.Repository
	Metrics   *metrics.Store
	Shopping  *shopping.Service

	// Tokens is nil unless JWT_SECRET is set.
	Tokens *auth.Tokens

	// Archive is nil unless RECIPE_ARCHIVE_PATH is set.
	Archive *storage.Archive

	saver       *archivingSaver
	ghostClient ghost.Client
	extractor   *recipe.Extractor
	clipper     *clipper.Clipper
	classifier  *categorize.CachedClassifier
	closers     []func() error

	// ingestDelay spaces extraction calls to stay under provider rate limits.
	ingestDelay time.Duration
	started     time.Time
}

// New opens the database and wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:      cfg,
		Logger:      logger,
		DB:          db,
		Recipes:     recipe.NewRepository(db.X, logger),
		MealPlans:   mealplan.NewRepository(db.X),
		Users:       user.NewRepository(db.X),
		Lists:       shopping.NewRepository(db.X),
		Metrics:     metrics.NewStore(db.X),
		ingestDelay: 5 * time.Second,
		started:     time.Now(),
	}
	a.closers = append(a.closers, db.Close)

	if cfg.RecipeArchivePath != "" {
		if a.Archive, err = storage.NewArchive(cfg.RecipeArchivePath); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.saver = &archivingSaver{recipes: a.Recipes, archive: a.Archive, logger: logger}

	if cfg.JWTSecret != "" {
		if a.Tokens, err = auth.NewTokens(cfg.JWTSecret); err != nil {
			a.Close()
			return nil, err
		}
	}

	textGen, err := a.newTextGenerator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	keywords, err := categorize.NewKeywordClassifier(cfg.IncludeCannedCategory)
	if err != nil {
		a.Close()
		return nil, err
	}
	var inner shopping.Classifier = keywords
	if textGen != nil {
		inner = categorize.NewLLMClassifier(textGen, keywords, a.Metrics, logger)
	}
	a.classifier, err = categorize.NewCachedClassifier(inner, cfg.CategoryCachePath, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RequireGhost() == nil {
		a.ghostClient = ghost.NewClient(cfg)
	}

	if textGen != nil {
		a.extractor = recipe.NewExtractor(textGen)
		var publisher ghost.Client
		if a.ghostClient != nil && cfg.GhostAdminKey != "" && cfg.GhostAdminKey != cfg.GhostContentKey {
			publisher = a.ghostClient
		}
		a.clipper = clipper.NewClipper(a.extractor, a.saver, publisher, a.Metrics, logger)
	}

	a.Shopping = shopping.NewService(a.MealPlans, a.Recipes, a.Lists, a.classifier, logger)
	return a, nil
}

// newTextGenerator picks Groq when configured, then Gemini. It returns nil
// when neither is available.
func (a *App) newTextGenerator(ctx context.Context) (llm.TextGenerator, error) {
	switch {
	case a.Config.GroqAPIKey != "":
		a.Logger.Debug("using groq text generator")
		return llm.NewGroqClient(a.Config), nil
	case a.Config.GeminiAPIKey != "":
		gemini, err := llm.NewGeminiClient(ctx, a.Config)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gemini.Close)
		a.Logger.Debug("using gemini text generator")
		return gemini, nil
	default:
		a.Logger.Info("no LLM provider configured, using keyword classification only")
		return nil, nil
	}
}

// ClipRecipe clips a recipe page into the recipe store.
func (a *App) ClipRecipe(ctx context.Context, url string) (*recipe.Recipe, error) {
	if a.clipper == nil {
		return nil, clipper.ErrUnavailable
	}
	return a.clipper.ClipURL(ctx, url)
}

// ExportRecipes snapshots every stored recipe into archive.
func (a *App) ExportRecipes(ctx context.Context, archive *storage.Archive) (int, error) {
	recipes, err := a.Recipes.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, rec := range recipes {
		if err := archive.Save(rec); err != nil {
			return i, err
		}
	}
	return len(recipes), nil
}

// ImportRecipes stores every recipe found in archive, replacing existing
// recipes with the same id.
func (a *App) ImportRecipes(ctx context.Context, archive *storage.Archive) (int, error) {
	recipes, err := archive.LoadAll()
	if err != nil {
		return 0, err
	}
	for i, rec := range recipes {
		if err := a.Recipes.Save(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recipes), nil
}

// archivingSaver stores recipes and, when an archive is configured, keeps
// a snapshot of them. A failed snapshot does not fail the save.
type archivingSaver struct {
	recipes *recipe.Repository
	archive *storage.Archive
	logger  *zap.Logger
}

func (s *archivingSaver) Save(ctx context.Context, rec recipe.Recipe) error {
	if err := s.recipes.Save(ctx, rec); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.Save(rec); err != nil {
			s.logger.Warn("failed to archive recipe", zap.String("recipe_id", rec.ID), zap.Error(err))
		}
	}
	return nil
}

// Health reports process health for the status endpoint.
func (a *App) Health() metrics.SysHealth {
	return metrics.GetSysHealth(a.Config.DatabasePath, a.started)
}

// Close persists the category cache and releases every resource, in
// reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	if a.classifier != nil {
		if err := a.classifier.SaveCache(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
