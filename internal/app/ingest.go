package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recipe-planner/internal/ghost"
	"recipe-planner/internal/recipe"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Fetched   int
	Processed int
	Skipped   int
	Failed    int
	Pruned    int
}

// IngestRecipes fetches every Ghost post and extracts the ones that are new
// or changed since the last run. Per-post failures are logged and counted.
// With prune set, Ghost-sourced recipes whose post no longer exists are
// deleted.
func (a *App) IngestRecipes(ctx context.Context, prune bool) (IngestResult, error) {
	var result IngestResult
	if a.ghostClient == nil {
		return result, fmt.Errorf("ghost is not configured: %w", a.Config.RequireGhost())
	}
	if a.extractor == nil {
		return result, ErrLLMUnavailable
	}

	posts, err := a.ghostClient.FetchRecipes(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch recipes from ghost: %w", err)
	}
	result.Fetched = len(posts)
	a.Logger.Info("fetched recipe posts from ghost", zap.Int("count", len(posts)))

	live := make(map[string]struct{}, len(posts))
	first := true
	for _, post := range posts {
		live[post.ID] = struct{}{}

		stored, err := a.Recipes.UpdatedAt(ctx, post.ID)
		if err != nil {
			return result, err
		}
		if stored != "" && stored == post.UpdatedAt {
			a.Logger.Debug("recipe up to date, skipping", zap.String("title", post.Title))
			result.Skipped++
			continue
		}

		if !first && a.ingestDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(a.ingestDelay):
			}
		}
		first = false

		if err := a.ProcessAndSaveRecipe(ctx, post); err != nil {
			a.Logger.Warn("failed to process recipe", zap.String("post_id", post.ID), zap.String("title", post.Title), zap.Error(err))
			result.Failed++
			continue
		}
		result.Processed++
	}

	if prune {
		pruned, err := a.pruneRecipes(ctx, live)
		result.Pruned = pruned
		if err != nil {
			return result, err
		}
	}

	a.Logger.Info("ingestion complete",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("pruned", result.Pruned))
	return result, nil
}

// ProcessAndSaveRecipe extracts one Ghost post and stores the recipe.
func (a *App) ProcessAndSaveRecipe(ctx context.Context, post ghost.Post) error {
	if a.extractor == nil {
		return ErrLLMUnavailable
	}
	rec, meta, err := a.extractor.Extract(ctx, recipe.PostData{
		ID:        post.ID,
		Title:     post.Title,
		SourceURL: post.URL,
		UpdatedAt: post.UpdatedAt,
		HTML:      post.HTML,
	})
	if err := a.Metrics.RecordMeta(ctx, meta); err != nil {
		a.Logger.Warn("failed to record extraction metrics", zap.Error(err))
	}
	if err != nil {
		return fmt.Errorf("failed to extract recipe: %w", err)
	}

	rec.Source = recipe.SourceGhost
	if err := a.saver.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

func (a *App) pruneRecipes(ctx context.Context, live map[string]struct{}) (int, error) {
	all, err := a.Recipes.List(ctx)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, rec := range all {
		if rec.Source != recipe.SourceGhost {
			continue
		}
		if _, ok := live[rec.ID]; ok {
			continue
		}
		if err := a.Recipes.Delete(ctx, rec.ID); err != nil {
			return pruned, err
		}
		a.Logger.Info("pruned recipe removed from ghost", zap.String("recipe_id", rec.ID), zap.String("title", rec.Title))
		pruned++
	}
	return pruned, nil
}
