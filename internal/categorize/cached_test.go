package categorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recipe-planner/internal/shopping"
)

type countingClassifier struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClassifier) Classify(_ context.Context, name string) shopping.Category {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if name == "" {
		return shopping.CategoryOther
	}
	return shopping.CategoryProduce
}

func TestCachedClassifier_MemoizesByNormalizedName(t *testing.T) {
	inner := &countingClassifier{}
	c, err := NewCachedClassifier(inner, "", zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, shopping.CategoryProduce, c.Classify(ctx, "Kale"))
	assert.Equal(t, shopping.CategoryProduce, c.Classify(ctx, "  kale "))
	assert.Equal(t, shopping.CategoryProduce, c.Classify(ctx, "KALE"))

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, c.Len())
	assert.NoError(t, c.SaveCache(), "saving without a path is a no-op")
}

func TestCachedClassifier_Concurrent(t *testing.T) {
	c, err := NewCachedClassifier(&countingClassifier{}, "", zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, name := range []string{"kale", "leek", "chard"} {
				c.Classify(context.Background(), name)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, c.Len())
}

func TestCachedClassifier_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "categories.json")

	first, err := NewCachedClassifier(&countingClassifier{}, path, zap.NewNop())
	require.NoError(t, err)
	first.Classify(context.Background(), "Kale")
	require.NoError(t, first.SaveCache())

	inner := &countingClassifier{}
	second, err := NewCachedClassifier(inner, path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, shopping.CategoryProduce, second.Classify(context.Background(), "kale"))
	assert.Zero(t, inner.calls)
}

func TestCachedClassifier_IgnoresUnknownStoredCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"kale": "produce", "chips": "snacks"}`), 0o644))

	c, err := NewCachedClassifier(&countingClassifier{}, path, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, c.Len())
}

func TestCachedClassifier_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err := NewCachedClassifier(&countingClassifier{}, path, zap.NewNop())
	assert.Error(t, err)
}

func TestCachedClassifier_SkipsFallbackAnswers(t *testing.T) {
	gen := &mockTextGenerator{err: errors.New("provider down"), response: `{"category": "spices"}`}
	c, err := NewCachedClassifier(newTestLLMClassifier(t, gen, false, nil), filepath.Join(t.TempDir(), "categories.json"), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, shopping.CategoryDairy, c.Classify(ctx, "whole milk"))
	assert.Equal(t, 0, c.Len())

	gen.err = nil
	assert.Equal(t, shopping.CategorySpices, c.Classify(ctx, "whole milk"))
	assert.Equal(t, 1, c.Len())
	assert.Len(t, gen.prompts, 2)

	assert.Equal(t, shopping.CategorySpices, c.Classify(ctx, "whole milk"))
	assert.Len(t, gen.prompts, 2)
}
