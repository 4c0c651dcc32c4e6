package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"recipe-planner/internal/shopping"
)

// DetailedClassifier is a classifier that can tell a definitive answer
// from a degraded one.
type DetailedClassifier interface {
	ClassifyDetailed(ctx context.Context, name string) (shopping.Category, bool)
}

// CachedClassifier wraps a classifier and remembers its answer per
// normalized ingredient name. The cache can be persisted to a JSON file so
// repeated runs do not pay for the same classification twice.
type CachedClassifier struct {
	inner         shopping.Classifier
	cacheFilePath string
	logger        *zap.Logger

	mu    sync.Mutex
	cache map[string]shopping.Category
}

// NewCachedClassifier creates a CachedClassifier. With a non-empty
// cacheFilePath the existing cache file is loaded; a missing file starts
// an empty cache.
func NewCachedClassifier(inner shopping.Classifier, cacheFilePath string, logger *zap.Logger) (*CachedClassifier, error) {
	c := &CachedClassifier{
		inner:         inner,
		cacheFilePath: cacheFilePath,
		logger:        logger,
		cache:         make(map[string]shopping.Category),
	}
	if cacheFilePath == "" {
		return c, nil
	}

	cacheDir := filepath.Dir(cacheFilePath)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	data, err := os.ReadFile(cacheFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("category cache not found, starting empty", zap.String("path", cacheFilePath))
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache file %s: %w", cacheFilePath, err)
	}

	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data from %s: %w", cacheFilePath, err)
	}
	for name, raw := range stored {
		if category, ok := shopping.ParseCategory(raw); ok {
			c.cache[name] = category
		}
	}

	logger.Info("loaded category cache", zap.Int("entries", len(c.cache)), zap.String("path", cacheFilePath))
	return c, nil
}

// Classify returns the cached category of name, asking the wrapped
// classifier on a miss. Concurrent misses for one name may both reach
// the wrapped classifier; the last answer is kept. Degraded answers from
// a DetailedClassifier are returned but not cached.
func (c *CachedClassifier) Classify(ctx context.Context, name string) shopping.Category {
	key := normalize(name)

	c.mu.Lock()
	category, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return category
	}

	if d, isDetailed := c.inner.(DetailedClassifier); isDetailed {
		category, ok = d.ClassifyDetailed(ctx, name)
		if !ok {
			return category
		}
	} else {
		category = c.inner.Classify(ctx, name)
	}

	c.mu.Lock()
	c.cache[key] = category
	c.mu.Unlock()
	return category
}

// Len returns the number of cached names.
func (c *CachedClassifier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// SaveCache persists the current in-memory cache to the file system. It is
// a no-op without a cache file path.
func (c *CachedClassifier) SaveCache() error {
	if c.cacheFilePath == "" {
		return nil
	}

	c.mu.Lock()
	data, err := json.MarshalIndent(c.cache, "", "  ")
	n := len(c.cache)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tmp := c.cacheFilePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.cacheFilePath); err != nil {
		return fmt.Errorf("failed to replace cache file %s: %w", c.cacheFilePath, err)
	}

	c.logger.Debug("saved category cache", zap.Int("entries", n), zap.String("path", c.cacheFilePath))
	return nil
}
