package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"recipe-planner/internal/recipe"
)

// unversioned names the snapshot of a recipe without an updated_at.
const unversioned = "latest"

// Archive keeps a JSON snapshot of the latest version of every recipe on
// disk, so the database can be rebuilt without re-running extraction.
type Archive struct {
	basePath string
}

// NewArchive creates a new Archive and ensures the base directory exists.
func NewArchive(basePath string) (*Archive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", basePath, err)
	}
	return &Archive{basePath: basePath}, nil
}

// sanitizeTimestamp makes the timestamp safe for filenames.
func sanitizeTimestamp(ts string) string {
	if ts == "" {
		return unversioned
	}
	return strings.ReplaceAll(ts, ":", "-")
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\_`) || id == "." || id == ".." {
		return fmt.Errorf("recipe id %q cannot be archived", id)
	}
	return nil
}

// getVersionedPath returns the full path for a given recipe ID and version.
func (a *Archive) getVersionedPath(recipeID, updatedAt string) string {
	filename := fmt.Sprintf("%s_%s.json", recipeID, sanitizeTimestamp(updatedAt))
	return filepath.Join(a.basePath, filename)
}

// Save replaces the snapshot of a recipe with its current version.
func (a *Archive) Save(rec recipe.Recipe) error {
	if err := validID(rec.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}

	if err := a.RemoveStaleVersions(rec.ID); err != nil {
		return err
	}
	filePath := a.getVersionedPath(rec.ID, rec.UpdatedAt)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}
	return nil
}

// Load retrieves a recipe from a specific version file.
func (a *Archive) Load(recipeID, updatedAt string) (*recipe.Recipe, error) {
	if err := validID(recipeID); err != nil {
		return nil, err
	}
	return readRecipe(a.getVersionedPath(recipeID, updatedAt))
}

// Exists checks if a specific version of a recipe is archived.
func (a *Archive) Exists(recipeID, updatedAt string) bool {
	if validID(recipeID) != nil {
		return false
	}
	_, err := os.Stat(a.getVersionedPath(recipeID, updatedAt))
	return err == nil
}

// LoadAll reads every archived recipe, ordered by file name.
func (a *Archive) LoadAll() ([]recipe.Recipe, error) {
	matches, err := filepath.Glob(filepath.Join(a.basePath, "*_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	sort.Strings(matches)

	recipes := make([]recipe.Recipe, 0, len(matches))
	for _, m := range matches {
		rec, err := readRecipe(m)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *rec)
	}
	return recipes, nil
}

// RemoveStaleVersions removes all files associated with a recipeID.
func (a *Archive) RemoveStaleVersions(recipeID string) error {
	pattern := filepath.Join(a.basePath, fmt.Sprintf("%s_*.json", recipeID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("failed to glob stale files: %w", err)
	}

	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale file %s: %w", match, err)
		}
	}
	return nil
}

func readRecipe(path string) (*recipe.Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}
	var rec recipe.Recipe
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}
