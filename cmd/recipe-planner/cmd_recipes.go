package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"recipe-planner/internal/storage"
)

func (c *cli) ingestCmd() *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and extract recipes from Ghost",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireGhost(); err != nil {
				return err
			}
			if err := c.cfg.RequireLLM(); err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			result, err := a.IngestRecipes(cmd.Context(), prune)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, processed %d, skipped %d, failed %d, pruned %d\n",
				result.Fetched, result.Processed, result.Skipped, result.Failed, result.Pruned)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "delete recipes whose Ghost post no longer exists")
	return cmd
}

func (c *cli) clipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clip <url>",
		Short: "Clip a recipe from a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireLLM(); err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.ClipRecipe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s (%d ingredients)\n", rec.ID, rec.Title, len(rec.Ingredients))
			return nil
		},
	}
}

func (c *cli) recipesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "Manage stored recipes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			recipes, err := a.Recipes.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range recipes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Title, r.Source)
			}
			return w.Flush()
		},
	})

	var exportDir string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every recipe to a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := c.archive(exportDir)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			n, err := a.ExportRecipes(cmd.Context(), archive)
			if err != nil {
				return fmt.Errorf("export failed after %d recipes: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d recipes\n", n)
			return nil
		},
	}
	export.Flags().StringVar(&exportDir, "dir", "", "archive directory (default: RECIPE_ARCHIVE_PATH)")

	var importDir string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Load recipes from a snapshot directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := c.archive(importDir)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			n, err := a.ImportRecipes(cmd.Context(), archive)
			if err != nil {
				return fmt.Errorf("import failed after %d recipes: %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d recipes\n", n)
			return nil
		},
	}
	imp.Flags().StringVar(&importDir, "dir", "", "archive directory (default: RECIPE_ARCHIVE_PATH)")

	cmd.AddCommand(export, imp)
	return cmd
}

func (c *cli) archive(dir string) (*storage.Archive, error) {
	if dir == "" {
		dir = c.cfg.RecipeArchivePath
	}
	if dir == "" {
		return nil, errors.New("--dir or RECIPE_ARCHIVE_PATH is required")
	}
	return storage.NewArchive(dir)
}

func (c *cli) metricsCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Remove old LLM usage records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			affected, err := a.Metrics.Cleanup(cmd.Context(), days)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records.\n", affected)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "keep records for the last N days")
	return cmd
}
