package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"recipe-planner/internal/mealplan"
	"recipe-planner/internal/shopping"
)

func (c *cli) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage meal plans",
	}

	var (
		userID, date, slot, recipeID string
		servings                     int
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Schedule a recipe into a meal slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || recipeID == "" {
				return errors.New("--user and --recipe are required")
			}
			day, err := parseDateFlag("date", date)
			if err != nil {
				return err
			}
			s, err := mealplan.ParseSlot(slot)
			if err != nil {
				return fmt.Errorf("%w: %q", err, slot)
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.Recipes.Get(cmd.Context(), recipeID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("recipe %s: %w", recipeID, shopping.ErrRecipeNotFound)
			}
			var sv *int
			if servings > 0 {
				sv = &servings
			}
			id, err := a.MealPlans.AddMeal(cmd.Context(), userID, day, s, recipeID, sv)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added meal %d: %s %s %s\n", id, day.Format(time.DateOnly), s, rec.Title)
			return nil
		},
	}
	add.Flags().StringVar(&userID, "user", "", "user id")
	add.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD)")
	add.Flags().StringVar(&slot, "slot", string(mealplan.SlotDinner), "breakfast, lunch, dinner or snack")
	add.Flags().StringVar(&recipeID, "recipe", "", "recipe id")
	add.Flags().IntVar(&servings, "servings", 0, "servings (optional)")

	var listUser, start, end string
	list := &cobra.Command{
		Use:   "list",
		Short: "List meal plans in a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listUser == "" {
				return errors.New("--user is required")
			}
			from, to, err := weekRange(start, end)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			plans, err := a.MealPlans.ListRange(cmd.Context(), listUser, from, to)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, p := range plans {
				for _, m := range p.Meals {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, p.Date.Format(time.DateOnly), m.Slot, m.RecipeID)
				}
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&listUser, "user", "", "user id")
	list.Flags().StringVar(&start, "start", "", "first date (default: start of this week)")
	list.Flags().StringVar(&end, "end", "", "last date (default: six days after start)")

	cmd.AddCommand(add, list)
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Work with shopping lists",
	}

	var (
		userID, start, end string
		asJSON             bool
	)
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the shopping list for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			from, to, err := weekRange(start, end)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			list, err := a.Shopping.GenerateFromMealPlans(cmd.Context(), userID, from, to)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			return printList(cmd, list)
		},
	}
	show.Flags().StringVar(&userID, "user", "", "user id")
	show.Flags().StringVar(&start, "start", "", "first date (default: start of this week)")
	show.Flags().StringVar(&end, "end", "", "last date (default: six days after start)")
	show.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(show)
	return cmd
}

// weekRange resolves optional start/end flags, defaulting to the current
// week.
func weekRange(start, end string) (time.Time, time.Time, error) {
	from := shopping.WeekStart(time.Now())
	if start != "" {
		t, err := parseDateFlag("start", start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	to := from.AddDate(0, 0, 6)
	if end != "" {
		t, err := parseDateFlag("end", end)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	return from, to, nil
}

func printList(cmd *cobra.Command, list *shopping.GeneratedList) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Week of %s: %d recipes, %d meals, %d custom items\n",
		list.WeekStart.Format(time.DateOnly), list.RecipeCount, list.MealCount, list.CustomItemCount)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	var current shopping.Category
	for i, it := range list.Items {
		if i == 0 || it.Category != current {
			current = it.Category
			fmt.Fprintf(w, "\n[%s]\n", current)
		}
		mark := " "
		if it.Checked {
			mark = "x"
		}
		qty := ""
		if it.Quantity != nil {
			qty = fmt.Sprintf("%g", *it.Quantity)
		}
		fmt.Fprintf(w, "[%s]\t%s\t%s\t%s\t%s\n", mark, qty, it.Unit, it.Ingredient, it.Key)
	}
	return w.Flush()
}
