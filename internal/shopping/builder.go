package shopping

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// BuildList renders an aggregation as a sorted shopping list. Ids are
// assigned in aggregation order before sorting; the sort is by aisle,
// then by name, and keeps aggregation order for equal pairs. Items whose
// key appears in checked are flagged.
func BuildList(agg *Aggregation, checked []string) []Item {
	checkedSet := make(map[string]struct{}, len(checked))
	for _, k := range checked {
		checkedSet[k] = struct{}{}
	}

	items := make([]Item, 0, agg.Len())
	for i, e := range agg.Entries() {
		item := Item{
			ID:         i + 1,
			Key:        e.Key,
			Ingredient: e.Name,
			Unit:       e.Unit,
			Category:   e.Category,
			Recipes:    append([]string{}, e.Sources...),
		}
		if e.Quantity > 0 {
			q := e.Quantity
			item.Quantity = &q
		}
		_, item.Checked = checkedSet[e.Key]
		items = append(items, item)
	}

	col := collate.New(language.English)
	slices.SortStableFunc(items, func(a, b Item) int {
		if ra, rb := rank(a.Category), rank(b.Category); ra != rb {
			return ra - rb
		}
		return col.CompareString(a.Ingredient, b.Ingredient)
	})
	return items
}
