package telegram

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"recipe-planner/internal/metrics"
	"recipe-planner/internal/shopping"
)

// Telegram accepts at most 100 inline buttons per message.
const maxButtons = 100

var categoryTitles = map[shopping.Category]string{
	shopping.CategoryProduce:     "🥬 Produce",
	shopping.CategoryMeatSeafood: "🥩 Meat & Seafood",
	shopping.CategoryDairy:       "🧀 Dairy",
	shopping.CategoryBakery:      "🍞 Bakery",
	shopping.CategoryPantry:      "🥫 Pantry",
	shopping.CategoryCanned:      "🥫 Canned",
	shopping.CategoryFrozen:      "🧊 Frozen",
	shopping.CategorySpices:      "🧂 Spices",
	shopping.CategoryCondiments:  "🍯 Condiments",
	shopping.CategoryBeverages:   "🥤 Beverages",
	shopping.CategoryOther:       "📦 Other",
}

func formatShoppingList(list *shopping.GeneratedList) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 *Shopping List* (week of %s)\n", list.WeekStart.Format(time.DateOnly))
	fmt.Fprintf(&sb, "_%d recipes, %d meals_\n", list.RecipeCount, list.MealCount)

	if len(list.Items) == 0 {
		sb.WriteString("\nNothing to buy yet. Plan some meals or add items with /item.")
		return sb.String()
	}

	var current shopping.Category
	for i, it := range list.Items {
		if i == 0 || it.Category != current {
			current = it.Category
			title, ok := categoryTitles[current]
			if !ok {
				title = string(current)
			}
			fmt.Fprintf(&sb, "\n*%s*\n", title)
		}
		mark := "▫️"
		if it.Checked {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s `%s`\n", mark, escapeMarkdown(formatAmount(it.Quantity, it.Unit, it.Ingredient)), it.Key)
	}
	return sb.String()
}

func formatAmount(quantity *float64, unit, name string) string {
	var parts []string
	if quantity != nil {
		parts = append(parts, formatQuantity(*quantity))
	}
	if unit != "" {
		parts = append(parts, unit)
	}
	parts = append(parts, name)
	return strings.Join(parts, " ")
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(math.Round(q*100)/100, 'f', -1, 64)
}

func escapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func listKeyboard(list *shopping.GeneratedList) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(list.Items) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	week := list.WeekStart.Format(time.DateOnly)

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, it := range list.Items {
		if i == maxButtons {
			break
		}
		label := "▫️ " + it.Ingredient
		if it.Checked {
			label = "✅ " + it.Ingredient
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, toggleData(week, it.ID)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

// Callback data is limited to 64 bytes, so buttons carry the week and the
// item id instead of the item key.
func toggleData(week string, itemID int) string {
	return "t|" + week + "|" + strconv.Itoa(itemID)
}

func parseToggleData(data string) (time.Time, int, bool) {
	parts := strings.Split(data, "|")
	if len(parts) != 3 || parts[0] != "t" {
		return time.Time{}, 0, false
	}
	week, err := time.Parse(time.DateOnly, parts[1])
	if err != nil {
		return time.Time{}, 0, false
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil || id <= 0 {
		return time.Time{}, 0, false
	}
	return week, id, true
}

// toggleChecked returns the checked keys of items with the item
// identified by id flipped.
func toggleChecked(items []shopping.Item, id int) []string {
	keys := []string{}
	for _, it := range items {
		checked := it.Checked
		if it.ID == id {
			checked = !checked
		}
		if checked {
			keys = append(keys, it.Key)
		}
	}
	return keys
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// parseItemText reads "[quantity] [unit] name", e.g. "2 cups rice" or
// "1 1/2 tbsp sugar".
func parseItemText(text string) (shopping.CustomItem, bool) {
	fields := strings.Fields(text)
	var item shopping.CustomItem

	if len(fields) > 0 {
		if q, ok := parseAmount(fields[0]); ok {
			fields = fields[1:]
			if len(fields) > 0 && strings.Contains(fields[0], "/") {
				if frac, ok := parseAmount(fields[0]); ok {
					q += frac
					fields = fields[1:]
				}
			}
			item.Quantity = &q
		}
	}
	if item.Quantity != nil && len(fields) > 1 && shopping.IsKnownUnit(fields[0]) {
		item.Unit = fields[0]
		fields = fields[1:]
	}

	item.Ingredient = strings.Join(fields, " ")
	return item, item.Ingredient != ""
}

func parseAmount(s string) (float64, bool) {
	var v float64
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		v = n / d
	} else {
		var err error
		if v, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func formatMetrics(usage []metrics.DailyUsage, health *metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}

	if health != nil {
		sb.WriteString("\n🧠 *System Health*\n")
		fmt.Fprintf(&sb, "• Uptime: %s\n", health.Uptime)
		fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
		fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
		fmt.Fprintf(&sb, "• Disk Data: %s\n", health.DataDiskSize)
	}
	return sb.String()
}
