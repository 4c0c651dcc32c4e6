package shopping

import "strings"

// unitAliases maps plural and abbreviated spellings onto one canonical
// unit. Canonical values must never appear as keys mapping elsewhere so
// that normalization stays idempotent.
var unitAliases = map[string]string{
	"tablespoon":  "tbsp",
	"tablespoons": "tbsp",
	"tbsps":       "tbsp",
	"tbs":         "tbsp",
	"teaspoon":    "tsp",
	"teaspoons":   "tsp",
	"tsps":        "tsp",
	"cup":         "cups",
	"ounce":       "oz",
	"ounces":      "oz",
	"pound":       "lbs",
	"pounds":      "lbs",
	"lb":          "lbs",
	"clove":       "cloves",
	"gram":        "g",
	"grams":       "g",
	"kilogram":    "kg",
	"kilograms":   "kg",
	"milliliter":  "ml",
	"milliliters": "ml",
	"liter":       "l",
	"liters":      "l",
	"can":         "cans",
	"pinch":       "pinches",
}

// NormalizeUnit lowercases and trims a unit and folds known variants onto
// their canonical spelling. Unknown units pass through; an empty unit
// stays empty.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if canonical, ok := unitAliases[u]; ok {
		return canonical
	}
	return u
}

// IsKnownUnit reports whether unit is a recognized spelling of a unit.
func IsKnownUnit(unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	if _, ok := unitAliases[u]; ok {
		return true
	}
	for _, canonical := range unitAliases {
		if canonical == u {
			return true
		}
	}
	return false
}
