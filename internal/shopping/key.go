package shopping

import "strings"

const keySeparator = "|"

// Key builds the aggregation identity of an ingredient: the folded name
// and the normalized unit joined by "|". The same string identifies an
// item for checked-state tracking and removal.
func Key(name, unit string) string {
	return strings.ToLower(strings.TrimSpace(name)) + keySeparator + NormalizeUnit(unit)
}

// ParseKey splits a key back into its name and unit. Names may contain
// the separator, so the split happens on the last one.
func ParseKey(key string) (name, unit string, ok bool) {
	i := strings.LastIndex(key, keySeparator)
	if i < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(key[:i])
	if name == "" {
		return "", "", false
	}
	return name, key[i+1:], true
}
