package datastore

import (
	"regexp"
	"strings"
)

// MaxSearchResults caps Search
const MaxSearchResults = 10

// hasWildcard reports whether q uses * or ?
func hasWildcard(q string) bool {
	return strings.ContainsAny(q, "*?")
}

// wildcardRegexp compiles q into a case-insensitive pattern that must match
// the whole value. * matches any run of characters and ? exactly one; every
// other character is literal.
func wildcardRegexp(q string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?is)^`)
	for _, r := range q {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

func filterCategory(items []Item, category string) []Item {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return items
	}
	out := items[:0:0]
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

// resolve finds one item by identifier: exact id, exact name, then either a
// wildcard or a substring match on the name. Comparisons ignore case.
func resolve(items []Item, identifier string) (Item, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Item{}, false
	}
	if it, ok := resolveExact(items, identifier); ok {
		return it, true
	}

	if hasWildcard(identifier) {
		re := wildcardRegexp(identifier)
		for _, it := range items {
			if re.MatchString(it.Name) {
				return it, true
			}
		}
		return Item{}, false
	}

	lower := strings.ToLower(identifier)
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), lower) {
			return it, true
		}
	}
	return Item{}, false
}

// resolveExact matches by id first, then by name
func resolveExact(items []Item, identifier string) (Item, bool) {
	for _, it := range items {
		if strings.EqualFold(it.ID, identifier) {
			return it, true
		}
	}
	for _, it := range items {
		if strings.EqualFold(it.Name, identifier) {
			return it, true
		}
	}
	return Item{}, false
}

// search matches query against names and ids
func search(items []Item, query string) []Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var match func(string) bool
	if hasWildcard(query) {
		re := wildcardRegexp(query)
		match = re.MatchString
	} else {
		lower := strings.ToLower(query)
		match = func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
	}

	var out []Item
	for _, it := range items {
		if match(it.Name) || match(it.ID) {
			out = append(out, it)
			if len(out) == MaxSearchResults {
				break
			}
		}
	}
	return out
}
