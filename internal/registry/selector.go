package registry

import "strings"

// NestSelector combines a parent selector list with a child selector list.
// Every child is combined with every parent: a child containing "&" has it
// replaced by the parent, otherwise the two are joined as descendants.
func NestSelector(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}

	var out []string
	for _, p := range SplitSelectors(parent) {
		for _, c := range SplitSelectors(child) {
			if strings.Contains(c, "&") {
				out = append(out, strings.ReplaceAll(c, "&", p))
			} else {
				out = append(out, p+" "+c)
			}
		}
	}
	return strings.Join(out, ", ")
}

// SplitSelectors splits a selector list on commas that are not inside
// parentheses, brackets or quotes.
func SplitSelectors(list string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range list {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(list[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(list[start:]))

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
