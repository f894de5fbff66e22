package validators

import "strings"

// CleanText trims input, folds runs of whitespace into one space and cuts the
// result to at most maxRunes characters. maxRunes <= 0 disables the cut.
func CleanText(input string, maxRunes int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxRunes <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxRunes {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxRunes]))
}
