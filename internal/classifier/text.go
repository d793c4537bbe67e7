package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase normalizes a place name: "new york" -> "New York".
func TitleCase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	// Casers keep state, so one per call.
	return cases.Title(language.Und).String(s)
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’' && r != '-'
	})

	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'’-")
		if f == "" {
			continue
		}
		tokens = append(tokens, strings.ReplaceAll(f, "’", "'"))
	}
	return tokens
}

// stripCodeFence removes a markdown code fence around a JSON payload and
// any prose before the first brace or after the last one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
