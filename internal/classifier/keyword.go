package classifier

import (
	"context"
	"strings"

	"github.com/set-night/dispatchbot/internal/domain"
)

var weatherKeywords = setOf("weather", "temperature", "forecast", "humidity", "wind")

var stopWords = setOf(
	// keywords never name a place
	"weather", "temperature", "forecast", "humidity", "wind", "windy", "temperatures",
	"what", "what's", "whats", "how", "how's", "hows", "is", "are", "was", "will", "be",
	"the", "a", "an", "in", "at", "for", "of", "on", "near", "around", "to", "like",
	"it", "it's", "its", "there", "today", "tomorrow", "tonight", "now", "right",
	"current", "currently", "this", "week", "weekend", "morning", "evening",
	"tell", "me", "please", "show", "give", "get", "check", "can", "could", "you",
	"i", "do", "does", "know", "about", "and", "with", "outside", "s",
)

// Keyword classifies weather requests by fixed keywords. The location is
// what is left of the turn after dropping stop words. Ambiguous turns such
// as "how is the wind in the code" come out as weather requests; that is
// the cost of zero network calls.
type Keyword struct{}

func NewKeyword() *Keyword {
	return &Keyword{}
}

func (k *Keyword) Classify(_ context.Context, text string, _ []domain.Turn) domain.Intent {
	tokens := tokenize(text)

	matched := false
	for _, t := range tokens {
		if _, ok := weatherKeywords[t]; ok {
			matched = true
			break
		}
	}
	if !matched {
		return domain.ChatIntent()
	}

	var rest []string
	for _, t := range tokens {
		if _, ok := stopWords[t]; !ok {
			rest = append(rest, t)
		}
	}
	location := TitleCase(strings.Join(rest, " "))
	if location == "" {
		return domain.ChatIntent()
	}
	return domain.WeatherIntent(location)
}

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
