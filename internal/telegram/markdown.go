package telegram

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SplitMessage splits a message into chunks of maxLen characters,
// trying to split at newlines when possible.
func SplitMessage(text string, maxLen int) []string {
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if utf8.RuneCountInString(text) <= maxLen {
			parts = append(parts, text)
			break
		}

		runes := []rune(text)
		splitAt := maxLen

		// Prefer a newline in the second half of the chunk.
		chunk := runes[:maxLen]
		for i := len(chunk) - 1; i > maxLen/2; i-- {
			if chunk[i] == '\n' {
				splitAt = i + 1
				break
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		text = string(runes[splitAt:])
	}

	return parts
}

var (
	headingRe = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	bulletRe  = regexp.MustCompile(`(?m)^([ \t]*)[-*][ \t]+`)
)

// ToTelegramMarkdown rewrites the CommonMark produced by answers and models
// into Telegram's legacy Markdown: headings and **bold** become *bold*,
// list bullets become "•". Code blocks are left untouched.
func ToTelegramMarkdown(text string) string {
	segments := strings.Split(text, "```")
	for i := 0; i < len(segments); i += 2 {
		s := segments[i]
		s = bulletRe.ReplaceAllString(s, "$1• ")
		s = headingRe.ReplaceAllString(s, "*$1*")
		s = boldRe.ReplaceAllString(s, "*$1*")
		segments[i] = s
	}
	return strings.Join(segments, "```")
}

// FixMarkdown closes code blocks and inline code left open, typically by a
// stream that has not finished yet.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}
	return fixInlineCode(text)
}

func fixInlineCode(text string) string {
	var builder strings.Builder
	inCodeBlock := false
	inlineOpen := false

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if i+2 < len(runes) && string(runes[i:i+3]) == "```" {
			if inlineOpen {
				builder.WriteRune('`')
				inlineOpen = false
			}
			inCodeBlock = !inCodeBlock
			builder.WriteString("```")
			i += 2
			continue
		}

		if !inCodeBlock && runes[i] == '`' {
			inlineOpen = !inlineOpen
		}

		builder.WriteRune(runes[i])
	}

	if inlineOpen {
		builder.WriteRune('`')
	}

	return builder.String()
}
