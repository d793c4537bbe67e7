package handler

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/set-night/dispatchbot/internal/domain"
)

const previewRunes = 300

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// formatHistory renders the last n turns of a conversation.
func formatHistory(conv *domain.Conversation, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 *%s*\n", conv.Title)

	if len(conv.Turns) == 0 {
		sb.WriteString("\nNo messages yet.")
		return sb.String()
	}

	turns := conv.Turns
	if len(turns) > n {
		fmt.Fprintf(&sb, "\n… %d earlier messages\n", len(turns)-n)
		turns = turns[len(turns)-n:]
	}
	for _, t := range turns {
		icon := "👤"
		if t.Role == domain.RoleModel {
			icon = "🤖"
		}
		sb.WriteString("\n" + icon + " ")
		if t.Attachment != nil {
			sb.WriteString("🖼 ")
		}
		sb.WriteString(truncate(t.Text, previewRunes))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// chatLabel is the button text for one conversation in the /chats list.
func chatLabel(s domain.ConversationSummary, active bool) string {
	label := truncate(s.Title, 30)
	if label == "" {
		label = s.UpdatedAt.Format("02.01 15:04")
	}
	label = fmt.Sprintf("%s (%d)", label, s.TurnCount)
	if active {
		label += " ✅"
	}
	return label
}

func totalPages(total int64, perPage int) int {
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return max(pages, 1)
}
