package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/middleware"
	tg "github.com/set-night/dispatchbot/internal/telegram"
)

func (h *Handler) handleChats(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	h.sendChatsPage(ctx, b, update.Message.Chat.ID, user, 0, 0)
}

// sendChatsPage shows one page of conversations. A non-zero messageID edits
// that message instead of sending a new one.
func (h *Handler) sendChatsPage(ctx context.Context, b *bot.Bot, chatID int64, user *domain.ChatUser, page, messageID int) {
	total, err := h.history.CountConversations(ctx, user.TelegramID)
	if err != nil {
		slog.Error("count conversations", "error", err)
		return
	}

	pages := totalPages(total, config.ConversationsPerPage)
	page = min(max(page, 0), pages-1)

	convs, err := h.history.ListConversations(ctx, user.TelegramID, config.ConversationsPerPage, page*config.ConversationsPerPage)
	if err != nil {
		slog.Error("list conversations", "error", err)
		return
	}

	var rows [][]models.InlineKeyboardButton
	for _, c := range convs {
		active := user.ActiveConversationID != nil && *user.ActiveConversationID == c.ID
		rows = append(rows, tg.ButtonRow(tg.InlineButton(chatLabel(c, active), cbSwitchChat+c.ID.String())))
	}
	rows = append(rows, tg.ButtonRow(tg.InlineButton("➕ New conversation", cbNewChat)))
	if pages > 1 {
		rows = append(rows, tg.PaginationRow(page, pages, cbChatsPage))
	}

	text := fmt.Sprintf("💬 *Your conversations* (%d)", total)
	if total == 0 {
		text += "\n\nNothing here yet. Send a message to start one."
	}
	keyboard := tg.InlineKeyboard(rows...)

	if messageID != 0 {
		_, err = b.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   messageID,
			Text:        text,
			ParseMode:   models.ParseModeMarkdownV1,
			ReplyMarkup: keyboard,
		})
	} else {
		_, err = b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        text,
			ParseMode:   models.ParseModeMarkdownV1,
			ReplyMarkup: keyboard,
		})
	}
	if err != nil {
		slog.Warn("send conversations page", "error", err)
	}
}

func (h *Handler) handleNewChat(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	if err := h.history.ClearActive(ctx, user.TelegramID); err != nil {
		slog.Error("clear active conversation", "error", err)
		return
	}
	user.ActiveConversationID = nil

	chatID, messageID := tg.CallbackTarget(update.CallbackQuery)
	h.sendChatsPage(ctx, b, chatID, user, 0, messageID)
	tg.SendText(ctx, b, chatID, "🆕 New conversation. Send your first message.")
}

func (h *Handler) handleSwitchChat(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	q := update.CallbackQuery

	user := middleware.GetUser(ctx)
	if user == nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID})
		return
	}

	id, err := uuid.Parse(strings.TrimPrefix(q.Data, cbSwitchChat))
	if err != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID})
		return
	}

	if err := h.history.SwitchTo(ctx, user.TelegramID, id); err != nil {
		if !errors.Is(err, domain.ErrConversationNotFound) {
			slog.Error("switch conversation", "error", err, "conversation_id", id)
		}
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: q.ID,
			Text:            "❌ Conversation not available.",
		})
		return
	}
	user.ActiveConversationID = &id
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID, Text: "✅ Switched"})

	chatID, messageID := tg.CallbackTarget(q)
	h.sendChatsPage(ctx, b, chatID, user, 0, messageID)
}

func (h *Handler) handleChatsPage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	page, _ := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, cbChatsPage))
	chatID, messageID := tg.CallbackTarget(update.CallbackQuery)
	h.sendChatsPage(ctx, b, chatID, user, page, messageID)
}

func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
}
