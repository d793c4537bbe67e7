package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/middleware"
	tg "github.com/set-night/dispatchbot/internal/telegram"
)

func (h *Handler) handleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if user.ActiveConversationID == nil {
		tg.SendText(ctx, b, chatID, "No active conversation. Send a message to start one.")
		return
	}

	conv, err := h.history.GetConversation(ctx, *user.ActiveConversationID, user.TelegramID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			tg.SendText(ctx, b, chatID, "No active conversation. Send a message to start one.")
			return
		}
		slog.Error("get conversation", "error", err, "conversation_id", *user.ActiveConversationID)
		tg.SendText(ctx, b, chatID, "❌ Could not load the conversation.")
		return
	}

	if err := tg.SendLongMessage(ctx, b, chatID, formatHistory(conv, config.HistoryPreviewTurns), nil); err != nil {
		slog.Warn("send history", "error", err)
	}
}
