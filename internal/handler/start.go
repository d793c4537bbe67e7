package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/dispatchbot/internal/middleware"
	tg "github.com/set-night/dispatchbot/internal/telegram"
)

const welcomeText = "👋 Hi! Ask me anything, or ask for live data:\n\n" +
	"🌤 *Weather*: \"What's the weather in Mannheim?\"\n" +
	"🚆 *Trains*: \"Trains from Mannheim to Basel\"\n" +
	"📰 *News*: \"Latest news about electric cars\"\n\n" +
	"You can also send a photo with a caption.\n\n" +
	"📋 *Commands:*\n" +
	"/new — Start a new conversation\n" +
	"/chats — Your conversations\n" +
	"/history — Show the current conversation"

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      welcomeText,
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err != nil {
		slog.Warn("send welcome", "error", err)
	}
}

func (h *Handler) handleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if err := h.history.ClearActive(ctx, user.TelegramID); err != nil {
		slog.Error("clear active conversation", "error", err, "telegram_id", user.TelegramID)
		tg.SendText(ctx, b, chatID, "❌ Could not start a new conversation. Please try again.")
		return
	}
	tg.SendText(ctx, b, chatID, "🆕 New conversation. Send your first message.")
}
