package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/dispatch"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/middleware"
	tg "github.com/set-night/dispatchbot/internal/telegram"
)

const waitText = "⏳ Wait for the answer to your previous message."

// HandleMessage runs one conversation turn for a text or photo message.
func (h *Handler) HandleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	text := msg.Text
	if len(msg.Photo) > 0 {
		text = msg.Caption
	}
	if strings.HasPrefix(text, "/") {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	chatID := msg.Chat.ID

	if strings.TrimSpace(text) == "" {
		if len(msg.Photo) > 0 {
			tg.SendText(ctx, b, chatID, "📷 Add a caption to your photo so I know what to do with it.")
		}
		return
	}

	view, err := h.activeView(ctx, user, text)
	if err != nil {
		slog.Error("load conversation", "error", err, "telegram_id", user.TelegramID)
		h.tgLogger.LogError(err, "load conversation")
		tg.SendText(ctx, b, chatID, "❌ Could not load the conversation. Please try again.")
		return
	}

	var img *domain.ImageRef
	if len(msg.Photo) > 0 {
		img, err = photoFor(view, func() (*domain.ImageRef, error) {
			return tg.DownloadPhoto(ctx, b, msg.Photo)
		})
		if errors.Is(err, domain.ErrTurnInFlight) {
			tg.SendText(ctx, b, chatID, waitText)
			return
		}
		if err != nil {
			slog.Error("download photo", "error", err, "chat_id", chatID)
			tg.SendText(ctx, b, chatID, "❌ Could not download the photo. Please try again.")
			return
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, config.ChatRequestTimeout)
	defer cancel()

	pub := newChatPublisher(ctx, b, chatID, msg.ID)
	res, err := h.orchestrator.Submit(reqCtx, view, dispatch.Submission{Text: text, Image: img}, pub)
	switch {
	case errors.Is(err, domain.ErrTurnInFlight):
		tg.SendText(ctx, b, chatID, waitText)
		return
	case errors.Is(err, domain.ErrEmptyInput):
		return
	case errors.Is(err, domain.ErrPersistence):
		// The local view keeps the turn; it is reconciled after the next
		// successful write.
		h.tgLogger.LogError(err, fmt.Sprintf("persist turn %s", view.ID()))
		tg.SendText(ctx, b, chatID, "⚠️ This answer could not be saved to your history.")
	case err != nil:
		slog.Error("submit turn", "error", err, "conversation_id", view.ID())
	default:
		h.views.Forget(view.ID())
	}

	if res.Failed {
		h.tgLogger.LogError(res.Cause, fmt.Sprintf("%s turn in %s", res.Intent.Kind, view.ID()))
	}
	slog.Info("turn completed",
		"conversation_id", view.ID(),
		"intent", res.Intent.Kind,
		"state", res.State.String(),
		"failed", res.Failed,
	)
}

// photoFor downloads the photo only while view can take a new turn. Submit
// remains the authoritative gate.
func photoFor(view interface{ State() dispatch.State }, download func() (*domain.ImageRef, error)) (*domain.ImageRef, error) {
	if view.State() != dispatch.Idle {
		return nil, domain.ErrTurnInFlight
	}
	return download()
}

// activeView returns the view of the user's active conversation, creating a
// conversation titled after text when there is none.
func (h *Handler) activeView(ctx context.Context, user *domain.ChatUser, text string) (*dispatch.View, error) {
	if user.ActiveConversationID != nil {
		view, err := h.viewFor(ctx, *user.ActiveConversationID, user.TelegramID)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, domain.ErrConversationNotFound) {
			return nil, err
		}
	}

	conv, err := h.history.CreateConversation(ctx, user.TelegramID, text)
	if err != nil {
		return nil, err
	}
	user.ActiveConversationID = &conv.ID
	h.tgLogger.LogNewChat(user.TelegramID, conv.Title)

	return h.views.Get(conv.ID, func() (*domain.Conversation, error) { return conv, nil })
}

func (h *Handler) viewFor(ctx context.Context, id uuid.UUID, telegramID int64) (*dispatch.View, error) {
	return h.views.Get(id, func() (*domain.Conversation, error) {
		return h.history.GetConversation(ctx, id, telegramID)
	})
}
