package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/dispatchbot/internal/domain"
)

type ctxKey string

const UserKey ctxKey = "user"

// GetUser extracts user from context.
func GetUser(ctx context.Context) *domain.ChatUser {
	u, ok := ctx.Value(UserKey).(*domain.ChatUser)
	if !ok {
		return nil
	}
	return u
}

func WithUser(ctx context.Context, u *domain.ChatUser) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

type UserStore interface {
	LoadUser(ctx context.Context, telegramID int64) (*domain.ChatUser, error)
}

// UserLoader returns middleware that loads the sender into context.
// Messages from group chats are dropped: conversations are per user.
func UserLoader(users UserStore) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			if update.Message != nil {
				if update.Message.Chat.Type != "private" {
					return
				}
				from = update.Message.From
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			user, err := users.LoadUser(ctx, from.ID)
			if err != nil {
				slog.Error("load user", "error", err, "telegram_id", from.ID)
			} else {
				ctx = WithUser(ctx, user)
			}

			next(ctx, b, update)
		}
	}
}
