package handler

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
	tg "github.com/set-night/dispatchbot/internal/telegram"
)

// chatPublisher shows a turn in a Telegram chat: a status message that is
// edited as the answer grows, replaced by the final answer when done.
// Edits are throttled to stay under Telegram's flood limits.
type chatPublisher struct {
	ctx        context.Context
	bot        *bot.Bot
	chatID     int64
	replyTo    int
	limiter    *rate.Limiter
	statusID   int
	answer     string
	shown      string
	stopTyping context.CancelFunc
}

func newChatPublisher(ctx context.Context, b *bot.Bot, chatID int64, replyTo int) *chatPublisher {
	return &chatPublisher{
		ctx:     ctx,
		bot:     b,
		chatID:  chatID,
		replyTo: replyTo,
		limiter: rate.NewLimiter(rate.Every(config.StreamEditInterval), 1),
	}
}

func (p *chatPublisher) ShowUserTurn(_ string, img *domain.ImageRef) {
	p.stopTyping = tg.StartTyping(p.ctx, p.bot, p.chatID)

	status := "💭 Thinking…"
	if img != nil {
		status = "🖼 Looking at your photo…"
	}
	params := &bot.SendMessageParams{ChatID: p.chatID, Text: status}
	if p.replyTo != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: p.replyTo}
	}
	msg, err := p.bot.SendMessage(p.ctx, params)
	if err != nil {
		slog.Warn("send status message", "chat_id", p.chatID, "error", err)
		return
	}
	p.statusID = msg.ID
}

func (p *chatPublisher) PublishAnswer(text string) {
	p.answer = text
	if p.statusID == 0 || !p.limiter.Allow() {
		return
	}
	if utf8.RuneCountInString(text) > config.MaxTelegramMessageLen {
		return
	}
	p.edit(text)
}

func (p *chatPublisher) Done() {
	if p.stopTyping != nil {
		p.stopTyping()
	}
	if p.answer == "" {
		return
	}

	if p.statusID != 0 && utf8.RuneCountInString(p.answer) <= config.MaxTelegramMessageLen {
		if p.answer != p.shown {
			p.edit(p.answer)
		}
		return
	}

	if p.statusID != 0 {
		p.bot.DeleteMessage(p.ctx, &bot.DeleteMessageParams{ChatID: p.chatID, MessageID: p.statusID})
	}
	if err := tg.SendLongMessage(p.ctx, p.bot, p.chatID, p.answer, nil); err != nil {
		slog.Error("send answer", "chat_id", p.chatID, "error", err)
	}
}

func (p *chatPublisher) edit(text string) {
	if err := tg.EditLongMessage(p.ctx, p.bot, p.chatID, p.statusID, text); err != nil {
		slog.Debug("edit answer", "chat_id", p.chatID, "error", err)
		return
	}
	p.shown = text
}
