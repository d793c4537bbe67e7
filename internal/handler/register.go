package handler

import (
	"github.com/go-telegram/bot"

	"github.com/set-night/dispatchbot/internal/telegram"
)

const (
	cbNewChat    = "new_chat"
	cbSwitchChat = "switch_chat_"
	cbChatsPage  = "chats_page_"
)

// Register wires commands and callbacks. Plain messages are routed through
// HandleMessage by the bot's default handler.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypePrefix, h.handleNew)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/chats", bot.MatchTypePrefix, h.handleChats)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix, h.handleHistory)

	// Conversation callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbNewChat, bot.MatchTypeExact, h.handleNewChat)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbSwitchChat, bot.MatchTypePrefix, h.handleSwitchChat)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbChatsPage, bot.MatchTypePrefix, h.handleChatsPage)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.NoopCallback, bot.MatchTypeExact, h.handleNoop)
}
