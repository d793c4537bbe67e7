package handler

import (
	"github.com/go-telegram/bot"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/dispatch"
	"github.com/set-night/dispatchbot/internal/service"
	"github.com/set-night/dispatchbot/internal/telegram"
)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot          *bot.Bot
	cfg          *config.Config
	history      *service.HistoryService
	orchestrator *dispatch.Orchestrator
	views        *dispatch.Views
	tgLogger     *telegram.TelegramLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot          *bot.Bot
	Cfg          *config.Config
	History      *service.HistoryService
	Orchestrator *dispatch.Orchestrator
	Views        *dispatch.Views
	TgLogger     *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:          deps.Bot,
		cfg:          deps.Cfg,
		history:      deps.History,
		orchestrator: deps.Orchestrator,
		views:        deps.Views,
		tgLogger:     deps.TgLogger,
	}
}
