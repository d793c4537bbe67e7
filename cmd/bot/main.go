package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dispatchbot "github.com/set-night/dispatchbot"
	"github.com/set-night/dispatchbot/internal/classifier"
	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/dispatch"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/handler"
	"github.com/set-night/dispatchbot/internal/metrics"
	"github.com/set-night/dispatchbot/internal/middleware"
	"github.com/set-night/dispatchbot/internal/repository"
	"github.com/set-night/dispatchbot/internal/service"
	"github.com/set-night/dispatchbot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(dispatchbot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	queries := repository.New(pool)

	// Initialize services
	history := service.NewHistoryService(pool, queries, service.NewViewCache(config.ViewCacheTTL))
	chat, err := newChatTransport(ctx, cfg)
	if err != nil {
		slog.Error("failed to create chat transport", "error", err)
		os.Exit(1)
	}
	handlers := dispatch.NewHandlers(
		service.NewWeatherService(cfg.WeatherAPIKey, cfg.WeatherURL),
		service.NewTrainService(cfg.TrainClientID, cfg.TrainAPIKey, cfg.TrainURL),
		service.NewNewsService(cfg.NewsAPIKey, cfg.NewsURL),
		chat,
	)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	orchestrator := dispatch.New(newClassifier(cfg, chat), handlers, history,
		dispatch.WithMetrics(m),
		dispatch.WithObserver(func(id uuid.UUID, s dispatch.State) {
			slog.Debug("turn state", "conversation_id", id, "state", s.String())
		}),
	)

	// Handler pointer for use in default handler closure
	var h *handler.Handler
	var tgLogger *telegram.TelegramLogger

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			// tgLogger needs the bot, so it is resolved per update.
			func(next bot.HandlerFunc) bot.HandlerFunc {
				return func(ctx context.Context, b *bot.Bot, update *models.Update) {
					middleware.Recover(tgLogger)(next)(ctx, b, update)
				}
			},
			middleware.Logging(),
			middleware.RateLimit(middleware.NewChatLimiter(config.RateLimitPerMinute, config.RateLimitBurst)),
			middleware.UserLoader(history),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil || update.Message == nil {
				return
			}
			h.HandleMessage(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	tgLogger = telegram.NewTelegramLogger(b, cfg)

	h = handler.New(handler.Deps{
		Bot:          b,
		Cfg:          cfg,
		History:      history,
		Orchestrator: orchestrator,
		Views:        dispatch.NewViews(),
		TgLogger:     tgLogger,
	})
	h.Register()

	// Metrics endpoint
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID, "provider", cfg.LLMProvider, "classifier", cfg.Classifier)
	b.Start(ctx)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown", "error", err)
	}
	slog.Info("bot stopped gracefully")
}

func newChatTransport(ctx context.Context, cfg *config.Config) (domain.ChatTransport, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenRouter:
		return service.NewOpenRouterService(cfg.OpenRouterKey, cfg.OpenRouterURL, cfg.OpenRouterModel, cfg.SystemPrompt), nil
	default:
		return service.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SystemPrompt)
	}
}

// newClassifier builds the configured strategy. The model strategy shares
// the chat transport but never its sessions.
func newClassifier(cfg *config.Config, chat domain.ChatTransport) classifier.Classifier {
	switch cfg.Classifier {
	case config.ClassifierKeyword:
		return classifier.NewKeyword()
	case config.ClassifierModel:
		return classifier.NewModel(chat)
	default:
		return classifier.Chain{classifier.NewKeyword(), classifier.NewModel(chat)}
	}
}
