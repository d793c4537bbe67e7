package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/set-night/dispatchbot/internal/classifier"
	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
)

// Handlers produce the answer text for a classified intent. Data lookups
// never fail: collaborator errors become apology text.
type Handlers struct {
	weather domain.WeatherSource
	trains  domain.TrainSource
	news    domain.NewsSource
	chat    domain.ChatTransport

	dataTimeout time.Duration
}

func NewHandlers(weather domain.WeatherSource, trains domain.TrainSource, news domain.NewsSource, chat domain.ChatTransport) *Handlers {
	return &Handlers{
		weather:     weather,
		trains:      trains,
		news:        news,
		chat:        chat,
		dataTimeout: config.DataRequestTimeout,
	}
}

// Fulfill answers a data intent. It returns an error only for intents that
// have no data handler.
func (h *Handlers) Fulfill(ctx context.Context, intent domain.Intent) (string, error) {
	switch intent.Kind {
	case domain.IntentWeather:
		return h.Weather(ctx, intent.Location), nil
	case domain.IntentTrain:
		return h.Train(ctx, intent.Departure, intent.Destination), nil
	case domain.IntentNews:
		return h.News(ctx, intent.Query), nil
	case domain.IntentWeatherAndNews:
		return h.WeatherAndNews(ctx, intent.Location, intent.Query), nil
	default:
		return "", fmt.Errorf("no data handler for intent %q", intent.Kind)
	}
}

func (h *Handlers) Weather(ctx context.Context, location string) string {
	location = classifier.TitleCase(strings.TrimSpace(location))

	ctx, cancel := context.WithTimeout(ctx, h.dataTimeout)
	defer cancel()

	report, err := h.weather.GetWeather(ctx, location)
	if err != nil {
		slog.Warn("weather lookup failed", "location", location, "error", err)
		return weatherApology(location, errors.Is(err, domain.ErrNotFound))
	}
	if report.Location == "" {
		report.Location = location
	}
	return renderWeather(report)
}

func (h *Handlers) Train(ctx context.Context, departure, destination string) string {
	ctx, cancel := context.WithTimeout(ctx, h.dataTimeout)
	defer cancel()

	trains, err := h.trains.GetTrains(ctx, departure, destination)
	if err != nil {
		slog.Warn("train lookup failed", "departure", departure, "destination", destination, "error", err)
		return trainApology(departure, destination, errors.Is(err, domain.ErrNotFound))
	}
	return renderTrains(departure, destination, trains)
}

func (h *Handlers) News(ctx context.Context, query string) string {
	ctx, cancel := context.WithTimeout(ctx, h.dataTimeout)
	defer cancel()

	articles, err := h.news.GetNews(ctx, query)
	if err != nil {
		slog.Warn("news lookup failed", "query", query, "error", err)
		return newsApology(query)
	}
	if len(articles) > config.MaxNewsArticles {
		articles = articles[:config.MaxNewsArticles]
	}
	return renderNews(query, articles)
}

// WeatherAndNews runs both lookups concurrently. Each section carries its
// own apology on failure, so neither lookup can suppress the other.
func (h *Handlers) WeatherAndNews(ctx context.Context, location, query string) string {
	var weather, news string

	var g errgroup.Group
	g.Go(func() error {
		weather = h.Weather(ctx, location)
		return nil
	})
	g.Go(func() error {
		news = h.News(ctx, query)
		return nil
	})
	_ = g.Wait()

	return weather + "\n\n" + news
}

// Chat streams a model reply for input on top of history. publish receives
// the growing answer after every chunk.
func (h *Handlers) Chat(ctx context.Context, history []domain.Turn, input domain.ChatInput, publish func(string)) (string, error) {
	session, err := h.chat.StartSession(ctx, history)
	if err != nil {
		return "", fmt.Errorf("%w: start session: %w", domain.ErrStreamTransport, err)
	}
	return Aggregate(ctx, session.SendStreaming(ctx, input), publish)
}
