package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/set-night/dispatchbot/internal/domain"
)

func mannheim() *domain.WeatherReport {
	return &domain.WeatherReport{
		Location:    "Mannheim",
		Condition:   "clear sky",
		Temperature: decimal.NewFromInt(18),
		Humidity:    decimal.NewFromInt(40),
		WindSpeed:   decimal.NewFromInt(3),
	}
}

func TestWeatherRendersReport(t *testing.T) {
	weather := &fakeWeather{report: mannheim()}
	h := NewHandlers(weather, &fakeTrains{}, &fakeNews{}, &fakeChat{})

	answer := h.Weather(context.Background(), "mannheim")

	assert.Equal(t, "Mannheim", weather.got.Load())
	for _, want := range []string{"Mannheim", "18°C", "40%", "3 m/s", "clear sky"} {
		assert.Contains(t, answer, want)
	}
	assert.NotContains(t, answer, "rain")
	assert.NotContains(t, answer, "Air quality")
}

func TestWeatherRendersOptionalFields(t *testing.T) {
	report := mannheim()
	rain := decimal.NewFromInt(20)
	aqi := decimal.NewFromInt(2)
	report.RainChance = &rain
	report.AirQuality = &aqi
	report.Temperature = decimal.RequireFromString("18.46")

	answer := renderWeather(report)
	assert.Contains(t, answer, "18.5°C")
	assert.Contains(t, answer, "Chance of rain**: 20%")
	assert.Contains(t, answer, "Air quality index**: 2")
}

func TestWeatherApologies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", fmt.Errorf("lookup: %w", domain.ErrNotFound), "couldn't find weather"},
		{"unavailable", domain.ErrExternalDataUnavailable, "unavailable right now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&fakeWeather{err: tt.err}, &fakeTrains{}, &fakeNews{}, &fakeChat{})
			answer := h.Weather(context.Background(), "atlantis")
			assert.Contains(t, answer, tt.want)
			assert.Contains(t, answer, "Atlantis")
		})
	}
}

func TestTrainRendersOneLinePerTrain(t *testing.T) {
	trains := &fakeTrains{trains: []domain.Train{
		{Name: "ICE 71", Departure: "08:12", Arrival: "11:40"},
		{Name: "IC 2023", Departure: "09:05", Arrival: "13:01"},
	}}
	h := NewHandlers(&fakeWeather{}, trains, &fakeNews{}, &fakeChat{})

	answer := h.Train(context.Background(), "Mannheim", "Basel")

	lines := strings.Split(answer, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Mannheim")
	assert.Contains(t, lines[0], "Basel")
	assert.Equal(t, "- **ICE 71**: departs 08:12, arrives 11:40", lines[1])
	assert.Equal(t, "- **IC 2023**: departs 09:05, arrives 13:01", lines[2])
}

func TestTrainEmptyListRendersHeaderOnly(t *testing.T) {
	h := NewHandlers(&fakeWeather{}, &fakeTrains{trains: []domain.Train{}}, &fakeNews{}, &fakeChat{})

	answer := h.Train(context.Background(), "Mannheim", "Basel")

	assert.Equal(t, "### 🚆 Trains from Mannheim to Basel", answer)
}

func TestTrainFailureIsApology(t *testing.T) {
	h := NewHandlers(&fakeWeather{}, &fakeTrains{err: domain.ErrExternalDataUnavailable}, &fakeNews{}, &fakeChat{})

	answer := h.Train(context.Background(), "Mannheim", "Basel")

	assert.Contains(t, answer, "Sorry")
}

func TestNewsEmptyListIsNoResults(t *testing.T) {
	h := NewHandlers(&fakeWeather{}, &fakeTrains{}, &fakeNews{articles: nil}, &fakeChat{})

	answer := h.News(context.Background(), "quantum computing")

	assert.Contains(t, answer, `No results found for "quantum computing"`)
	for _, line := range strings.Split(answer, "\n") {
		assert.NotRegexp(t, `^\d+\. `, line)
	}
}

func TestNewsIsCapped(t *testing.T) {
	var articles []domain.Article
	for i := range 8 {
		articles = append(articles, domain.Article{
			Title:  fmt.Sprintf("Story %d", i),
			Source: "Wire",
			URL:    fmt.Sprintf("https://example.com/%d", i),
		})
	}
	h := NewHandlers(&fakeWeather{}, &fakeTrains{}, &fakeNews{articles: articles}, &fakeChat{})

	answer := h.News(context.Background(), "rust")

	assert.Contains(t, answer, "1. [Story 0](https://example.com/0) (Wire)")
	assert.Contains(t, answer, "5. [Story 4]")
	assert.NotContains(t, answer, "Story 5")
}

func TestWeatherAndNewsIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	articles := []domain.Article{{Title: "Rhine levels drop", Source: "SWR", URL: "https://example.com/rhine"}}

	t.Run("weather fails", func(t *testing.T) {
		weather := &fakeWeather{err: errors.New("timeout")}
		news := &fakeNews{articles: articles}
		h := NewHandlers(weather, &fakeTrains{}, news, &fakeChat{})

		answer := h.WeatherAndNews(context.Background(), "mannheim", "Mannheim")

		assert.Contains(t, answer, "weather service is unavailable")
		assert.Contains(t, answer, "Rhine levels drop")
		assert.EqualValues(t, 1, weather.calls.Load())
		assert.EqualValues(t, 1, news.calls.Load())
	})

	t.Run("news fails", func(t *testing.T) {
		h := NewHandlers(&fakeWeather{report: mannheim()}, &fakeTrains{}, &fakeNews{err: errors.New("502")}, &fakeChat{})

		answer := h.WeatherAndNews(context.Background(), "mannheim", "Mannheim")

		assert.Contains(t, answer, "18°C")
		assert.Contains(t, answer, "news service is unavailable")
		assert.True(t, strings.Index(answer, "Weather") < strings.Index(answer, "news service"))
	})
}

func TestFulfillRejectsChat(t *testing.T) {
	h := NewHandlers(&fakeWeather{}, &fakeTrains{}, &fakeNews{}, &fakeChat{})

	_, err := h.Fulfill(context.Background(), domain.ChatIntent())
	assert.Error(t, err)
}

func TestChatPassesHistoryAndInput(t *testing.T) {
	chat := &fakeChat{chunks: []string{"It ", "depends."}}
	h := NewHandlers(&fakeWeather{}, &fakeTrains{}, &fakeNews{}, chat)
	history := []domain.Turn{domain.UserTurn("hi", nil), domain.ModelTurn("hello")}
	img := &domain.ImageRef{Path: "photos/1.jpg", MIMEType: "image/jpeg", InlineData: []byte{0xff, 0xd8}}

	answer, err := h.Chat(context.Background(), history, domain.ChatInput{Text: "what is this?", Image: img}, nil)

	require.NoError(t, err)
	assert.Equal(t, "It depends.", answer)
	assert.Equal(t, history, chat.history)
	require.Len(t, chat.Inputs(), 1)
	assert.Equal(t, "what is this?", chat.Inputs()[0].Text)
	assert.Same(t, img, chat.Inputs()[0].Image)
}

func TestChatStartFailure(t *testing.T) {
	h := NewHandlers(&fakeWeather{}, &fakeTrains{}, &fakeNews{}, &fakeChat{startErr: errors.New("bad key")})

	_, err := h.Chat(context.Background(), nil, domain.ChatInput{Text: "hi"}, nil)
	assert.ErrorIs(t, err, domain.ErrStreamTransport)
}
