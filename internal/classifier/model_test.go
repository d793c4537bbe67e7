package classifier

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	chunks   []string
	err      error
	startErr error

	history []domain.Turn
	input   domain.ChatInput
}

func (s *scriptedTransport) StartSession(_ context.Context, history []domain.Turn) (domain.ChatSession, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.history = history
	return s, nil
}

func (s *scriptedTransport) SendStreaming(_ context.Context, input domain.ChatInput) iter.Seq2[string, error] {
	s.input = input
	return func(yield func(string, error) bool) {
		for _, c := range s.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want domain.Intent
	}{
		{
			name: "all false",
			raw:  `{"weather_query": false, "train_query": false, "news_query": false}`,
			want: domain.ChatIntent(),
		},
		{
			name: "weather",
			raw:  `{"weather_query": true, "location": "mannheim"}`,
			want: domain.WeatherIntent("Mannheim"),
		},
		{
			name: "combo wins over singles",
			raw:  `{"weather_query": true, "news_query": true, "train_query": true, "location": "berlin", "query": "berlin elections", "departure": "A", "destination": "B"}`,
			want: domain.WeatherAndNewsIntent("Berlin", "berlin elections"),
		},
		{
			name: "combo missing query degrades to weather",
			raw:  `{"weather_query": true, "news_query": true, "location": "Berlin"}`,
			want: domain.WeatherIntent("Berlin"),
		},
		{
			name: "train beats weather",
			raw:  `{"weather_query": true, "train_query": true, "location": "Köln", "departure": "Mannheim Hbf", "destination": "Köln Hbf"}`,
			want: domain.TrainIntent("Mannheim Hbf", "Köln Hbf"),
		},
		{
			name: "train missing destination",
			raw:  `{"train_query": true, "departure": "Mannheim"}`,
			want: domain.ChatIntent(),
		},
		{
			name: "news",
			raw:  `{"news_query": true, "query": "AI regulation"}`,
			want: domain.NewsIntent("AI regulation"),
		},
		{
			name: "news falls back to location",
			raw:  `{"news_query": true, "location": "Hamburg"}`,
			want: domain.NewsIntent("Hamburg"),
		},
		{
			name: "weather without location",
			raw:  `{"weather_query": true, "location": "  "}`,
			want: domain.ChatIntent(),
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"weather_query\": true, \"location\": \"Paris\"}\n```",
			want: domain.WeatherIntent("Paris"),
		},
		{
			name: "string flags",
			raw:  `{"weather_query": "true", "news_query": "yes", "location": "Rome", "query": "Rome"}`,
			want: domain.WeatherAndNewsIntent("Rome", "Rome"),
		},
		{
			name: "numeric and negative flags",
			raw:  `{"weather_query": "no", "train_query": 1, "departure": "Mannheim", "destination": "Berlin"}`,
			want: domain.TrainIntent("Mannheim", "Berlin"),
		},
		{
			name: "prose around json",
			raw:  "Sure! {\"news_query\": true, \"query\": \"space\"} Hope that helps.",
			want: domain.NewsIntent("space"),
		},
		{name: "not json", raw: "I think this is about weather", want: domain.ChatIntent()},
		{name: "bad flag", raw: `{"weather_query": "maybe", "location": "Oslo"}`, want: domain.ChatIntent()},
		{name: "empty", raw: "", want: domain.ChatIntent()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIntent(tt.raw))
		})
	}
}

func TestModelClassifyAssemblesChunks(t *testing.T) {
	transport := &scriptedTransport{chunks: []string{"```json\n{\"weather_query\": tr", "ue, \"location\": \"Mannheim\"}\n```"}}
	history := []domain.Turn{domain.UserTurn("hi", nil), domain.ModelTurn("hello")}

	intent := NewModel(transport).Classify(context.Background(), "Wetter in Mannheim?", history)

	assert.Equal(t, domain.WeatherIntent("Mannheim"), intent)
	assert.Equal(t, history, transport.history)
	assert.True(t, strings.HasSuffix(transport.input.Text, "Message: Wetter in Mannheim?"))
	assert.Nil(t, transport.input.Image)
}

func TestModelClassifyDegradesOnTransportErrors(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		transport := &scriptedTransport{startErr: errors.New("dial")}
		assert.Equal(t, domain.ChatIntent(), NewModel(transport).Classify(context.Background(), "weather", nil))
	})
	t.Run("stream", func(t *testing.T) {
		transport := &scriptedTransport{chunks: []string{`{"weather_query": true, "location": "Oslo"}`}, err: errors.New("reset")}
		assert.Equal(t, domain.ChatIntent(), NewModel(transport).Classify(context.Background(), "weather", nil))
	})
}

func TestChain(t *testing.T) {
	transport := &scriptedTransport{chunks: []string{`{"news_query": true, "query": "football"}`}}
	chain := Chain{NewKeyword(), NewModel(transport)}

	t.Run("keyword short-circuits", func(t *testing.T) {
		transport.input = domain.ChatInput{}
		intent := chain.Classify(context.Background(), "weather in Oslo", nil)
		assert.Equal(t, domain.WeatherIntent("Oslo"), intent)
		assert.Empty(t, transport.input.Text)
	})
	t.Run("falls through to model", func(t *testing.T) {
		intent := chain.Classify(context.Background(), "latest football news", nil)
		require.Equal(t, domain.IntentNews, intent.Kind)
		assert.Equal(t, "football", intent.Query)
	})
	t.Run("empty chain", func(t *testing.T) {
		assert.Equal(t, domain.ChatIntent(), Chain{}.Classify(context.Background(), "x", nil))
	})
}
