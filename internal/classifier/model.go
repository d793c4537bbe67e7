package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/set-night/dispatchbot/internal/domain"
)

const classificationPrompt = `Classify the user's message below. Respond with ONLY one JSON object, no markdown, no preamble:
{"weather_query":bool,"train_query":bool,"news_query":bool,"location":"","departure":"","destination":"","query":""}

Rules:
- weather_query: the user asks about current weather, temperature or forecast. Put the place in "location".
- train_query: the user asks for train connections. Put the start station in "departure" and the end station in "destination".
- news_query: the user asks for news. Put the topic or place in "query".
- A message may ask for weather and news at once; set both flags and fill "location" and "query".
- Everything else: all flags false.

Message: {{.}}`

var promptTmpl = template.Must(template.New("classify").Parse(classificationPrompt))

// Model delegates classification to the chat transport and parses the
// constrained JSON reply. Any failure yields a chat intent.
type Model struct {
	transport domain.ChatTransport
}

func NewModel(transport domain.ChatTransport) *Model {
	return &Model{transport: transport}
}

func (m *Model) Classify(ctx context.Context, text string, history []domain.Turn) domain.Intent {
	var prompt bytes.Buffer
	if err := promptTmpl.Execute(&prompt, text); err != nil {
		slog.Warn("build classification prompt", "error", err)
		return domain.ChatIntent()
	}

	session, err := m.transport.StartSession(ctx, history)
	if err != nil {
		slog.Warn("classification session failed, falling back to chat", "error", err)
		return domain.ChatIntent()
	}

	var reply strings.Builder
	for chunk, err := range session.SendStreaming(ctx, domain.ChatInput{Text: prompt.String()}) {
		if err != nil {
			slog.Warn("classification stream failed, falling back to chat", "error", err)
			return domain.ChatIntent()
		}
		reply.WriteString(chunk)
	}

	intent := ParseIntent(reply.String())
	slog.Debug("model classification", "kind", intent.Kind, "raw", reply.String())
	return intent
}

// flag accepts JSON booleans as well as the strings models tend to emit
// instead ("true", "yes").
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(b), `"`)) {
	case "true", "yes", "1":
		*f = true
	case "false", "no", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", b)
	}
	return nil
}

type classification struct {
	WeatherQuery flag   `json:"weather_query"`
	TrainQuery   flag   `json:"train_query"`
	NewsQuery    flag   `json:"news_query"`
	Location     string `json:"location"`
	Departure    string `json:"departure"`
	Destination  string `json:"destination"`
	Query        string `json:"query"`
}

// ParseIntent turns a model reply into an intent. Priority when several
// flags are set: weather+news, train, weather, news, chat.
func ParseIntent(raw string) domain.Intent {
	var c classification
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &c); err != nil {
		slog.Debug("unparseable classification", "error", err)
		return domain.ChatIntent()
	}

	location := strings.TrimSpace(c.Location)
	query := strings.TrimSpace(c.Query)
	departure := strings.TrimSpace(c.Departure)
	destination := strings.TrimSpace(c.Destination)

	weather, train, news := bool(c.WeatherQuery), bool(c.TrainQuery), bool(c.NewsQuery)

	switch {
	case weather && news && location != "" && query != "":
		return domain.WeatherAndNewsIntent(TitleCase(location), query)
	case train && departure != "" && destination != "":
		return domain.TrainIntent(departure, destination)
	case weather && location != "":
		return domain.WeatherIntent(TitleCase(location))
	case news && query != "":
		return domain.NewsIntent(query)
	case news && location != "":
		return domain.NewsIntent(location)
	default:
		return domain.ChatIntent()
	}
}
