package dispatch

import (
	"fmt"
	"strings"

	"github.com/set-night/dispatchbot/internal/domain"
)

const (
	// Shown when the chat stream fails or produces nothing.
	ChatFailureMessage = "⚠️ Sorry, I couldn't finish that answer. Please try again in a moment."
)

func renderWeather(w *domain.WeatherReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### 🌤 Weather in %s\n\n", w.Location)
	if w.Condition != "" {
		fmt.Fprintf(&sb, "- **Condition**: %s\n", w.Condition)
	}
	fmt.Fprintf(&sb, "- **Temperature**: %s°C\n", w.Temperature.Round(1).String())
	fmt.Fprintf(&sb, "- **Humidity**: %s%%\n", w.Humidity.Round(0).String())
	fmt.Fprintf(&sb, "- **Wind**: %s m/s\n", w.WindSpeed.Round(1).String())
	if w.RainChance != nil {
		fmt.Fprintf(&sb, "- **Chance of rain**: %s%%\n", w.RainChance.Round(0).String())
	}
	if w.AirQuality != nil {
		fmt.Fprintf(&sb, "- **Air quality index**: %s\n", w.AirQuality.Round(0).String())
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderTrains(departure, destination string, trains []domain.Train) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### 🚆 Trains from %s to %s", departure, destination)
	for _, t := range trains {
		fmt.Fprintf(&sb, "\n- **%s**: departs %s, arrives %s", t.Name, t.Departure, t.Arrival)
	}
	return sb.String()
}

func renderNews(query string, articles []domain.Article) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### 📰 News about %s\n", query)
	if len(articles) == 0 {
		fmt.Fprintf(&sb, "\nNo results found for %q.", query)
		return sb.String()
	}
	for i, a := range articles {
		fmt.Fprintf(&sb, "\n%d. [%s](%s)", i+1, a.Title, a.URL)
		if a.Source != "" {
			fmt.Fprintf(&sb, " (%s)", a.Source)
		}
	}
	return sb.String()
}

func weatherApology(location string, notFound bool) string {
	if notFound {
		return fmt.Sprintf("😕 Sorry, I couldn't find weather for %q. Check the spelling of the place and try again.", location)
	}
	return fmt.Sprintf("😕 Sorry, the weather service is unavailable right now, so I can't check %s.", location)
}

func trainApology(departure, destination string, notFound bool) string {
	if notFound {
		return fmt.Sprintf("😕 Sorry, I couldn't find a route from %s to %s.", departure, destination)
	}
	return fmt.Sprintf("😕 Sorry, the train timetable is unavailable right now, so I can't check trains from %s to %s.", departure, destination)
}

func newsApology(query string) string {
	return fmt.Sprintf("😕 Sorry, the news service is unavailable right now, so I can't look up %q.", query)
}
