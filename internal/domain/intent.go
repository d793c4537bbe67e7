package domain

type IntentKind string

const (
	IntentChat           IntentKind = "chat"
	IntentWeather        IntentKind = "weather"
	IntentTrain          IntentKind = "train"
	IntentNews           IntentKind = "news"
	IntentWeatherAndNews IntentKind = "weather_news"
)

// Intent is the classified purpose of one user turn. Only the fields
// belonging to Kind are meaningful.
type Intent struct {
	Kind        IntentKind
	Location    string
	Departure   string
	Destination string
	Query       string
}

func ChatIntent() Intent {
	return Intent{Kind: IntentChat}
}

func WeatherIntent(location string) Intent {
	return Intent{Kind: IntentWeather, Location: location}
}

func TrainIntent(departure, destination string) Intent {
	return Intent{Kind: IntentTrain, Departure: departure, Destination: destination}
}

func NewsIntent(query string) Intent {
	return Intent{Kind: IntentNews, Query: query}
}

func WeatherAndNewsIntent(location, query string) Intent {
	return Intent{Kind: IntentWeatherAndNews, Location: location, Query: query}
}

func (i Intent) IsChat() bool {
	return i.Kind == IntentChat || i.Kind == ""
}
