package domain

import "github.com/shopspring/decimal"

type WeatherReport struct {
	Location    string
	Condition   string
	Temperature decimal.Decimal // °C
	Humidity    decimal.Decimal // %
	WindSpeed   decimal.Decimal // m/s
	RainChance  *decimal.Decimal
	AirQuality  *decimal.Decimal
}

type Train struct {
	Name      string
	Departure string
	Arrival   string
}

type Article struct {
	Title  string
	Source string
	URL    string
}
