package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/shopspring/decimal"
)

// WeatherService looks up current conditions from OpenWeatherMap.
type WeatherService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewWeatherService(apiKey, baseURL string) *WeatherService {
	return &WeatherService{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.DataRequestTimeout},
	}
}

type owmCurrent struct {
	Name  string `json:"name"`
	Coord *struct {
		Lat decimal.Decimal `json:"lat"`
		Lon decimal.Decimal `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     decimal.Decimal `json:"temp"`
		Humidity decimal.Decimal `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed decimal.Decimal `json:"speed"`
	} `json:"wind"`
}

func (s *WeatherService) GetWeather(ctx context.Context, location string) (*domain.WeatherReport, error) {
	var cur owmCurrent
	if err := s.get(ctx, "/weather", url.Values{"q": {location}, "units": {"metric"}}, &cur); err != nil {
		return nil, err
	}

	report := &domain.WeatherReport{
		Location:    cur.Name,
		Temperature: cur.Main.Temp,
		Humidity:    cur.Main.Humidity,
		WindSpeed:   cur.Wind.Speed,
	}
	if report.Location == "" {
		report.Location = location
	}
	if len(cur.Weather) > 0 {
		report.Condition = cur.Weather[0].Description
	}

	// Rain chance and air quality are extras: a failure only drops the line.
	if pop, err := s.rainChance(ctx, location); err != nil {
		slog.Debug("rain chance lookup failed", "location", location, "error", err)
	} else {
		report.RainChance = pop
	}
	if cur.Coord != nil {
		if aqi, err := s.airQuality(ctx, cur.Coord.Lat, cur.Coord.Lon); err != nil {
			slog.Debug("air quality lookup failed", "location", location, "error", err)
		} else {
			report.AirQuality = aqi
		}
	}

	return report, nil
}

func (s *WeatherService) rainChance(ctx context.Context, location string) (*decimal.Decimal, error) {
	var forecast struct {
		List []struct {
			Pop decimal.Decimal `json:"pop"`
		} `json:"list"`
	}
	if err := s.get(ctx, "/forecast", url.Values{"q": {location}, "units": {"metric"}, "cnt": {"1"}}, &forecast); err != nil {
		return nil, err
	}
	if len(forecast.List) == 0 {
		return nil, fmt.Errorf("empty forecast: %w", domain.ErrNotFound)
	}
	pct := forecast.List[0].Pop.Mul(decimal.NewFromInt(100)).Round(0)
	return &pct, nil
}

func (s *WeatherService) airQuality(ctx context.Context, lat, lon decimal.Decimal) (*decimal.Decimal, error) {
	var pollution struct {
		List []struct {
			Main struct {
				AQI decimal.Decimal `json:"aqi"`
			} `json:"main"`
		} `json:"list"`
	}
	if err := s.get(ctx, "/air_pollution", url.Values{"lat": {lat.String()}, "lon": {lon.String()}}, &pollution); err != nil {
		return nil, err
	}
	if len(pollution.List) == 0 {
		return nil, fmt.Errorf("empty air quality: %w", domain.ErrNotFound)
	}
	aqi := pollution.List[0].Main.AQI
	return &aqi, nil
}

func (s *WeatherService) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("appid", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w: %w", domain.ErrExternalDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("weather for %q: %w", params.Get("q"), domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather service returned %d: %w", resp.StatusCode, domain.ErrExternalDataUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w: %w", domain.ErrExternalDataUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse weather: %w: %w", domain.ErrExternalDataUnavailable, err)
	}
	return nil
}
