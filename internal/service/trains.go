package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
)

// TrainService queries a timetable route endpoint for connections between
// two stations.
type TrainService struct {
	clientID   string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewTrainService(clientID, apiKey, baseURL string) *TrainService {
	return &TrainService{
		clientID:   clientID,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.DataRequestTimeout},
	}
}

func (s *TrainService) GetTrains(ctx context.Context, departure, destination string) ([]domain.Train, error) {
	params := url.Values{"departure": {departure}, "destination": {destination}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/routes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Client-ID", s.clientID)
	req.Header.Set("X-API-Key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("train request: %w: %w", domain.ErrExternalDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("trains %s -> %s: %w", departure, destination, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("train service returned %d: %w", resp.StatusCode, domain.ErrExternalDataUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", domain.ErrExternalDataUnavailable, err)
	}

	var result struct {
		Trains []struct {
			Name          string `json:"name"`
			DepartureTime string `json:"departureTime"`
			ArrivalTime   string `json:"arrivalTime"`
		} `json:"trains"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse trains: %w: %w", domain.ErrExternalDataUnavailable, err)
	}
	// A missing list means the route is unknown; an empty one means no trains.
	if result.Trains == nil {
		return nil, fmt.Errorf("trains %s -> %s: %w", departure, destination, domain.ErrNotFound)
	}

	trains := make([]domain.Train, 0, len(result.Trains))
	for _, t := range result.Trains {
		trains = append(trains, domain.Train{
			Name:      t.Name,
			Departure: t.DepartureTime,
			Arrival:   t.ArrivalTime,
		})
	}
	return trains, nil
}
