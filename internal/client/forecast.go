package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

// ForecastClient returns a multi-day forecast for a location.
type ForecastClient interface {
	Forecast(ctx context.Context, location string) ([]models.ForecastSample, error)
}

// DefaultOpenWeatherURL is the OpenWeatherMap 2.5 API root.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient implements ForecastClient with the OpenWeatherMap 5-day/3-hour forecast.
type OpenWeatherClient struct {
	*baseClient
	apiKey string
}

// NewOpenWeatherClient returns a client for baseURL (DefaultOpenWeatherURL in production).
func NewOpenWeatherClient(apiKey, baseURL string, opts Options) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	base, err := newBaseClient(ProviderForecast, baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &OpenWeatherClient{baseClient: base, apiKey: apiKey}, nil
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMax  float64 `json:"temp_max"`
			TempMin  float64 `json:"temp_min"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
			Deg   *int    `json:"deg"`
		} `json:"wind"`
		Clouds struct {
			All int `json:"all"`
		} `json:"clouds"`
	} `json:"list"`
}

func (c *OpenWeatherClient) params(location string) url.Values {
	params := url.Values{}
	params.Set("q", location)
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	return params
}

// Forecast returns the forecast samples for location in upstream order. Sample times are local.
func (c *OpenWeatherClient) Forecast(ctx context.Context, location string) ([]models.ForecastSample, error) {
	var resp forecastResponse
	if err := c.getJSON(ctx, "/forecast", c.params(location), &resp); err != nil {
		return nil, fmt.Errorf("forecast %q: %w", location, err)
	}

	out := make([]models.ForecastSample, 0, len(resp.List))
	for _, f := range resp.List {
		description := ""
		if len(f.Weather) > 0 {
			description = f.Weather[0].Main
			if f.Weather[0].Description != "" {
				description = f.Weather[0].Description
			}
		}
		out = append(out, models.ForecastSample{
			Time:        time.Unix(f.Dt, 0),
			Temperature: f.Main.Temp,
			TempMax:     f.Main.TempMax,
			TempMin:     f.Main.TempMin,
			Humidity:    f.Main.Humidity,
			Description: description,
			WindSpeed:   f.Wind.Speed,
			WindDeg:     f.Wind.Deg,
			Cloudiness:  f.Clouds.All,
		})
	}
	return out, nil
}

// ValidateAPIKey performs a lightweight forecast call to check the key is accepted.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := c.params("London")
	params.Set("cnt", "1")
	req, err := c.buildRequest(ctx, "/forecast", params)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
