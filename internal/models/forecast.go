package models

import "time"

// ForecastSample is one point of a multi-day forecast.
type ForecastSample struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	TempMax     float64   `json:"tempMax"`
	TempMin     float64   `json:"tempMin"`
	Humidity    int       `json:"humidity"`
	Description string    `json:"description"`
	WindSpeed   float64   `json:"windSpeed"`
	WindDeg     *int      `json:"windDeg,omitempty"` // absent in some samples
	Cloudiness  int       `json:"cloudiness"`
}

// WeatherSnapshot is the forecast chosen for a flight arrival.
// Placeholder is set when no forecast could be matched; Sample is then zero
// and ArrivalTime carries the requested time.
type WeatherSnapshot struct {
	ArrivalTime string         `json:"arrivalTime"`
	Sample      ForecastSample `json:"sample"`
	Placeholder bool           `json:"placeholder,omitempty"`
}

// NoWeatherData is the description shown for placeholder snapshots.
const NoWeatherData = "No data"

// PlaceholderWeather returns the snapshot used when a forecast is unavailable.
func PlaceholderWeather(arrival string) WeatherSnapshot {
	return WeatherSnapshot{
		ArrivalTime: arrival,
		Sample:      ForecastSample{Description: NoWeatherData},
		Placeholder: true,
	}
}

// RouteSection is one section of a computed road route with its traffic summary.
type RouteSection struct {
	StartPoint           string   `json:"startPoint"`
	EndPoint             string   `json:"endPoint"`
	LengthMeters         int      `json:"lengthMeters"`
	TravelTimeSeconds    int      `json:"travelTimeSeconds"`
	TrafficDelaySeconds  int      `json:"trafficDelaySeconds"`
	SpeedMetersPerSecond *float64 `json:"speedMetersPerSecond,omitempty"`
	TrafficLevel         string   `json:"trafficLevel"`
}
