package logistics

import (
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

// ArrivalDisplayLayout renders arrival times for people ("December 02, 2024, 10:05 AM").
const ArrivalDisplayLayout = "January 02, 2006, 15:04 PM"

// NearestForecast returns the sample closest in time to arrival. Ties keep the earlier
// sample in upstream order. ok is false when samples is empty.
func NearestForecast(samples []models.ForecastSample, arrival time.Time) (models.ForecastSample, bool) {
	bestIdx := -1
	var bestDiff time.Duration
	for i, s := range samples {
		diff := s.Time.Sub(arrival)
		if diff < 0 {
			diff = -diff
		}
		if bestIdx < 0 || diff < bestDiff {
			bestIdx, bestDiff = i, diff
		}
	}
	if bestIdx < 0 {
		return models.ForecastSample{}, false
	}
	return samples[bestIdx], true
}

// ParseArrival reads a flight timestamp as local time.
func ParseArrival(s string) (time.Time, error) {
	return time.ParseInLocation(models.FlightTimeLayout, s, time.Local)
}

// FormatArrival renders a flight timestamp with ArrivalDisplayLayout, or returns s unchanged
// when it does not parse.
func FormatArrival(s string) string {
	t, err := ParseArrival(s)
	if err != nil {
		return s
	}
	return t.Format(ArrivalDisplayLayout)
}

// weatherAt picks the forecast for the arrival timestamp, or a placeholder when the
// timestamp is malformed or there are no samples.
func weatherAt(samples []models.ForecastSample, arrival string) models.WeatherSnapshot {
	at, err := ParseArrival(arrival)
	if err != nil {
		return models.PlaceholderWeather(arrival)
	}
	s, ok := NearestForecast(samples, at)
	if !ok {
		return models.PlaceholderWeather(arrival)
	}
	return models.WeatherSnapshot{ArrivalTime: arrival, Sample: s}
}
