package logistics

import (
	"strconv"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/store"
)

// Section values tag each snapshot row with the dataset it came from.
const (
	SectionOffer   = "offer"
	SectionBest    = "best"
	SectionWeather = "weather"
	SectionTraffic = "traffic"
)

const sampleTimeLayout = "2006-01-02 15:04:05"

// snapshotColumns is the union of every section's columns. Cells a section does not use stay empty.
var snapshotColumns = []string{
	"Section",
	// offers and best flight
	"Price", "Flight Price", "Duration", "Flight Duration", "Departure Time", "Arrival Time",
	"Airline", "Stops", "Cabin Class", "Origin", "Destination",
	// weather
	"Time", "Temperature (C)", "Max Temperature (C)", "Min Temperature (C)", "Humidity (%)",
	"Weather", "Wind Speed (m/s)", "Wind Direction", "Cloudiness (%)",
	// traffic
	"Start Point", "End Point", "Distance (meters)", "Travel Time (seconds)",
	"Traffic Delay (seconds)", "Average Speed (m/s)", "Traffic Level",
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func snapshotTable(res *Result) *store.Table {
	t := store.NewTable(snapshotColumns...)
	for _, o := range res.Offers {
		t.Append(offerRow(o))
	}
	t.Append(bestRow(res.Best))
	t.Append(weatherRow(res.Weather))
	for _, s := range res.Traffic {
		t.Append(trafficRow(s))
	}
	return t
}

func offerRow(o models.FlightOffer) store.Row {
	first, _ := o.FirstSegment()
	last, _ := o.LastSegment()
	return store.Row{
		"Section":        SectionOffer,
		"Price":          o.Price.Total,
		"Duration":       o.Duration(),
		"Departure Time": first.Departure.At,
		"Arrival Time":   last.Arrival.At,
		"Airline":        first.CarrierCode,
		"Stops":          strconv.Itoa(o.Stops()),
		"Cabin Class":    o.Cabin,
	}
}

func bestRow(b models.BestFlight) store.Row {
	return store.Row{
		"Section":         SectionBest,
		"Flight Price":    b.Price,
		"Flight Duration": b.Duration,
		"Departure Time":  b.DepartureTime,
		"Arrival Time":    b.ArrivalTime,
		"Airline":         b.Airline,
		"Stops":           strconv.Itoa(b.Stops),
		"Cabin Class":     b.CabinClass,
		"Origin":          b.Origin,
		"Destination":     b.Destination,
	}
}

func weatherRow(w models.WeatherSnapshot) store.Row {
	if w.Placeholder {
		return store.Row{
			"Section": SectionWeather,
			"Time":    w.ArrivalTime,
			"Weather": w.Sample.Description,
		}
	}
	s := w.Sample
	direction := "N/A"
	if s.WindDeg != nil {
		direction = strconv.Itoa(*s.WindDeg)
	}
	return store.Row{
		"Section":             SectionWeather,
		"Time":                s.Time.Local().Format(sampleTimeLayout),
		"Temperature (C)":     fmtFloat(s.Temperature),
		"Max Temperature (C)": fmtFloat(s.TempMax),
		"Min Temperature (C)": fmtFloat(s.TempMin),
		"Humidity (%)":        strconv.Itoa(s.Humidity),
		"Weather":             s.Description,
		"Wind Speed (m/s)":    fmtFloat(s.WindSpeed),
		"Wind Direction":      direction,
		"Cloudiness (%)":      strconv.Itoa(s.Cloudiness),
	}
}

func trafficRow(s models.RouteSection) store.Row {
	speed := "N/A"
	if s.SpeedMetersPerSecond != nil {
		speed = fmtFloat(*s.SpeedMetersPerSecond)
	}
	return store.Row{
		"Section":                 SectionTraffic,
		"Start Point":             s.StartPoint,
		"End Point":               s.EndPoint,
		"Distance (meters)":       strconv.Itoa(s.LengthMeters),
		"Travel Time (seconds)":   strconv.Itoa(s.TravelTimeSeconds),
		"Traffic Delay (seconds)": strconv.Itoa(s.TrafficDelaySeconds),
		"Average Speed (m/s)":     speed,
		"Traffic Level":           s.TrafficLevel,
	}
}
