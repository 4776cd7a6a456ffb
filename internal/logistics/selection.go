package logistics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

var (
	// ErrNoOffers means the search returned nothing to choose from.
	ErrNoOffers = errors.New("no offers")
	// ErrSelection means an offer was malformed and no minimum could be computed.
	ErrSelection = errors.New("selection error")
)

// SelectBest returns the offer with the lowest total price, the first one on ties.
// Any offer whose price is missing or not a number fails the whole selection,
// as does a best offer without flight segments.
func SelectBest(offers []models.FlightOffer) (models.BestFlight, error) {
	if len(offers) == 0 {
		return models.BestFlight{}, ErrNoOffers
	}

	bestIdx := -1
	var bestAmount float64
	for i, o := range offers {
		amount, err := parsePrice(o.Price.Total)
		if err != nil {
			return models.BestFlight{}, fmt.Errorf("%w: offer %d (%s): %v", ErrSelection, i, o.ID, err)
		}
		if bestIdx < 0 || amount < bestAmount {
			bestIdx, bestAmount = i, amount
		}
	}

	best := offers[bestIdx]
	first, ok := best.FirstSegment()
	if !ok {
		return models.BestFlight{}, fmt.Errorf("%w: offer %s has no segments", ErrSelection, best.ID)
	}
	last, _ := best.LastSegment()
	return models.BestFlight{
		Price:         best.Price.Total,
		Amount:        bestAmount,
		Currency:      best.Price.Currency,
		Duration:      best.Duration(),
		DepartureTime: first.Departure.At,
		ArrivalTime:   last.Arrival.At,
		Airline:       first.CarrierCode,
		Stops:         best.Stops(),
		CabinClass:    best.Cabin,
		Origin:        first.Departure.IATACode,
		Destination:   last.Arrival.IATACode,
	}, nil
}

func parsePrice(total string) (float64, error) {
	total = strings.TrimSpace(total)
	if total == "" {
		return 0, errors.New("missing price")
	}
	v, err := strconv.ParseFloat(total, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("bad price %q", total)
	}
	return v, nil
}
