package models

import (
	"strconv"
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the coordinate as "lat,lng", the form routing providers expect in paths.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// PlaceSummary is one hit from a place text search.
type PlaceSummary struct {
	PlaceID  string     `json:"placeId"`
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Location Coordinate `json:"location"`
}

// PlaceDetail is the detail lookup for a single place.
type PlaceDetail struct {
	Name         string     `json:"name"`
	Address      string     `json:"address"`
	Location     Coordinate `json:"location"`
	OpeningHours []string   `json:"openingHours"`
	PhotoRefs    []string   `json:"photoRefs,omitempty"`
}

// WineAttributes are the synthetic wine fields attached to each restaurant.
type WineAttributes struct {
	WineType          string `json:"wineType"`
	Supplier          string `json:"supplier"`
	QualityTier       string `json:"qualityTier"`
	QuantityAvailable int    `json:"quantityAvailable"`
}

// RestaurantRecord is one persisted capture of a restaurant for a city.
// Several captures of the same city may coexist; freshness is decided by the latest Timestamp.
type RestaurantRecord struct {
	City         string         `json:"city"`
	Timestamp    time.Time      `json:"timestamp"`
	Name         string         `json:"name"`
	Address      string         `json:"address"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	OpeningHours string         `json:"openingHours"`
	Wine         WineAttributes `json:"wine"`
}
