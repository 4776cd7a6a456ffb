package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

// PlacesClient searches places and looks up their details.
type PlacesClient interface {
	SearchPlaces(ctx context.Context, query string, limit int) ([]models.PlaceSummary, error)
	GetPlaceDetails(ctx context.Context, placeID string) (models.PlaceDetail, error)
}

// DefaultPlacesURL is the Google Places web service root.
const DefaultPlacesURL = "https://maps.googleapis.com/maps/api/place"

const placeDetailFields = "name,formatted_address,geometry,opening_hours,photos"

// GooglePlacesClient implements PlacesClient against the Google Places web service.
type GooglePlacesClient struct {
	*baseClient
	apiKey string
}

// NewGooglePlacesClient returns a client for baseURL (DefaultPlacesURL in production).
func NewGooglePlacesClient(apiKey, baseURL string, opts Options) (*GooglePlacesClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: places API key is required", ErrInvalidAPIKey)
	}
	base, err := newBaseClient(ProviderPlaces, baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &GooglePlacesClient{baseClient: base, apiKey: apiKey}, nil
}

type placesLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type placesGeometry struct {
	Location placesLocation `json:"location"`
}

// placesEnvelope carries the status field every Places response has.
type placesEnvelope struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

func (e placesEnvelope) checkStatus() error {
	switch e.Status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "REQUEST_DENIED":
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, e.ErrorMessage)
	case "OVER_QUERY_LIMIT":
		return fmt.Errorf("%w: %s", ErrRateLimited, e.ErrorMessage)
	case "NOT_FOUND":
		return fmt.Errorf("%w", ErrNotFound)
	default:
		return fmt.Errorf("%w: status %s %s", ErrUpstreamFailure, e.Status, e.ErrorMessage)
	}
}

type textSearchResponse struct {
	placesEnvelope
	Results []struct {
		PlaceID          string         `json:"place_id"`
		Name             string         `json:"name"`
		FormattedAddress string         `json:"formatted_address"`
		Geometry         placesGeometry `json:"geometry"`
	} `json:"results"`
}

type detailsResponse struct {
	placesEnvelope
	Result struct {
		Name             string         `json:"name"`
		FormattedAddress string         `json:"formatted_address"`
		Geometry         placesGeometry `json:"geometry"`
		OpeningHours     *struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
	} `json:"result"`
}

// SearchPlaces runs a text search and returns at most limit hits (limit <= 0 means all).
// ZERO_RESULTS is an empty slice, not an error.
func (c *GooglePlacesClient) SearchPlaces(ctx context.Context, query string, limit int) ([]models.PlaceSummary, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)

	var resp textSearchResponse
	if err := c.getJSON(ctx, "/textsearch/json", params, &resp); err != nil {
		return nil, fmt.Errorf("search places %q: %w", query, err)
	}

	results := resp.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]models.PlaceSummary, 0, len(results))
	for _, r := range results {
		out = append(out, models.PlaceSummary{
			PlaceID:  r.PlaceID,
			Name:     r.Name,
			Address:  r.FormattedAddress,
			Location: models.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		})
	}
	return out, nil
}

// GetPlaceDetails looks up one place. Missing opening hours yield a nil slice.
func (c *GooglePlacesClient) GetPlaceDetails(ctx context.Context, placeID string) (models.PlaceDetail, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", placeDetailFields)
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.getJSON(ctx, "/details/json", params, &resp); err != nil {
		return models.PlaceDetail{}, fmt.Errorf("place details %s: %w", placeID, err)
	}

	r := resp.Result
	detail := models.PlaceDetail{
		Name:     r.Name,
		Address:  r.FormattedAddress,
		Location: models.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
	}
	if r.OpeningHours != nil {
		detail.OpeningHours = r.OpeningHours.WeekdayText
	}
	for _, p := range r.Photos {
		if p.PhotoReference != "" {
			detail.PhotoRefs = append(detail.PhotoRefs, p.PhotoReference)
		}
	}
	return detail, nil
}
