package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

// RoutingClient computes a road route with live traffic between two coordinates.
type RoutingClient interface {
	Route(ctx context.Context, origin, dest models.Coordinate) ([]models.RouteSection, error)
}

// DefaultTomTomURL is the TomTom API root.
const DefaultTomTomURL = "https://api.tomtom.com"

// NoValue is written where the routing provider left a field out.
const NoValue = "N/A"

// TomTomClient implements RoutingClient with the TomTom calculateRoute endpoint.
type TomTomClient struct {
	*baseClient
	apiKey string
}

// NewTomTomClient returns a client for baseURL (DefaultTomTomURL in production).
func NewTomTomClient(apiKey, baseURL string, opts Options) (*TomTomClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: routing API key is required", ErrInvalidAPIKey)
	}
	base, err := newBaseClient(ProviderRouting, baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &TomTomClient{baseClient: base, apiKey: apiKey}, nil
}

type routePoint struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p *routePoint) String() string {
	if p == nil {
		return NoValue + "," + NoValue
	}
	return formatCoord(p.Latitude) + "," + formatCoord(p.Longitude)
}

func formatCoord(v *float64) string {
	if v == nil {
		return NoValue
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

type routeResponse struct {
	Routes []struct {
		Sections []struct {
			StartPoint *routePoint `json:"startPoint"`
			EndPoint   *routePoint `json:"endPoint"`
			Summary    struct {
				LengthInMeters         int      `json:"lengthInMeters"`
				TravelTimeInSeconds    int      `json:"travelTimeInSeconds"`
				TrafficDelayInSeconds  int      `json:"trafficDelayInSeconds"`
				SpeedInMetersPerSecond *float64 `json:"speedInMetersPerSecond"`
			} `json:"summary"`
			TrafficLevel string `json:"trafficLevel"`
		} `json:"sections"`
	} `json:"routes"`
}

// Route returns the sections of the fastest route. No route yields an empty slice and no error.
func (c *TomTomClient) Route(ctx context.Context, origin, dest models.Coordinate) ([]models.RouteSection, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("traffic", "true")
	params.Set("routeType", "fastest")

	path := "/routing/1/calculateRoute/" + origin.String() + ":" + dest.String() + "/json"
	var resp routeResponse
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return nil, fmt.Errorf("route %s to %s: %w", origin, dest, err)
	}
	if len(resp.Routes) == 0 {
		return []models.RouteSection{}, nil
	}

	sections := resp.Routes[0].Sections
	out := make([]models.RouteSection, 0, len(sections))
	for _, s := range sections {
		level := s.TrafficLevel
		if level == "" {
			level = NoValue
		}
		out = append(out, models.RouteSection{
			StartPoint:           s.StartPoint.String(),
			EndPoint:             s.EndPoint.String(),
			LengthMeters:         s.Summary.LengthInMeters,
			TravelTimeSeconds:    s.Summary.TravelTimeInSeconds,
			TrafficDelaySeconds:  s.Summary.TrafficDelayInSeconds,
			SpeedMetersPerSecond: s.Summary.SpeedInMetersPerSecond,
			TrafficLevel:         level,
		})
	}
	return out, nil
}
