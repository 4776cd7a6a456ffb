package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

// FlightClient searches one-way flight offers.
type FlightClient interface {
	SearchOffers(ctx context.Context, q models.FlightQuery) ([]models.FlightOffer, error)
}

// DefaultAmadeusURL is the Amadeus self-service test environment.
const DefaultAmadeusURL = "https://test.api.amadeus.com"

// NoCabin is reported when an offer carries no fare details.
const NoCabin = "N/A"

// AmadeusClient implements FlightClient using the Amadeus flight-offers search.
// Requests are authorized with an OAuth2 client-credentials token that is fetched
// lazily and refreshed when it expires.
type AmadeusClient struct {
	*baseClient
}

// NewAmadeusClient returns a client for baseURL. The token endpoint is derived from it.
func NewAmadeusClient(clientID, clientSecret, baseURL string, opts Options) (*AmadeusClient, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: amadeus client id and secret are required", ErrInvalidAPIKey)
	}
	base, err := newBaseClient(ProviderFlights, baseURL, opts)
	if err != nil {
		return nil, err
	}

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     base.baseURL + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenHTTP := &http.Client{Timeout: base.timeout}
	if opts.HTTPClient != nil {
		tokenHTTP = opts.HTTPClient
	}
	// The token source outlives any single request, so it gets its own context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, tokenHTTP)
	authed := cc.Client(tokenCtx)
	authed.Timeout = base.timeout
	base.http = authed

	return &AmadeusClient{baseClient: base}, nil
}

type flightOffersResponse struct {
	Data []struct {
		ID    string `json:"id"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				Departure struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"arrival"`
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
			} `json:"segments"`
		} `json:"itineraries"`
		TravelerPricings []struct {
			FareDetailsBySegment []struct {
				Cabin string `json:"cabin"`
			} `json:"fareDetailsBySegment"`
		} `json:"travelerPricings"`
	} `json:"data"`
}

// SearchOffers returns every offer for q in upstream order. An empty result is not an error.
func (c *AmadeusClient) SearchOffers(ctx context.Context, q models.FlightQuery) ([]models.FlightOffer, error) {
	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.DepartureDate)
	params.Set("adults", strconv.Itoa(q.Adults))
	if q.Currency != "" {
		params.Set("currencyCode", q.Currency)
	}

	var resp flightOffersResponse
	if err := c.getJSON(ctx, "/v2/shopping/flight-offers", params, &resp); err != nil {
		return nil, fmt.Errorf("search flight offers %s-%s: %w", q.Origin, q.Destination, mapTokenError(err))
	}

	offers := make([]models.FlightOffer, 0, len(resp.Data))
	for _, d := range resp.Data {
		offer := models.FlightOffer{
			ID:    d.ID,
			Price: models.Price{Total: d.Price.Total, Currency: d.Price.Currency},
			Cabin: NoCabin,
		}
		for _, it := range d.Itineraries {
			itin := models.Itinerary{Duration: it.Duration}
			for _, s := range it.Segments {
				itin.Segments = append(itin.Segments, models.Segment{
					Departure:   models.Endpoint{IATACode: s.Departure.IATACode, At: s.Departure.At},
					Arrival:     models.Endpoint{IATACode: s.Arrival.IATACode, At: s.Arrival.At},
					CarrierCode: s.CarrierCode,
					Number:      s.Number,
				})
			}
			offer.Itineraries = append(offer.Itineraries, itin)
		}
		if len(d.TravelerPricings) > 0 && len(d.TravelerPricings[0].FareDetailsBySegment) > 0 {
			if cabin := d.TravelerPricings[0].FareDetailsBySegment[0].Cabin; cabin != "" {
				offer.Cabin = cabin
			}
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// mapTokenError turns a rejected client-credentials exchange into ErrInvalidAPIKey.
func mapTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil &&
		(re.Response.StatusCode == http.StatusUnauthorized || re.Response.StatusCode == http.StatusBadRequest) {
		return fmt.Errorf("%w: token request rejected: %v", ErrInvalidAPIKey, err)
	}
	return err
}
