package models

// FlightTimeLayout is the local date-time format used by flight offer endpoints ("2024-12-01T22:35:00").
const FlightTimeLayout = "2006-01-02T15:04:05"

// FlightQuery describes a one-way flight offer search.
type FlightQuery struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departureDate"`
	Adults        int    `json:"adults"`
	Currency      string `json:"currency"`
}

// Price holds the upstream total as the decimal string it was sent as.
// An empty Total means the provider omitted it.
type Price struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type Endpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type Segment struct {
	Departure   Endpoint `json:"departure"`
	Arrival     Endpoint `json:"arrival"`
	CarrierCode string   `json:"carrierCode"`
	Number      string   `json:"number,omitempty"`
}

type Itinerary struct {
	Duration string    `json:"duration"`
	Segments []Segment `json:"segments"`
}

// FlightOffer is a normalized flight offer. Offers are immutable once fetched.
type FlightOffer struct {
	ID          string      `json:"id"`
	Price       Price       `json:"price"`
	Itineraries []Itinerary `json:"itineraries"`
	Cabin       string      `json:"cabin"`
}

// FirstSegment returns the first segment of the first itinerary.
func (o FlightOffer) FirstSegment() (Segment, bool) {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return Segment{}, false
	}
	return o.Itineraries[0].Segments[0], true
}

// LastSegment returns the last segment of the first itinerary.
func (o FlightOffer) LastSegment() (Segment, bool) {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return Segment{}, false
	}
	segs := o.Itineraries[0].Segments
	return segs[len(segs)-1], true
}

// Stops is the number of intermediate landings on the first itinerary.
func (o FlightOffer) Stops() int {
	if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
		return 0
	}
	return len(o.Itineraries[0].Segments) - 1
}

// Duration is the ISO-8601 duration of the first itinerary ("PT22H35M").
func (o FlightOffer) Duration() string {
	if len(o.Itineraries) == 0 {
		return ""
	}
	return o.Itineraries[0].Duration
}

// BestFlight is the cheapest offer of a search flattened for display and export.
type BestFlight struct {
	Price         string  `json:"price"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Duration      string  `json:"duration"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime"`
	Airline       string  `json:"airline"`
	Stops         int     `json:"stops"`
	CabinClass    string  `json:"cabinClass"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
}
