package flight

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/resource"
)

const (
	Id      = "flight"
	AgentId = "0x0bddd164b1ba44c2b7bd2960cce576de2de93bd1da0b5621d6b8ffcffa91b75e"

	// Price is 0.01 USDC
	Price = 10000

	defaultPassengers = 1
	defaultClass      = "Economy"

	maxResults      = 3
	fallbackResults = 2
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"origin": {"type": "string"},
		"destination": {"type": "string"},
		"date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"passengers": {"type": "integer", "minimum": 1},
		"class": {"type": "string", "enum": ["Economy", "Business", "First"]}
	}
}`

type SearchParams struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Date        string `json:"date,omitempty"`
	Passengers  int    `json:"passengers"`
	Class       string `json:"class"`
}

type SearchResult struct {
	Flights      []Flight     `json:"flights"`
	SearchParams SearchParams `json:"searchParams"`
	Timestamp    string       `json:"timestamp"`
}

type flightSearch struct {
	now func() time.Time
}

// New returns the flight search resource
func New() resource.Resource {
	return &flightSearch{now: time.Now}
}

func (f *flightSearch) Id() string {
	return Id
}

func (f *flightSearch) Metadata() resource.Metadata {
	return resource.Metadata{
		AgentId:     AgentId,
		Name:        "FlightFinderPro",
		Description: "AI-powered flight search agent that finds the best flights based on your preferences. Supports major airlines and destinations worldwide.",
		Category:    "travel",
		Version:     "1.0.0",
	}
}

func (f *flightSearch) PriceInfo() resource.PriceInfo {
	return resource.PriceInfo{Amount: Price}
}

func (f *flightSearch) ParamsSchema() string {
	return paramsSchema
}

func (f *flightSearch) GenerateResponse(_ context.Context, params json.RawMessage) (interface{}, error) {
	searchParams := SearchParams{
		Passengers: defaultPassengers,
		Class:      defaultClass,
	}
	if err := json.Unmarshal(params, &searchParams); err != nil {
		return nil, err
	}

	return &SearchResult{
		Flights:      selectFlights(searchParams),
		SearchParams: searchParams,
		Timestamp:    f.now().UTC().Format(time.RFC3339),
	}, nil
}

// selectFlights filters the inventory by origin and destination. When nothing
// matches, the first flights in the inventory are suggested instead.
func selectFlights(params SearchParams) []Flight {
	var res []Flight
	for _, flight := range inventory {
		if len(params.Origin) > 0 && !strings.Contains(flight.Departure.Airport, strings.ToUpper(params.Origin)) {
			continue
		}
		if len(params.Destination) > 0 && !matchesDestination(flight, params.Destination) {
			continue
		}
		res = append(res, flight)
	}

	if len(res) == 0 {
		res = append(res, inventory[:fallbackResults]...)
	}

	if len(res) > maxResults {
		res = res[:maxResults]
	}

	if len(params.Date) > 0 {
		for i := range res {
			res[i].Departure.Date = params.Date
			res[i].Arrival.Date = params.Date
		}
	}
	return res
}

// matchesDestination resolves known cities and airport codes. Unrecognized
// destinations don't filter anything.
func matchesDestination(flight Flight, destination string) bool {
	destination = strings.ToLower(destination)
	for _, candidate := range destinationAirports {
		if strings.Contains(destination, candidate.city) || destination == strings.ToLower(candidate.airport) {
			return flight.Arrival.Airport == candidate.airport
		}
	}
	return true
}
