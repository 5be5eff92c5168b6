package hotel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/resource"
)

const (
	Id      = "hotel"
	AgentId = "0x70fc4e8a3b9c2d1f5e6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e"

	// Price is 0.015 USDC
	Price = 15000

	defaultGuests = 2
	defaultRooms  = 1

	maxResults      = 3
	fallbackResults = 2
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"city": {"type": "string"},
		"checkIn": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"checkOut": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"guests": {"type": "integer", "minimum": 1},
		"rooms": {"type": "integer", "minimum": 1},
		"minRating": {"type": "number", "minimum": 0, "maximum": 5},
		"maxPrice": {"type": "number", "minimum": 0}
	}
}`

type SearchParams struct {
	City      string   `json:"city,omitempty"`
	CheckIn   string   `json:"checkIn,omitempty"`
	CheckOut  string   `json:"checkOut,omitempty"`
	Guests    int      `json:"guests"`
	Rooms     int      `json:"rooms"`
	MinRating *float64 `json:"minRating,omitempty"`
	MaxPrice  *float64 `json:"maxPrice,omitempty"`
}

type SearchResult struct {
	Hotels       []Hotel      `json:"hotels"`
	SearchParams SearchParams `json:"searchParams"`
	Timestamp    string       `json:"timestamp"`
}

type hotelSearch struct {
	now func() time.Time
}

// New returns the hotel search resource
func New() resource.Resource {
	return &hotelSearch{now: time.Now}
}

func (h *hotelSearch) Id() string {
	return Id
}

func (h *hotelSearch) Metadata() resource.Metadata {
	return resource.Metadata{
		AgentId:     AgentId,
		Name:        "HotelBookerPro",
		Description: "AI-powered hotel booking agent that finds the best accommodations based on your preferences. Supports hotels worldwide with real-time availability.",
		Category:    "travel",
		Version:     "1.0.0",
	}
}

func (h *hotelSearch) PriceInfo() resource.PriceInfo {
	return resource.PriceInfo{Amount: Price}
}

func (h *hotelSearch) ParamsSchema() string {
	return paramsSchema
}

func (h *hotelSearch) GenerateResponse(_ context.Context, params json.RawMessage) (interface{}, error) {
	searchParams := SearchParams{
		Guests: defaultGuests,
		Rooms:  defaultRooms,
	}
	if err := json.Unmarshal(params, &searchParams); err != nil {
		return nil, err
	}

	return &SearchResult{
		Hotels:       selectHotels(searchParams),
		SearchParams: searchParams,
		Timestamp:    h.now().UTC().Format(time.RFC3339),
	}, nil
}

// selectHotels filters the inventory by city, rating and nightly price. When
// nothing matches, the first hotels in the inventory are suggested instead.
func selectHotels(params SearchParams) []Hotel {
	city := resolveCity(params.City)

	var res []Hotel
	for _, hotel := range inventory {
		if len(city) > 0 && hotel.Location.City != city {
			continue
		}
		if params.MinRating != nil && *params.MinRating > 0 && hotel.Rating < *params.MinRating {
			continue
		}
		if params.MaxPrice != nil && *params.MaxPrice > 0 && float64(hotel.PricePerNight) > *params.MaxPrice {
			continue
		}
		res = append(res, hotel)
	}

	if len(res) == 0 {
		res = append(res, inventory[:fallbackResults]...)
	}

	if len(res) > maxResults {
		res = res[:maxResults]
	}
	return res
}

// resolveCity maps free-form input to a known city. Unrecognized cities don't
// filter anything.
func resolveCity(input string) string {
	input = strings.ToLower(input)
	for _, city := range knownCities {
		if strings.Contains(input, strings.ToLower(city)) {
			return city
		}
	}
	return ""
}
