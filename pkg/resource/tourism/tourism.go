package tourism

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/code-payments/x402-resource-server/pkg/resource"
)

const (
	Id      = "tourism"
	AgentId = "0xc1de1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f6a7b8c9d0e"

	// Price is 0.02 USDC
	Price = 20000

	defaultDays     = 2
	spotsPerDay     = 2
	maxResults      = 3
	fallbackResults = 2
	currency        = "JPY"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"city": {"type": "string"},
		"days": {"type": "integer", "minimum": 1, "maximum": 14},
		"interests": {"type": "array", "items": {"type": "string"}},
		"type": {"type": "string", "enum": ["Landmark", "Museum", "Religious Site", "Park", "Restaurant"]}
	}
}`

type SearchParams struct {
	City      string   `json:"city,omitempty"`
	Days      int      `json:"days"`
	Interests []string `json:"interests,omitempty"`
	Type      string   `json:"type,omitempty"`
}

type Plan struct {
	Title     string `json:"title"`
	Duration  string `json:"duration"`
	Spots     []Spot `json:"spots"`
	TotalCost int    `json:"totalCost"`
	Currency  string `json:"currency"`
}

type SearchResult struct {
	Plan         Plan         `json:"plan"`
	Spots        []Spot       `json:"spots"`
	SearchParams SearchParams `json:"searchParams"`
	Timestamp    string       `json:"timestamp"`
}

type tourGuide struct {
	now func() time.Time
}

// New returns the tourism guide resource
func New() resource.Resource {
	return &tourGuide{now: time.Now}
}

func (g *tourGuide) Id() string {
	return Id
}

func (g *tourGuide) Metadata() resource.Metadata {
	return resource.Metadata{
		AgentId:     AgentId,
		Name:        "TourismGuide",
		Description: "AI-powered tourism guide that creates personalized travel itineraries and recommends attractions, restaurants, and activities based on your interests.",
		Category:    "travel",
		Version:     "1.0.0",
	}
}

func (g *tourGuide) PriceInfo() resource.PriceInfo {
	return resource.PriceInfo{Amount: Price}
}

func (g *tourGuide) ParamsSchema() string {
	return paramsSchema
}

func (g *tourGuide) GenerateResponse(_ context.Context, params json.RawMessage) (interface{}, error) {
	searchParams := SearchParams{
		Days: defaultDays,
	}
	if err := json.Unmarshal(params, &searchParams); err != nil {
		return nil, err
	}

	return &SearchResult{
		Plan:         newPlan(searchParams.City, searchParams.Days),
		Spots:        selectSpots(searchParams.City, searchParams.Type, maxResults),
		SearchParams: searchParams,
		Timestamp:    g.now().UTC().Format(time.RFC3339),
	}, nil
}

// newPlan builds an itinerary of up to two spots per day in the city
func newPlan(city string, days int) Plan {
	if days <= 0 {
		days = defaultDays
	}

	planned := selectSpots(city, "", days*spotsPerDay)

	var totalCost int
	for _, spot := range planned {
		totalCost += spot.AdmissionFee.Adult
	}

	title := city
	if len(title) == 0 {
		title = "City"
	}

	return Plan{
		Title:     fmt.Sprintf("%s %d-Day Tour", title, days),
		Duration:  fmt.Sprintf("%d days", days),
		Spots:     planned,
		TotalCost: totalCost,
		Currency:  currency,
	}
}

// selectSpots filters spots by city and type. When nothing matches, the first
// spots are suggested instead.
func selectSpots(cityInput, spotType string, limit int) []Spot {
	city := resolveCity(cityInput)
	spotType = strings.ToLower(spotType)

	var res []Spot
	for _, spot := range spots {
		if len(city) > 0 && spot.Location.City != city {
			continue
		}
		if len(spotType) > 0 && !strings.Contains(strings.ToLower(spot.Type), spotType) {
			continue
		}
		res = append(res, spot)
	}

	if len(res) == 0 {
		res = append(res, spots[:fallbackResults]...)
	}

	if len(res) > limit {
		res = res[:limit]
	}
	return res
}

func resolveCity(input string) string {
	input = strings.ToLower(input)
	for _, city := range knownCities {
		if strings.Contains(input, strings.ToLower(city)) {
			return city
		}
	}
	return ""
}
