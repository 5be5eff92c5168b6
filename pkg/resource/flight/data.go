package flight

// Stop is one end of a flight
type Stop struct {
	Airport string `json:"airport"`
	Time    string `json:"time"`
	Date    string `json:"date"`
}

type Flight struct {
	Carrier   string `json:"carrier"`
	FlightNo  string `json:"flightNo"`
	Price     int    `json:"price"`
	Currency  string `json:"currency"`
	Departure Stop   `json:"departure"`
	Arrival   Stop   `json:"arrival"`
	Duration  string `json:"duration"`
	Class     string `json:"class"`
}

var inventory = []Flight{
	{
		Carrier:   "Air France",
		FlightNo:  "AF275",
		Price:     85000,
		Currency:  "JPY",
		Departure: Stop{Airport: "NRT", Time: "10:30", Date: "2025-06-15"},
		Arrival:   Stop{Airport: "CDG", Time: "15:45", Date: "2025-06-15"},
		Duration:  "13h 15m",
		Class:     "Economy",
	},
	{
		Carrier:   "Japan Airlines",
		FlightNo:  "JL045",
		Price:     92000,
		Currency:  "JPY",
		Departure: Stop{Airport: "HND", Time: "11:00", Date: "2025-06-15"},
		Arrival:   Stop{Airport: "CDG", Time: "16:30", Date: "2025-06-15"},
		Duration:  "13h 30m",
		Class:     "Economy",
	},
	{
		Carrier:   "ANA",
		FlightNo:  "NH215",
		Price:     88000,
		Currency:  "JPY",
		Departure: Stop{Airport: "NRT", Time: "09:00", Date: "2025-06-15"},
		Arrival:   Stop{Airport: "CDG", Time: "14:30", Date: "2025-06-15"},
		Duration:  "13h 30m",
		Class:     "Economy",
	},
	{
		Carrier:   "Lufthansa",
		FlightNo:  "LH711",
		Price:     78000,
		Currency:  "JPY",
		Departure: Stop{Airport: "NRT", Time: "13:00", Date: "2025-06-15"},
		Arrival:   Stop{Airport: "FRA", Time: "18:00", Date: "2025-06-15"},
		Duration:  "12h 00m",
		Class:     "Economy",
	},
	{
		Carrier:   "British Airways",
		FlightNo:  "BA006",
		Price:     95000,
		Currency:  "JPY",
		Departure: Stop{Airport: "HND", Time: "19:00", Date: "2025-06-15"},
		Arrival:   Stop{Airport: "LHR", Time: "23:30", Date: "2025-06-15"},
		Duration:  "12h 30m",
		Class:     "Economy",
	},
}

// Cities served by each arrival airport
var destinationAirports = []struct {
	airport string
	city    string
}{
	{airport: "CDG", city: "paris"},
	{airport: "LHR", city: "london"},
	{airport: "FRA", city: "frankfurt"},
}
