package hotel

type Location struct {
	City     string `json:"city"`
	District string `json:"district"`
	Address  string `json:"address"`
}

type Hotel struct {
	Name          string   `json:"name"`
	Rating        float64  `json:"rating"`
	Stars         int      `json:"stars"`
	PricePerNight int      `json:"pricePerNight"`
	Currency      string   `json:"currency"`
	Location      Location `json:"location"`
	Amenities     []string `json:"amenities"`
	RoomType      string   `json:"roomType"`
	Availability  bool     `json:"availability"`
}

var inventory = []Hotel{
	{
		Name:          "Hotel Le Marais Boutique",
		Rating:        4.7,
		Stars:         4,
		PricePerNight: 25000,
		Currency:      "JPY",
		Location: Location{
			City:     "Paris",
			District: "Le Marais",
			Address:  "12 Rue des Archives, 75004 Paris",
		},
		Amenities:    []string{"WiFi", "Breakfast", "Air Conditioning", "Room Service"},
		RoomType:     "Deluxe Double",
		Availability: true,
	},
	{
		Name:          "Grand Hotel Opera",
		Rating:        4.5,
		Stars:         5,
		PricePerNight: 45000,
		Currency:      "JPY",
		Location: Location{
			City:     "Paris",
			District: "Opera",
			Address:  "8 Boulevard des Capucines, 75009 Paris",
		},
		Amenities:    []string{"WiFi", "Spa", "Restaurant", "Concierge", "Fitness Center"},
		RoomType:     "Superior Suite",
		Availability: true,
	},
	{
		Name:          "Montmartre View Inn",
		Rating:        4.3,
		Stars:         3,
		PricePerNight: 15000,
		Currency:      "JPY",
		Location: Location{
			City:     "Paris",
			District: "Montmartre",
			Address:  "45 Rue Lepic, 75018 Paris",
		},
		Amenities:    []string{"WiFi", "Breakfast", "City View"},
		RoomType:     "Standard Double",
		Availability: true,
	},
	{
		Name:          "The Westminster London",
		Rating:        4.8,
		Stars:         5,
		PricePerNight: 55000,
		Currency:      "JPY",
		Location: Location{
			City:     "London",
			District: "Westminster",
			Address:  "30 Victoria Street, London SW1H",
		},
		Amenities:    []string{"WiFi", "Spa", "Restaurant", "Gym", "Business Center"},
		RoomType:     "Executive Suite",
		Availability: true,
	},
	{
		Name:          "Covent Garden Hotel",
		Rating:        4.6,
		Stars:         4,
		PricePerNight: 35000,
		Currency:      "JPY",
		Location: Location{
			City:     "London",
			District: "Covent Garden",
			Address:  "10 Monmouth Street, London WC2H",
		},
		Amenities:    []string{"WiFi", "Restaurant", "Bar", "Room Service"},
		RoomType:     "Deluxe King",
		Availability: true,
	},
}

var knownCities = []string{"Paris", "London"}
