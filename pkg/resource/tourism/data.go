package tourism

type Location struct {
	City     string `json:"city"`
	District string `json:"district"`
	Address  string `json:"address"`
}

type AdmissionFee struct {
	Adult    int    `json:"adult"`
	Child    int    `json:"child"`
	Currency string `json:"currency"`
}

type Spot struct {
	Name                string       `json:"name"`
	Type                string       `json:"type"`
	Rating              float64      `json:"rating"`
	Description         string       `json:"description"`
	Location            Location     `json:"location"`
	OpeningHours        string       `json:"openingHours"`
	AdmissionFee        AdmissionFee `json:"admissionFee"`
	RecommendedDuration string       `json:"recommendedDuration"`
	Tips                []string     `json:"tips"`
}

var spots = []Spot{
	{
		Name:        "Eiffel Tower",
		Type:        "Landmark",
		Rating:      4.7,
		Description: "Iconic iron lattice tower on the Champ de Mars, symbol of Paris and France.",
		Location: Location{
			City:     "Paris",
			District: "Champ de Mars",
			Address:  "Champ de Mars, 5 Avenue Anatole France, 75007 Paris",
		},
		OpeningHours:        "09:00-00:00",
		AdmissionFee:        AdmissionFee{Adult: 2800, Child: 1400, Currency: "JPY"},
		RecommendedDuration: "2-3 hours",
		Tips: []string{
			"Book tickets online to skip the queue",
			"Visit at sunset for stunning views",
			"Take the stairs to the 2nd floor for exercise and shorter wait",
		},
	},
	{
		Name:        "Louvre Museum",
		Type:        "Museum",
		Rating:      4.8,
		Description: "World's largest art museum and historic monument housing the Mona Lisa.",
		Location: Location{
			City:     "Paris",
			District: "Louvre",
			Address:  "Rue de Rivoli, 75001 Paris",
		},
		OpeningHours:        "09:00-18:00 (Closed Tuesday)",
		AdmissionFee:        AdmissionFee{Adult: 2200, Child: 0, Currency: "JPY"},
		RecommendedDuration: "3-4 hours",
		Tips: []string{
			"Enter via the Carrousel du Louvre for shorter lines",
			"Get a museum map and plan your route",
			"Free entry on first Sunday of each month",
		},
	},
	{
		Name:        "Notre-Dame Cathedral",
		Type:        "Religious Site",
		Rating:      4.6,
		Description: "Medieval Catholic cathedral, a masterpiece of French Gothic architecture.",
		Location: Location{
			City:     "Paris",
			District: "Île de la Cité",
			Address:  "6 Parvis Notre-Dame, 75004 Paris",
		},
		OpeningHours:        "08:00-18:45",
		AdmissionFee:        AdmissionFee{Adult: 0, Child: 0, Currency: "JPY"},
		RecommendedDuration: "1-2 hours",
		Tips: []string{
			"Currently under restoration - check opening status",
			"View from the bridges for best photos",
			"Visit early morning to avoid crowds",
		},
	},
	{
		Name:        "Big Ben & Houses of Parliament",
		Type:        "Landmark",
		Rating:      4.5,
		Description: "Iconic clock tower and seat of the UK Parliament.",
		Location: Location{
			City:     "London",
			District: "Westminster",
			Address:  "Westminster, London SW1A 0AA",
		},
		OpeningHours:        "External viewing 24/7",
		AdmissionFee:        AdmissionFee{Adult: 0, Child: 0, Currency: "JPY"},
		RecommendedDuration: "1 hour",
		Tips: []string{
			"Best viewed from Westminster Bridge",
			"Night illumination is spectacular",
			"Combine with Westminster Abbey visit",
		},
	},
	{
		Name:        "British Museum",
		Type:        "Museum",
		Rating:      4.8,
		Description: "World-famous museum with over 8 million works from all continents.",
		Location: Location{
			City:     "London",
			District: "Bloomsbury",
			Address:  "Great Russell St, London WC1B 3DG",
		},
		OpeningHours:        "10:00-17:00",
		AdmissionFee:        AdmissionFee{Adult: 0, Child: 0, Currency: "JPY"},
		RecommendedDuration: "3-4 hours",
		Tips: []string{
			"Free entry - donations welcome",
			"Must-see: Rosetta Stone, Egyptian mummies",
			"Free guided tours available",
		},
	},
}

var knownCities = []string{"Paris", "London"}
