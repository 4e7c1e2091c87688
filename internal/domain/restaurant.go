package domain

// RestaurantRef is the thin search-index document: just enough to sample by
// cuisine and join back to the full record.
type RestaurantRef struct {
	RestaurantID string `json:"RestaurantID"`
	Cuisine      string `json:"Cuisine"`
}

// Coordinates is a latitude/longitude pair as stored on a restaurant record.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Restaurant is a full record from the restaurants table. The worker reads a
// projection of these fields; the seeding loader writes all of them.
type Restaurant struct {
	BusinessID  string
	Name        string
	Address     string
	Coordinates *Coordinates
	ReviewCount int
	Rating      float64
	ZipCode     string
	Cuisine     string
	InsertedAt  string
}
