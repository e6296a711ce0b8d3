package models

const (
	UnknownCity    = "Unknown City"
	UnknownRegion  = "Unknown Region"
	UnknownCountry = "Unknown Country"
)

// GeoLocation is the resolved geography of a client address. It is cached by IP
// and never stored on its own.
type GeoLocation struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// UnknownLocation returns the sentinel value used when resolution fails.
func UnknownLocation(ip string) GeoLocation {
	return GeoLocation{
		IP:      ip,
		City:    UnknownCity,
		Region:  UnknownRegion,
		Country: UnknownCountry,
	}
}

// Normalize replaces blank fields with their sentinel strings.
func (g GeoLocation) Normalize() GeoLocation {
	if g.City == "" {
		g.City = UnknownCity
	}
	if g.Region == "" {
		g.Region = UnknownRegion
	}
	if g.Country == "" {
		g.Country = UnknownCountry
	}
	return g
}

// IsUnknown reports whether every field is a sentinel, i.e. resolution failed.
func (g GeoLocation) IsUnknown() bool {
	return g.City == UnknownCity && g.Region == UnknownRegion && g.Country == UnknownCountry
}

// IsSentinel reports whether v is one of the placeholder strings or blank.
func IsSentinel(v string) bool {
	switch v {
	case "", UnknownCity, UnknownRegion, UnknownCountry:
		return true
	}
	return false
}
