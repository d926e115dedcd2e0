package domain

import "time"

// Member is one forum member as scraped from the member directory and the
// profile page. Location is the free text the member typed into the profile.
type Member struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	Href     string `json:"href,omitempty"`
	Location string `json:"location,omitempty"`
	VM       string `json:"vm,omitempty"`    // velomobile
	TR       string `json:"tr,omitempty"`    // trike
	LR       string `json:"lr,omitempty"`    // recumbent bike (Liegerad)
	Other    string `json:"other,omitempty"` // other vehicles and remarks
}

// Candidate is one search result returned by the geocoding backend. Lat and
// Lon are kept as the decimal strings the backend returned.
type Candidate struct {
	PlaceID     int64             `json:"place_id"`
	Type        string            `json:"type"`
	Class       string            `json:"class,omitempty"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name,omitempty"`
	BoundingBox []string          `json:"boundingbox,omitempty"` // south, north, west, east
	Address     map[string]string `json:"address,omitempty"`
}

// Resolution is the geographic part of an enriched member.
type Resolution struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Radius      Radius `json:"radius"`
	PostalCode  string `json:"postal_code,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// EnrichedMember is a member whose location was resolved to a coordinate.
type EnrichedMember struct {
	Member
	Resolution
	ProcessedAt time.Time `json:"processed_at"`
}

// NewEnrichedMember stamps a member with its resolution and the current time.
func NewEnrichedMember(m Member, r Resolution) EnrichedMember {
	return EnrichedMember{
		Member:      m,
		Resolution:  r,
		ProcessedAt: clock.Now().UTC(),
	}
}
