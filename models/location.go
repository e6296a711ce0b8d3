package models

import (
	"errors"
	"strings"
	"time"
)

// OtherLocationOption is the fixed trailing choice on the location picker.
const OtherLocationOption = "Other (specify below)"

var ErrLabelRequired = errors.New("location label is required")

// LocationRecord is a user-supplied location label with the geography last
// resolved for it. Label is the natural key.
type LocationRecord struct {
	ID        string    `bson:"_id,omitempty" json:"id" firestore:"-"`
	Label     string    `bson:"label" json:"label" firestore:"label"`
	City      string    `bson:"city" json:"city" firestore:"city"`
	Region    string    `bson:"region" json:"region" firestore:"region"`
	Country   string    `bson:"country" json:"country" firestore:"country"`
	CreatedAt time.Time `bson:"created_at" json:"created_at" firestore:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at" firestore:"updated_at"`
}

func (l *LocationRecord) Validate() error {
	if strings.TrimSpace(l.Label) == "" {
		return ErrLabelRequired
	}
	return nil
}

// Geo returns the record's geography as a GeoLocation without an address.
func (l *LocationRecord) Geo() GeoLocation {
	return GeoLocation{City: l.City, Region: l.Region, Country: l.Country}
}
