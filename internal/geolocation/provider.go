package geolocation

import (
	"context"

	"memeatlas/models"
)

// Provider maps one address to a location. Implementations return raw fields;
// the resolver normalizes them.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (models.GeoLocation, error)
}
