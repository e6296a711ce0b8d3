package geolocation

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"memeatlas/models"
)

// MaxMindProvider resolves addresses offline from a GeoLite2/GeoIP2 City database.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

func OpenMaxMindProvider(path string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

func (p *MaxMindProvider) Name() string { return "maxmind" }

func (p *MaxMindProvider) Lookup(_ context.Context, ip string) (models.GeoLocation, error) {
	var zero models.GeoLocation
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return zero, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	rec, err := p.reader.City(parsed)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	geo := models.GeoLocation{
		IP:      ip,
		City:    rec.City.Names["en"],
		Country: rec.Country.Names["en"],
	}
	if len(rec.Subdivisions) > 0 {
		geo.Region = rec.Subdivisions[0].Names["en"]
	}
	return geo, nil
}

func (p *MaxMindProvider) Close() error {
	return p.reader.Close()
}
