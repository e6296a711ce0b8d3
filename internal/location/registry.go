package location

import (
	"context"
	"fmt"

	"memeatlas/db"
	"memeatlas/internal/gallery"
	"memeatlas/internal/logger"
	"memeatlas/models"
)

// Registry keeps one LocationRecord per label and lists labels for the picker.
type Registry struct {
	repo      db.LocationRepository
	dbManager *db.DBManager
}

func NewRegistry(repo db.LocationRepository, dbManager *db.DBManager) *Registry {
	return &Registry{repo: repo, dbManager: dbManager}
}

// Upsert stores the geography for label, overwriting any previous values.
func (r *Registry) Upsert(ctx context.Context, label, city, region, country string) (*models.LocationRecord, error) {
	rec := &models.LocationRecord{
		Label:   label,
		City:    city,
		Region:  region,
		Country: country,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	stored, err := r.dbManager.UpsertLocation(ctx, r.repo, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert location %q: %w", label, err)
	}

	logger.L().Debug("location_upserted", "label", label, "city", city, "region", region, "country", country)
	return stored, nil
}

// Labels returns the stored labels closest to geo, sorted, followed by the
// fixed "Other" option.
func (r *Registry) Labels(ctx context.Context, geo models.GeoLocation) ([]string, error) {
	all, err := r.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	scoped, level := gallery.Narrow(all, geo, func(l *models.LocationRecord) models.GeoLocation {
		return l.Geo()
	})

	labels := make([]string, 0, len(scoped)+1)
	for _, l := range scoped {
		if l.Label == models.OtherLocationOption {
			continue
		}
		labels = append(labels, l.Label)
	}
	labels = append(labels, models.OtherLocationOption)

	logger.L().Debug("location_labels", "level", level, "count", len(labels)-1)
	return labels, nil
}
