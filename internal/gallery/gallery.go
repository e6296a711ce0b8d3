package gallery

import (
	"context"
	"fmt"

	"memeatlas/db"
	"memeatlas/internal/logger"
	"memeatlas/internal/metrics"
	"memeatlas/models"
)

// WindowSize is how many of the newest memes a query considers.
const WindowSize = 100

type Result struct {
	Memes []*models.MemeRecord `json:"memes"`
	Level Level                `json:"level"`
}

// Service answers gallery queries from one window of recent memes.
type Service struct {
	repo   db.MemeRepository
	window int
}

func NewService(repo db.MemeRepository) *Service {
	return &Service{repo: repo, window: WindowSize}
}

// Query returns the memes closest to the given geography, falling back from
// city to region to country to everything in the window.
func (s *Service) Query(ctx context.Context, city, region, country string) (Result, error) {
	recent, err := s.repo.FindRecent(ctx, s.window)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load recent memes: %w", err)
	}

	geo := models.GeoLocation{City: city, Region: region, Country: country}
	memes, level := Narrow(recent, geo, memeGeo)
	if memes == nil {
		memes = []*models.MemeRecord{}
	}

	metrics.GalleryQueriesTotal.WithLabelValues(string(level)).Inc()
	logger.L().Debug("gallery_query", "city", city, "region", region, "country", country,
		"window", len(recent), "level", level, "count", len(memes))

	return Result{Memes: memes, Level: level}, nil
}

func memeGeo(m *models.MemeRecord) models.GeoLocation {
	return models.GeoLocation{City: m.City, Region: m.Region, Country: m.Country}
}
