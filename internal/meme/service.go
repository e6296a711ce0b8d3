package meme

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"strings"

	"memeatlas/db"
	"memeatlas/internal/logger"
	"memeatlas/internal/memegen"
	"memeatlas/internal/metrics"
	"memeatlas/models"
)

const (
	StatusThoughtRequired  = "Please enter your thought."
	StatusLocationRequired = "Please enter a location."
	StatusGenerated        = "Meme generated successfully."
	StatusRegenerated      = "Meme regenerated successfully."
	statusGenerateFailed   = "Failed to generate meme."
)

var memeHTML = template.Must(template.New("meme").Parse(`<div style="text-align: center;">
    <img src="{{.URL}}" alt="Meme" style="max-width: 100%; height: auto;"/>
    <p style="font-size: 1.2em; font-weight: bold;">{{.Thought}}</p>
    <p style="font-size: 1em;">Location: {{.Location}}</p>
</div>`))

// GeoResolver maps a client address to its geography. It never fails; unknown
// addresses resolve to the sentinel location.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) models.GeoLocation
}

type LocationRegistry interface {
	Upsert(ctx context.Context, label, city, region, country string) (*models.LocationRecord, error)
}

type MemeGenerator interface {
	Generate(ctx context.Context, req memegen.Request) (*memegen.Meme, error)
}

// Submission is one visitor request to create or regenerate a meme.
type Submission struct {
	Location string
	Thought  string
	Excluded []string
	ClientIP string
}

// Outcome is what the visitor gets back. Meme is nil unless generation succeeded.
// Warning is set when the meme was generated but a store write failed.
type Outcome struct {
	Status   string
	MemeHTML string
	Meme     *models.MemeRecord
	Warning  bool
}

func (o Outcome) Success() bool { return o.Meme != nil }

type Service struct {
	resolver  GeoResolver
	registry  LocationRegistry
	generator MemeGenerator
	repo      db.MemeRepository
	dbManager *db.DBManager
}

func NewService(resolver GeoResolver, registry LocationRegistry, generator MemeGenerator, repo db.MemeRepository, dbManager *db.DBManager) *Service {
	return &Service{
		resolver:  resolver,
		registry:  registry,
		generator: generator,
		repo:      repo,
		dbManager: dbManager,
	}
}

func (s *Service) Create(ctx context.Context, sub Submission) Outcome {
	return s.run(ctx, sub, StatusGenerated)
}

// Regenerate is Create for a visitor asking for another template; sub.Excluded
// carries the templates already shown.
func (s *Service) Regenerate(ctx context.Context, sub Submission) Outcome {
	return s.run(ctx, sub, StatusRegenerated)
}

func (s *Service) run(ctx context.Context, sub Submission, successStatus string) Outcome {
	log := logger.L()
	thought := strings.TrimSpace(sub.Thought)
	label := strings.TrimSpace(sub.Location)

	if thought == "" {
		metrics.MemesTotal.WithLabelValues("invalid").Inc()
		return Outcome{Status: StatusThoughtRequired}
	}
	if label == "" || label == models.OtherLocationOption {
		metrics.MemesTotal.WithLabelValues("invalid").Inc()
		return Outcome{Status: StatusLocationRequired}
	}

	geo := s.resolver.Resolve(ctx, sub.ClientIP)

	var warning bool
	if _, err := s.registry.Upsert(ctx, label, geo.City, geo.Region, geo.Country); err != nil {
		log.Warn("location_upsert_failed", "label", label, "err", err)
		warning = true
	}

	generated, err := s.generator.Generate(ctx, memegen.Request{
		Thought:  thought,
		Location: label,
		Excluded: sub.Excluded,
	})
	if err != nil {
		log.Warn("meme_generation_failed", "label", label, "err", err)
		metrics.MemesTotal.WithLabelValues("failed").Inc()
		return Outcome{Status: statusFor(err), Warning: warning}
	}

	record := &models.MemeRecord{
		Thought:     thought,
		Location:    label,
		City:        geo.City,
		Region:      geo.Region,
		Country:     geo.Country,
		MemeURL:     generated.URL,
		TemplateID:  generated.TemplateID,
		Explanation: generated.Explanation,
		IPAddress:   sub.ClientIP,
	}
	if stored, err := s.dbManager.CreateMeme(ctx, s.repo, record); err != nil {
		log.Warn("meme_store_failed", "template_id", generated.TemplateID, "err", err)
		warning = true
	} else {
		record = stored
	}

	html, err := renderMeme(record)
	if err != nil {
		log.Error("meme_render_failed", "err", err)
		metrics.MemesTotal.WithLabelValues("failed").Inc()
		return Outcome{Status: statusGenerateFailed, Warning: warning}
	}

	result := "ok"
	if warning {
		result = "degraded"
	}
	metrics.MemesTotal.WithLabelValues(result).Inc()
	log.Info("meme_generated", "template_id", record.TemplateID, "label", label, "city", geo.City, "warning", warning)

	return Outcome{
		Status:   successStatus,
		MemeHTML: html,
		Meme:     record,
		Warning:  warning,
	}
}

func statusFor(err error) string {
	var ge *memegen.Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return statusGenerateFailed
}

func renderMeme(m *models.MemeRecord) (string, error) {
	var buf bytes.Buffer
	err := memeHTML.Execute(&buf, struct {
		URL      string
		Thought  string
		Location string
	}{m.MemeURL, m.Thought, m.Location})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
