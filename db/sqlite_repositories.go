package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"memeatlas/internal/util"
	"memeatlas/models"
)

// SQLiteLocationRepository implements LocationRepository for SQLite
type SQLiteLocationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteLocationRepository creates a new SQLiteLocationRepository
func NewSQLiteLocationRepository(db *sql.DB) *SQLiteLocationRepository {
	return &SQLiteLocationRepository{db: db, now: time.Now}
}

// Close closes the repository (satisfies Repository interface)
func (r *SQLiteLocationRepository) Close() error {
	// SQLite connection is managed by the main DB instance
	return nil
}

// FindByLabel retrieves the location stored under an exact label
func (r *SQLiteLocationRepository) FindByLabel(ctx context.Context, label string) (*models.LocationRecord, error) {
	query := `
		SELECT id, label, city, region, country, created_at, updated_at
		FROM locations
		WHERE label = ?
	`

	var loc models.LocationRecord
	err := r.db.QueryRowContext(ctx, query, label).Scan(
		&loc.ID, &loc.Label, &loc.City, &loc.Region, &loc.Country,
		&loc.CreatedAt, &loc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location by label: %w", err)
	}

	return &loc, nil
}

// FindAll returns all locations ordered by label
func (r *SQLiteLocationRepository) FindAll(ctx context.Context) ([]*models.LocationRecord, error) {
	query := `
		SELECT id, label, city, region, country, created_at, updated_at
		FROM locations
		ORDER BY label ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.LocationRecord
	for rows.Next() {
		var loc models.LocationRecord
		if err := rows.Scan(
			&loc.ID, &loc.Label, &loc.City, &loc.Region, &loc.Country,
			&loc.CreatedAt, &loc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location row: %w", err)
		}
		locations = append(locations, &loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating location rows: %w", err)
	}

	return locations, nil
}

// Upsert creates the location or overwrites the geo fields of the existing one.
// A single statement keeps concurrent upserts of the same label from racing.
func (r *SQLiteLocationRepository) Upsert(ctx context.Context, location *models.LocationRecord) (*models.LocationRecord, error) {
	if err := location.Validate(); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	query := `
		INSERT INTO locations (id, label, city, region, country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			city = excluded.city,
			region = excluded.region,
			country = excluded.country,
			updated_at = excluded.updated_at
	`

	err := util.RetryOnLock(func() error {
		_, err := r.db.ExecContext(ctx, query,
			GenerateID(), location.Label, location.City, location.Region, location.Country,
			now, now,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert location: %w", err)
	}

	return r.FindByLabel(ctx, location.Label)
}

// SQLiteMemeRepository implements MemeRepository for SQLite
type SQLiteMemeRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteMemeRepository creates a new SQLiteMemeRepository
func NewSQLiteMemeRepository(db *sql.DB) *SQLiteMemeRepository {
	return &SQLiteMemeRepository{db: db, now: time.Now}
}

// Close closes the repository (satisfies Repository interface)
func (r *SQLiteMemeRepository) Close() error {
	return nil
}

// Create inserts a new meme record
func (r *SQLiteMemeRepository) Create(ctx context.Context, meme *models.MemeRecord) (*models.MemeRecord, error) {
	if err := meme.Validate(); err != nil {
		return nil, err
	}

	if meme.ID == "" {
		meme.ID = GenerateID()
	}
	if meme.Timestamp.IsZero() {
		meme.Timestamp = r.now()
	}
	meme.Timestamp = meme.Timestamp.UTC()

	query := `
		INSERT INTO memes (
			id, thought, location, city, region, country,
			meme_url, template_id, explanation, ip_address, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := util.RetryOnLock(func() error {
		_, err := r.db.ExecContext(ctx, query,
			meme.ID, meme.Thought, meme.Location, meme.City, meme.Region, meme.Country,
			meme.MemeURL, meme.TemplateID, meme.Explanation, meme.IPAddress, meme.Timestamp,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create meme: %w", err)
	}

	return meme, nil
}

// FindRecent returns up to limit memes, newest first
func (r *SQLiteMemeRepository) FindRecent(ctx context.Context, limit int) ([]*models.MemeRecord, error) {
	if limit <= 0 {
		return []*models.MemeRecord{}, nil
	}

	query := `
		SELECT id, thought, location, city, region, country,
		       meme_url, template_id, explanation, ip_address, timestamp
		FROM memes
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memes: %w", err)
	}
	defer rows.Close()

	memes := []*models.MemeRecord{}
	for rows.Next() {
		var m models.MemeRecord
		if err := rows.Scan(
			&m.ID, &m.Thought, &m.Location, &m.City, &m.Region, &m.Country,
			&m.MemeURL, &m.TemplateID, &m.Explanation, &m.IPAddress, &m.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan meme row: %w", err)
		}
		memes = append(memes, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meme rows: %w", err)
	}

	return memes, nil
}
