package db

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"memeatlas/models"
)

// FirestoreLocationRepository implements LocationRepository on a Firestore collection
type FirestoreLocationRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreLocationRepository creates a new FirestoreLocationRepository
func NewFirestoreLocationRepository(client *firestore.Client, collection string) *FirestoreLocationRepository {
	return &FirestoreLocationRepository{client: client, collection: collection}
}

// Close is a no-op; the client is shared and closed by its owner
func (r *FirestoreLocationRepository) Close() error {
	return nil
}

func (r *FirestoreLocationRepository) findDoc(ctx context.Context, label string) (*firestore.DocumentSnapshot, error) {
	docs, err := r.client.Collection(r.collection).
		Where("label", "==", label).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("error finding location: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindByLabel finds a location by its exact label
func (r *FirestoreLocationRepository) FindByLabel(ctx context.Context, label string) (*models.LocationRecord, error) {
	doc, err := r.findDoc(ctx, label)
	if err != nil {
		return nil, err
	}
	return decodeLocation(doc)
}

// FindAll returns all locations ordered by label
func (r *FirestoreLocationRepository) FindAll(ctx context.Context) ([]*models.LocationRecord, error) {
	docs, err := r.client.Collection(r.collection).
		OrderBy("label", firestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("error listing locations: %w", err)
	}

	locations := make([]*models.LocationRecord, 0, len(docs))
	for _, doc := range docs {
		loc, err := decodeLocation(doc)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// Upsert updates the geo fields of the document with the same label inside a
// transaction, or adds a new document when none exists.
func (r *FirestoreLocationRepository) Upsert(ctx context.Context, location *models.LocationRecord) (*models.LocationRecord, error) {
	if err := location.Validate(); err != nil {
		return nil, err
	}

	coll := r.client.Collection(r.collection)
	query := coll.Where("label", "==", location.Label).Limit(1)
	now := time.Now().UTC()

	var ref *firestore.DocumentRef
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			ref = docs[0].Ref
			return tx.Update(ref, []firestore.Update{
				{Path: "city", Value: location.City},
				{Path: "region", Value: location.Region},
				{Path: "country", Value: location.Country},
				{Path: "updated_at", Value: now},
			})
		}
		ref = coll.NewDoc()
		return tx.Create(ref, &models.LocationRecord{
			Label:     location.Label,
			City:      location.City,
			Region:    location.Region,
			Country:   location.Country,
			CreatedAt: now,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error upserting location: %w", err)
	}

	doc, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading upserted location: %w", err)
	}
	return decodeLocation(doc)
}

func decodeLocation(doc *firestore.DocumentSnapshot) (*models.LocationRecord, error) {
	var loc models.LocationRecord
	if err := doc.DataTo(&loc); err != nil {
		return nil, fmt.Errorf("error decoding location %s: %w", doc.Ref.ID, err)
	}
	loc.ID = doc.Ref.ID
	return &loc, nil
}

// FirestoreMemeRepository implements MemeRepository on a Firestore collection
type FirestoreMemeRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreMemeRepository creates a new FirestoreMemeRepository
func NewFirestoreMemeRepository(client *firestore.Client, collection string) *FirestoreMemeRepository {
	return &FirestoreMemeRepository{client: client, collection: collection}
}

// Close is a no-op; the client is shared and closed by its owner
func (r *FirestoreMemeRepository) Close() error {
	return nil
}

// Create adds a new meme document
func (r *FirestoreMemeRepository) Create(ctx context.Context, meme *models.MemeRecord) (*models.MemeRecord, error) {
	if err := meme.Validate(); err != nil {
		return nil, err
	}
	if meme.Timestamp.IsZero() {
		meme.Timestamp = time.Now()
	}
	meme.Timestamp = meme.Timestamp.UTC()

	ref, _, err := r.client.Collection(r.collection).Add(ctx, meme)
	if err != nil {
		return nil, fmt.Errorf("error creating meme: %w", err)
	}
	meme.ID = ref.ID
	return meme, nil
}

// FindRecent returns up to limit memes, newest first
func (r *FirestoreMemeRepository) FindRecent(ctx context.Context, limit int) ([]*models.MemeRecord, error) {
	if limit <= 0 {
		return []*models.MemeRecord{}, nil
	}

	docs, err := r.client.Collection(r.collection).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("error listing memes: %w", err)
	}

	memes := make([]*models.MemeRecord, 0, len(docs))
	for _, doc := range docs {
		var m models.MemeRecord
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("error decoding meme %s: %w", doc.Ref.ID, err)
		}
		m.ID = doc.Ref.ID
		memes = append(memes, &m)
	}
	return memes, nil
}
