package models

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrThoughtRequired  = errors.New("meme thought is required")
	ErrLocationRequired = errors.New("meme location is required")
	ErrMemeURLRequired  = errors.New("meme url is required")
)

// MemeRecord is one generated meme. Geo fields are those resolved for the
// requester when the meme was created.
type MemeRecord struct {
	ID          string    `bson:"_id,omitempty" json:"id" firestore:"-"`
	Thought     string    `bson:"thought" json:"thought" firestore:"thought"`
	Location    string    `bson:"location" json:"location" firestore:"location"`
	City        string    `bson:"city" json:"city" firestore:"city"`
	Region      string    `bson:"region" json:"region" firestore:"region"`
	Country     string    `bson:"country" json:"country" firestore:"country"`
	MemeURL     string    `bson:"meme_url" json:"meme_url" firestore:"meme_url"`
	TemplateID  string    `bson:"template_id" json:"template_id" firestore:"template_id"`
	Explanation string    `bson:"explanation,omitempty" json:"explanation,omitempty" firestore:"explanation,omitempty"`
	IPAddress   string    `bson:"ip_address" json:"-" firestore:"ip_address"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp" firestore:"timestamp"`
}

func (m *MemeRecord) Validate() error {
	switch {
	case strings.TrimSpace(m.Thought) == "":
		return ErrThoughtRequired
	case strings.TrimSpace(m.Location) == "":
		return ErrLocationRequired
	case strings.TrimSpace(m.MemeURL) == "":
		return ErrMemeURLRequired
	}
	return nil
}
