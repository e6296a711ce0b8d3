package models

// MemeTemplate is one captionable image from the Imgflip template list.
type MemeTemplate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BoxCount int    `json:"box_count"`
}
