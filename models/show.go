package models

import "time"

// Show is a locally persisted production. Slug is unique and is the public
// identifier used by the website; ExternalID links the row back to the
// upstream production when the column exists in the deployed schema.
type Show struct {
	ID           string     `json:"id"`
	Slug         string     `json:"slug"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Author       *string    `json:"author,omitempty"`
	Story        *string    `json:"story,omitempty"`
	Synopsis     *string    `json:"synopsis,omitempty"`
	PosterURL    *string    `json:"posterUrl,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	LandscapeURL *string    `json:"landscapeUrl,omitempty"`
	ExternalID   *string    `json:"externalId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Performance is a single scheduled showing of a Show.
type Performance struct {
	ID              string    `json:"id"`
	ShowID          string    `json:"showId"`
	Time            time.Time `json:"time"`
	ExternalEventID *string   `json:"externalEventId,omitempty"`
}
