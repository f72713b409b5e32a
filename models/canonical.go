package models

import "time"

// RawRecord is an upstream API object as decoded JSON. Shapes vary across
// Entase API versions and endpoints, so it is treated as untrusted input and
// carried alongside the canonical record for debugging and export.
type RawRecord map[string]any

// CanonicalProduction is the normalized shape of an upstream production.
// ID is the upstream-assigned identifier and is always non-empty; records
// that fail to yield one are dropped during mapping.
type CanonicalProduction struct {
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
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	Raw          RawRecord  `json:"raw,omitempty"`
}

// CanonicalEvent is the normalized shape of an upstream event (a single
// scheduled performance of a production).
type CanonicalEvent struct {
	ID             string     `json:"id"`
	ProductionID   string     `json:"productionId,omitempty"`
	ProductionSlug string     `json:"productionSlug"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	Status         *string    `json:"status,omitempty"`
	Raw            RawRecord  `json:"raw,omitempty"`
}
