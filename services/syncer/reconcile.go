// Package syncer reconciles canonical Entase records against the local
// show/performance tables and drives the full-rebuild and incremental sync
// flows. The reconciliation functions are pure: registries are built fresh
// per run and passed in explicitly, so the engine is testable without any
// network or datastore dependency.
package syncer

import (
	"fmt"
	"strings"
	"time"

	"stagehall/models"
)

// DuplicateWindow is how close two start times may be before an incoming
// event is considered a duplicate of an existing performance for the same
// show.
const DuplicateWindow = 60 * time.Second

// SlugRegistry tracks slug bindings for one reconciliation pass. Seeded
// bindings come from existing local rows: a new record carrying the same
// title may reuse its seeded slug, which keeps re-runs from inflating
// suffixes. Slugs claimed during the pass itself are never reused, so two
// distinct upstream productions with transliteration-identical titles get
// distinct slugs in the same run.
type SlugRegistry struct {
	seeded  map[string]string // slug -> title it was stored under
	claimed map[string]bool   // slugs handed out or matched this run
}

// NewSlugRegistry creates an empty registry.
func NewSlugRegistry() *SlugRegistry {
	return &SlugRegistry{
		seeded:  make(map[string]string),
		claimed: make(map[string]bool),
	}
}

// Seed records an existing slug/title binding without claiming it.
func (r *SlugRegistry) Seed(slug, title string) {
	if slug == "" {
		return
	}
	r.seeded[slug] = title
}

// MarkUsed claims a slug outright, used for slugs kept by matched shows.
func (r *SlugRegistry) MarkUsed(slug string) {
	if slug != "" {
		r.claimed[slug] = true
	}
}

// Resolve returns a unique slug for the given candidate and title,
// appending -2, -3, ... past any slug that is already claimed this run or
// seeded under a different title. The chosen slug is claimed before
// returning.
func (r *SlugRegistry) Resolve(candidate, title string) string {
	slug := candidate
	for n := 2; ; n++ {
		bound, taken := r.seeded[slug]
		if !r.claimed[slug] && (!taken || bound == title) {
			r.claimed[slug] = true
			return slug
		}
		slug = fmt.Sprintf("%s-%d", candidate, n)
	}
}

// ShowMatch pairs an upstream production with the local show it matched.
type ShowMatch struct {
	Production models.CanonicalProduction
	Show       models.Show
}

// ShowReconciliation is the output of ReconcileShows.
type ShowReconciliation struct {
	Matches []ShowMatch
	// New holds productions with no local counterpart; their Slug fields
	// have already been made unique via the registry.
	New []models.CanonicalProduction
	// UnmatchedShows are local rows no upstream production claimed.
	UnmatchedShows []models.Show
}

// ReconcileShows matches canonical productions against existing local
// shows. When useExternalID is true (the shows table carries the column) a
// stored external id wins over slug equality; otherwise matching degrades
// to slug only. Each local show is claimed at most once, first match wins.
func ReconcileShows(prods []models.CanonicalProduction, existing []models.Show, useExternalID bool, reg *SlugRegistry) ShowReconciliation {
	byExternalID := make(map[string]int, len(existing))
	bySlug := make(map[string]int, len(existing))
	for i, show := range existing {
		if useExternalID && show.ExternalID != nil && *show.ExternalID != "" {
			if _, dup := byExternalID[*show.ExternalID]; !dup {
				byExternalID[*show.ExternalID] = i
			}
		}
		if _, dup := bySlug[show.Slug]; !dup {
			bySlug[show.Slug] = i
		}
		reg.Seed(show.Slug, show.Title)
	}

	var rec ShowReconciliation
	claimed := make(map[int]bool, len(existing))

	for _, prod := range prods {
		idx, ok := -1, false
		if useExternalID {
			if i, found := byExternalID[prod.ID]; found && !claimed[i] {
				idx, ok = i, true
			}
		}
		if !ok {
			if i, found := bySlug[prod.Slug]; found && !claimed[i] {
				idx, ok = i, true
			}
		}
		if ok {
			claimed[idx] = true
			// A matched show keeps its stored slug; the upstream-derived
			// one is only a lookup key.
			prod.Slug = existing[idx].Slug
			reg.MarkUsed(prod.Slug)
			rec.Matches = append(rec.Matches, ShowMatch{Production: prod, Show: existing[idx]})
			continue
		}
		prod.Slug = reg.Resolve(prod.Slug, prod.Title)
		rec.New = append(rec.New, prod)
	}

	for i, show := range existing {
		if !claimed[i] {
			rec.UnmatchedShows = append(rec.UnmatchedShows, show)
		}
	}
	return rec
}

// PerformanceIndex is the per-run duplicate registry for incremental event
// reconciliation. It is seeded from existing local performances and updated
// as inserts are provisionally accepted, so two near-simultaneous upstream
// events in one run cannot both slip through.
type PerformanceIndex struct {
	byEventID map[string]models.Performance
	byShow    map[string][]time.Time

	// seen tracks event ids already handled this run. Page overlap can
	// hand the walker the same event twice; a second row with the same
	// external id would violate the unique index at apply time.
	seen map[string]bool
}

// NewPerformanceIndex builds the index from existing performances.
func NewPerformanceIndex(existing []models.Performance) *PerformanceIndex {
	ix := &PerformanceIndex{
		byEventID: make(map[string]models.Performance),
		byShow:    make(map[string][]time.Time),
		seen:      make(map[string]bool),
	}
	for _, p := range existing {
		if p.ExternalEventID != nil && *p.ExternalEventID != "" {
			ix.byEventID[*p.ExternalEventID] = p
		}
		ix.byShow[p.ShowID] = append(ix.byShow[p.ShowID], p.Time)
	}
	return ix
}

// ByEventID looks up a performance by its stored external event id.
func (ix *PerformanceIndex) ByEventID(id string) (models.Performance, bool) {
	p, ok := ix.byEventID[id]
	return p, ok
}

// MarkSeen records an event id for this run and reports whether it had
// already been handled. First occurrence wins; later duplicates are skipped.
func (ix *PerformanceIndex) MarkSeen(id string) bool {
	if ix.seen[id] {
		return true
	}
	ix.seen[id] = true
	return false
}

// HasNear reports whether the show already has a performance within the
// duplicate window of t.
func (ix *PerformanceIndex) HasNear(showID string, t time.Time) bool {
	for _, existing := range ix.byShow[showID] {
		diff := existing.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff <= DuplicateWindow {
			return true
		}
	}
	return false
}

// Add records a provisionally accepted insert so later events in the same
// run see it.
func (ix *PerformanceIndex) Add(showID string, t time.Time) {
	ix.byShow[showID] = append(ix.byShow[showID], t)
}

// EventOps is the operation set computed by ReconcileEvents.
type EventOps struct {
	Inserts []models.Performance
	Updates []models.Performance
	Skipped int
	Dropped int
}

// ResolveShow finds the local show an event belongs to. The stored external
// production id is consulted first: it is exact, whereas the slug derived
// from a production title is ambiguous when two productions transliterate
// to the same slug and would attach every event to whichever show claimed
// the bare slug. The slug is the fallback for schemas without the column.
func ResolveShow(ev models.CanonicalEvent, bySlug map[string]models.Show, byExternalID map[string]models.Show) (models.Show, bool) {
	if ev.ProductionID != "" {
		if show, ok := byExternalID[ev.ProductionID]; ok {
			return show, true
		}
	}
	if ev.ProductionSlug != "" {
		if show, ok := bySlug[ev.ProductionSlug]; ok {
			return show, true
		}
	}
	return models.Show{}, false
}

// ReconcileEvents computes the incremental operation set for upstream
// events. Events whose production cannot be resolved to a local show or
// whose start time failed to parse are dropped. A known external event id
// becomes an update; otherwise the duplicate window decides between skip
// and insert.
func ReconcileEvents(events []models.CanonicalEvent, bySlug, byExternalID map[string]models.Show, ix *PerformanceIndex) EventOps {
	var ops EventOps
	for _, ev := range events {
		show, ok := ResolveShow(ev, bySlug, byExternalID)
		if !ok || ev.StartTime == nil {
			ops.Dropped++
			continue
		}
		if ix.MarkSeen(ev.ID) {
			ops.Skipped++
			continue
		}

		if existing, found := ix.ByEventID(ev.ID); found {
			if existing.Time.Equal(*ev.StartTime) && existing.ShowID == show.ID {
				ops.Skipped++
				continue
			}
			updated := existing
			updated.ShowID = show.ID
			updated.Time = ev.StartTime.UTC()
			ops.Updates = append(ops.Updates, updated)
			continue
		}

		if ix.HasNear(show.ID, *ev.StartTime) {
			ops.Skipped++
			continue
		}

		eventID := ev.ID
		ops.Inserts = append(ops.Inserts, models.Performance{
			ShowID:          show.ID,
			Time:            ev.StartTime.UTC(),
			ExternalEventID: &eventID,
		})
		ix.Add(show.ID, *ev.StartTime)
	}
	return ops
}

// ShowFromProduction builds a local show row from a canonical production.
// The upstream id is stored only when the deployed schema has the column.
func ShowFromProduction(prod models.CanonicalProduction, useExternalID bool) models.Show {
	show := models.Show{
		Slug:         prod.Slug,
		Title:        prod.Title,
		Category:     prod.Category,
		Author:       prod.Author,
		Story:        prod.Story,
		Synopsis:     prod.Synopsis,
		PosterURL:    prod.PosterURL,
		ImageURL:     prod.ImageURL,
		LandscapeURL: prod.LandscapeURL,
	}
	if useExternalID {
		id := prod.ID
		show.ExternalID = &id
	}
	return show
}

// showNeedsUpdate reports whether a matched show's stored fields differ
// from the fresh upstream values. Slug and local id are never part of the
// comparison; a matched show keeps both. A show matched by slug that has
// no stored external id gets one backfilled.
func showNeedsUpdate(show models.Show, prod models.CanonicalProduction, useExternalID bool) bool {
	if useExternalID && (show.ExternalID == nil || *show.ExternalID != prod.ID) {
		return true
	}
	if show.Title != prod.Title || show.Category != prod.Category {
		return true
	}
	return !eqPtr(show.Author, prod.Author) ||
		!eqPtr(show.Story, prod.Story) ||
		!eqPtr(show.Synopsis, prod.Synopsis) ||
		!eqPtr(show.PosterURL, prod.PosterURL) ||
		!eqPtr(show.ImageURL, prod.ImageURL) ||
		!eqPtr(show.LandscapeURL, prod.LandscapeURL)
}

func eqPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.TrimSpace(*a) == strings.TrimSpace(*b)
}
