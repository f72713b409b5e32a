package syncer

import (
	"context"
	"fmt"
	"log"

	"stagehall/models"
	"stagehall/services/entase"
)

// SyncProductions is the incremental production flow: fetch every upstream
// production, reconcile against existing shows by external id or slug, and
// upsert only the new and changed set. Running it twice against an
// unchanged upstream writes nothing the second time.
func (s *Service) SyncProductions(ctx context.Context) (Result, error) {
	result := newResult()
	defer result.finish()

	raws, err := s.upstream.FetchAll(ctx, productionsPath, nil)
	if err != nil {
		return result, fmt.Errorf("sync: fetch productions: %w", err)
	}
	productions := entase.MapProductions(ctx, raws, nil)
	result.Attempted = len(productions)

	existing, err := s.db.ListShows(ctx)
	if err != nil {
		return result, fmt.Errorf("sync: list shows: %w", err)
	}
	useExternalID, err := s.db.HasShowExternalID(ctx)
	if err != nil {
		return result, fmt.Errorf("sync: probe external id column: %w", err)
	}

	rec := ReconcileShows(productions, existing, useExternalID, NewSlugRegistry())

	for _, prod := range rec.New {
		show := ShowFromProduction(prod, useExternalID)
		inserted, err := s.db.InsertShow(ctx, &show)
		if err != nil {
			return result, fmt.Errorf("sync: insert show %q: %w", show.Slug, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}
	for _, m := range rec.Matches {
		if !showNeedsUpdate(m.Show, m.Production, useExternalID) {
			result.Skipped++
			continue
		}
		show := ShowFromProduction(m.Production, useExternalID)
		show.ID = m.Show.ID
		show.Slug = m.Show.Slug
		if err := s.db.UpdateShow(ctx, &show); err != nil {
			return result, fmt.Errorf("sync: update show %q: %w", show.Slug, err)
		}
		result.Updated++
	}

	log.Printf("[sync] productions %s: attempted=%d inserted=%d updated=%d skipped=%d",
		result.RunID, result.Attempted, result.Inserted, result.Updated, result.Skipped)
	return result, nil
}

// SyncEvents is the incremental event flow: fetch every upstream event,
// match known external event ids to existing performances (updates), run
// new events through the duplicate window, and apply inserts and updates.
// No performance is ever deleted on this path.
func (s *Service) SyncEvents(ctx context.Context) (Result, error) {
	result := newResult()
	defer result.finish()

	raws, err := s.upstream.FetchAll(ctx, eventsPath, nil)
	if err != nil {
		return result, fmt.Errorf("sync: fetch events: %w", err)
	}
	events := entase.MapEvents(raws)
	result.Attempted = len(events)

	shows, err := s.db.ListShows(ctx)
	if err != nil {
		return result, fmt.Errorf("sync: list shows: %w", err)
	}
	perfs, err := s.db.ListPerformances(ctx)
	if err != nil {
		return result, fmt.Errorf("sync: list performances: %w", err)
	}

	bySlug := make(map[string]models.Show, len(shows))
	byExternalID := make(map[string]models.Show)
	for _, show := range shows {
		bySlug[show.Slug] = show
		if show.ExternalID != nil && *show.ExternalID != "" {
			byExternalID[*show.ExternalID] = show
		}
	}

	ops := ReconcileEvents(events, bySlug, byExternalID, NewPerformanceIndex(perfs))
	result.Skipped = ops.Skipped + ops.Dropped

	if len(ops.Inserts) > 0 {
		inserted, err := s.db.InsertPerformances(ctx, ops.Inserts)
		if err != nil {
			return result, fmt.Errorf("sync: insert performances: %w", err)
		}
		result.Inserted = inserted
	}
	for _, perf := range ops.Updates {
		if err := s.db.UpdatePerformance(ctx, perf); err != nil {
			return result, fmt.Errorf("sync: update performance %s: %w", perf.ID, err)
		}
		result.Updated++
	}

	log.Printf("[sync] events %s: attempted=%d inserted=%d updated=%d skipped=%d",
		result.RunID, result.Attempted, result.Inserted, result.Updated, result.Skipped)
	return result, nil
}
