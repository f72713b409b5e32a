package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/sourcegraph/conc/pool"

	"stagehall/models"
	"stagehall/services/entase"
)

// FullRebuildOptions tune one rebuild run.
type FullRebuildOptions struct {
	// VerifyPhotos enables the best-effort reachability check on every
	// image URL before it is stored.
	VerifyPhotos bool
}

// FullRebuild is the authoritative sync path: every upstream production is
// mirrored into the shows table, then the performances of every touched
// show are deleted and regenerated from the upstream events. Show upserts
// honor the refresh policy; performance local keys are not preserved.
//
// The run fails before any write when the upstream returns zero productions.
func (s *Service) FullRebuild(ctx context.Context, opts FullRebuildOptions) (Result, error) {
	result := newResult()
	defer result.finish()

	// Productions and events share no state before reconciliation, so the
	// two paginated walks run concurrently.
	var rawProductions, rawEvents []models.RawRecord
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		rawProductions, err = s.upstream.FetchAll(ctx, productionsPath, nil)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		rawEvents, err = s.upstream.FetchAll(ctx, eventsPath, nil)
		return err
	})
	if err := p.Wait(); err != nil {
		return result, fmt.Errorf("sync: fetch upstream: %w", err)
	}

	if len(rawProductions) == 0 {
		return result, ErrEmptyUpstream
	}

	var verifier entase.URLVerifier
	if s.newVerifier != nil {
		verifier = s.newVerifier(opts.VerifyPhotos)
	}
	productions := entase.MapProductions(ctx, rawProductions, verifier)
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
		if !s.refreshExisting || !showNeedsUpdate(m.Show, m.Production, useExternalID) {
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

	// Reload so freshly inserted shows have ids for the event resolution.
	shows, err := s.db.ListShows(ctx)
	if err != nil {
		return result, fmt.Errorf("sync: reload shows: %w", err)
	}
	bySlug := make(map[string]models.Show, len(shows))
	byExternalID := make(map[string]models.Show)
	for _, show := range shows {
		bySlug[show.Slug] = show
		if show.ExternalID != nil && *show.ExternalID != "" {
			byExternalID[*show.ExternalID] = show
		}
	}

	events := entase.MapEvents(rawEvents)
	touched := make(map[string]bool)
	seenEvents := make(map[string]bool, len(events))
	var perfs []models.Performance
	dropped := 0
	for _, ev := range events {
		show, ok := ResolveShow(ev, bySlug, byExternalID)
		if !ok || ev.StartTime == nil {
			dropped++
			continue
		}
		// Page overlap can repeat an event; a second row with the same
		// external event id would fail the unique index mid-insert.
		if seenEvents[ev.ID] {
			result.Skipped++
			continue
		}
		seenEvents[ev.ID] = true
		eventID := ev.ID
		perfs = append(perfs, models.Performance{
			ShowID:          show.ID,
			Time:            ev.StartTime.UTC(),
			ExternalEventID: &eventID,
		})
		touched[show.ID] = true
	}
	if dropped > 0 {
		log.Printf("[sync] rebuild %s: dropped %d events with unresolvable show or time", result.RunID, dropped)
	}

	// Every synced show gets its schedule regenerated, including shows
	// whose upstream events all disappeared.
	for _, show := range shows {
		touched[show.ID] = true
	}
	showIDs := make([]string, 0, len(touched))
	for id := range touched {
		showIDs = append(showIDs, id)
	}

	deleted, err := s.db.DeletePerformancesForShows(ctx, showIDs)
	if err != nil {
		return result, fmt.Errorf("sync: delete performances: %w", err)
	}
	result.Deleted = deleted

	inserted, err := s.db.InsertPerformances(ctx, perfs)
	if err != nil {
		return result, fmt.Errorf("sync: insert performances: %w", err)
	}
	result.Inserted += inserted

	log.Printf("[sync] rebuild %s: %d productions, %d performances inserted, %d deleted",
		result.RunID, result.Attempted, inserted, deleted)
	return result, nil
}
