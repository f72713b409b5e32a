package database

import (
	"context"

	"stagehall/models"
)

// The methods below satisfy syncer.Datastore by delegating to the
// repositories, keeping the sync engine decoupled from SQL.

func (db *DB) ListShows(ctx context.Context) ([]models.Show, error) {
	return db.Shows.List(ctx)
}

func (db *DB) HasShowExternalID(ctx context.Context) (bool, error) {
	return db.Shows.HasExternalIDColumn(ctx)
}

func (db *DB) InsertShow(ctx context.Context, show *models.Show) (bool, error) {
	return db.Shows.Insert(ctx, show)
}

func (db *DB) UpdateShow(ctx context.Context, show *models.Show) error {
	return db.Shows.Update(ctx, show)
}

func (db *DB) ListPerformances(ctx context.Context) ([]models.Performance, error) {
	return db.Performances.List(ctx)
}

func (db *DB) InsertPerformances(ctx context.Context, perfs []models.Performance) (int, error) {
	return db.Performances.BulkInsert(ctx, perfs)
}

func (db *DB) UpdatePerformance(ctx context.Context, perf models.Performance) error {
	return db.Performances.Update(ctx, perf)
}

func (db *DB) DeletePerformancesForShows(ctx context.Context, showIDs []string) (int, error) {
	return db.Performances.DeleteByShowIDs(ctx, showIDs)
}
