package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stagehall/models"
)

var ErrShowNotFound = errors.New("show not found")

// ShowRepository handles persistence of shows.
type ShowRepository struct {
	conn *sql.DB
}

// NewShowRepository creates a show repository backed by conn.
func NewShowRepository(conn *sql.DB) *ShowRepository {
	return &ShowRepository{conn: conn}
}

const showColumns = `id, slug, title, category, author, story, synopsis,
	poster_url, image_url, landscape_url, external_id, created_at, updated_at`

// List returns every show ordered by title.
func (r *ShowRepository) List(ctx context.Context) ([]models.Show, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+showColumns+` FROM shows ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []models.Show
	for rows.Next() {
		show, err := scanShow(rows)
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	return shows, rows.Err()
}

// GetBySlug returns the show with the given slug, or ErrShowNotFound.
func (r *ShowRepository) GetBySlug(ctx context.Context, slug string) (models.Show, error) {
	row := r.conn.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows WHERE slug = ?`, slug)
	show, err := scanShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Show{}, ErrShowNotFound
	}
	return show, err
}

// HasExternalIDColumn probes the deployed schema for the external_id
// column. Older deployments predate it; the sync engine degrades to
// slug-only matching when it is absent.
func (r *ShowRepository) HasExternalIDColumn(ctx context.Context) (bool, error) {
	rows, err := r.conn.QueryContext(ctx, `PRAGMA table_info(shows)`)
	if err != nil {
		return false, fmt.Errorf("probe shows schema: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("probe shows schema: %w", err)
		}
		if name == "external_id" {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Insert writes a new show, assigning an id when none is set. A slug
// conflict is not an error: the insert is ignored and inserted reports
// false.
func (r *ShowRepository) Insert(ctx context.Context, show *models.Show) (inserted bool, err error) {
	if show.ID == "" {
		show.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	show.CreatedAt = now
	show.UpdatedAt = now

	res, err := r.conn.ExecContext(ctx, `
		INSERT INTO shows (id, slug, title, category, author, story, synopsis,
			poster_url, image_url, landscape_url, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		show.ID, show.Slug, show.Title, show.Category, show.Author, show.Story,
		show.Synopsis, show.PosterURL, show.ImageURL, show.LandscapeURL,
		show.ExternalID, show.CreatedAt, show.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert show: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert show: %w", err)
	}
	return n > 0, nil
}

// Update persists every mutable field of an existing show.
func (r *ShowRepository) Update(ctx context.Context, show *models.Show) error {
	show.UpdatedAt = time.Now().UTC()
	res, err := r.conn.ExecContext(ctx, `
		UPDATE shows
		SET title = ?, category = ?, author = ?, story = ?, synopsis = ?,
			poster_url = ?, image_url = ?, landscape_url = ?, external_id = ?,
			updated_at = ?
		WHERE id = ?`,
		show.Title, show.Category, show.Author, show.Story, show.Synopsis,
		show.PosterURL, show.ImageURL, show.LandscapeURL, show.ExternalID,
		show.UpdatedAt, show.ID)
	if err != nil {
		return fmt.Errorf("update show: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update show: %w", err)
	}
	if n == 0 {
		return ErrShowNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShow(row rowScanner) (models.Show, error) {
	var show models.Show
	err := row.Scan(&show.ID, &show.Slug, &show.Title, &show.Category,
		&show.Author, &show.Story, &show.Synopsis, &show.PosterURL,
		&show.ImageURL, &show.LandscapeURL, &show.ExternalID,
		&show.CreatedAt, &show.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Show{}, err
		}
		return models.Show{}, fmt.Errorf("scan show: %w", err)
	}
	return show, nil
}
