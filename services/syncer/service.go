package syncer

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"stagehall/models"
	"stagehall/services/entase"
)

// Upstream endpoints. Relative to the configured Entase base URL.
const (
	productionsPath = "productions"
	eventsPath      = "events"
)

// ErrEmptyUpstream aborts a full rebuild when the API returns zero
// productions. Rebuilding against an empty upstream would wipe every local
// performance, so it is treated as a failure, not a valid state.
var ErrEmptyUpstream = errors.New("sync: upstream returned no productions")

// Upstream is the slice of the Entase client the syncer needs: walk every
// page of a list endpoint.
type Upstream interface {
	FetchAll(ctx context.Context, path string, params url.Values) ([]models.RawRecord, error)
}

// Datastore is the narrow view of the local database the syncer writes
// through. Implemented by *database.DB; tests use in-memory fakes.
type Datastore interface {
	ListShows(ctx context.Context) ([]models.Show, error)
	HasShowExternalID(ctx context.Context) (bool, error)
	// InsertShow inserts a show, ignoring a slug conflict; the bool reports
	// whether a row was actually written.
	InsertShow(ctx context.Context, show *models.Show) (bool, error)
	UpdateShow(ctx context.Context, show *models.Show) error

	ListPerformances(ctx context.Context) ([]models.Performance, error)
	InsertPerformances(ctx context.Context, perfs []models.Performance) (int, error)
	UpdatePerformance(ctx context.Context, perf models.Performance) error
	DeletePerformancesForShows(ctx context.Context, showIDs []string) (int, error)
}

// Result reports aggregate counts for one sync run. There is no partial
// success reporting beyond these counts; any fatal condition fails the run
// with a single error instead.
type Result struct {
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Attempted int       `json:"attempted"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Deleted   int       `json:"deleted"`
}

// Service drives the sync flows. Safe to re-run: every flow is idempotent
// against an unchanged upstream.
type Service struct {
	upstream Upstream
	db       Datastore

	// refreshExisting is the full-rebuild conflict policy: update matched
	// shows with fresh upstream fields instead of leaving them untouched.
	refreshExisting bool

	// newVerifier builds the asset checker for a rebuild run, keyed on the
	// caller's photo-verification flag.
	newVerifier func(enabled bool) entase.URLVerifier
}

// NewService creates a sync service.
func NewService(upstream Upstream, db Datastore, refreshExisting bool, newVerifier func(enabled bool) entase.URLVerifier) *Service {
	return &Service{
		upstream:        upstream,
		db:              db,
		refreshExisting: refreshExisting,
		newVerifier:     newVerifier,
	}
}

func newResult() Result {
	return Result{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
}

func (r *Result) finish() {
	r.Duration = time.Since(r.StartedAt).Round(time.Millisecond).String()
}
