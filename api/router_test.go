package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"stagehall/handlers"
	"stagehall/internal/database"
	"stagehall/services/accounts"
	"stagehall/services/sessions"
	"stagehall/services/syncer"
)

type fakeSyncer struct {
	rebuilds    int
	productions int
	events      int
	err         error
}

func (f *fakeSyncer) FullRebuild(ctx context.Context, opts syncer.FullRebuildOptions) (syncer.Result, error) {
	f.rebuilds++
	return syncer.Result{Inserted: 1}, f.err
}

func (f *fakeSyncer) SyncProductions(ctx context.Context) (syncer.Result, error) {
	f.productions++
	return syncer.Result{}, f.err
}

func (f *fakeSyncer) SyncEvents(ctx context.Context) (syncer.Result, error) {
	f.events++
	return syncer.Result{}, f.err
}

type testEnv struct {
	router   http.Handler
	sessions *sessions.Service
	syncer   *fakeSyncer
}

func setupTestRouter(t *testing.T, cronSecret string, isProduction bool) *testEnv {
	t.Helper()

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessionsSvc, err := sessions.NewService("", 0)
	if err != nil {
		t.Fatalf("failed to create sessions service: %v", err)
	}

	fake := &fakeSyncer{}
	router := NewRouter(RouterConfig{
		Sessions:     sessionsSvc,
		Auth:         handlers.NewAuthHandler(accounts.NewService(db.Users), sessionsSvc),
		Shows:        handlers.NewShowsHandler(db.Shows, db.Performances),
		Sync:         handlers.NewSyncHandler(fake),
		CronSecret:   cronSecret,
		IsProduction: isProduction,
	})

	return &testEnv{router: router, sessions: sessionsSvc, syncer: fake}
}

func (env *testEnv) do(method, path string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter(t, "", false)

	rec := env.do(http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRebuild_RequiresAuthentication(t *testing.T) {
	env := setupTestRouter(t, "", false)

	rec := env.do(http.MethodPost, "/api/admin/sync/rebuild", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/admin/sync/rebuild", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer made-up-token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bogus token, got %d", rec.Code)
	}
	if env.syncer.rebuilds != 0 {
		t.Fatal("unauthenticated request must not reach the sync service")
	}
}

func TestRebuild_RequiresAdmin(t *testing.T) {
	env := setupTestRouter(t, "", false)

	session, err := env.sessions.Create("user1", false, "", "")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	rec := env.do(http.MethodPost, "/api/admin/sync/rebuild", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+session.Token)
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-admin session, got %d", rec.Code)
	}
	if env.syncer.rebuilds != 0 {
		t.Fatal("non-admin request must not reach the sync service")
	}
}

func TestRebuild_AdminSessionRunsSync(t *testing.T) {
	env := setupTestRouter(t, "", false)

	session, err := env.sessions.Create("admin1", true, "", "")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	rec := env.do(http.MethodPost, "/api/admin/sync/rebuild", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+session.Token)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.syncer.rebuilds != 1 {
		t.Fatalf("expected 1 rebuild, got %d", env.syncer.rebuilds)
	}
}

func TestRebuild_EmptyUpstreamMapsToConflict(t *testing.T) {
	env := setupTestRouter(t, "", false)
	env.syncer.err = syncer.ErrEmptyUpstream

	session, err := env.sessions.Create("admin1", true, "", "")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	rec := env.do(http.MethodPost, "/api/admin/sync/rebuild", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+session.Token)
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body["status"] != "failed" {
		t.Fatalf("expected failed status, got %v", body["status"])
	}
}

func TestCronEndpoints_SecretRequiredInProduction(t *testing.T) {
	env := setupTestRouter(t, "topsecret", true)

	rec := env.do(http.MethodPost, "/api/cron/sync/productions", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without secret, got %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/cron/sync/productions", func(r *http.Request) {
		r.Header.Set("X-Cron-Secret", "wrong")
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong secret, got %d", rec.Code)
	}
	if env.syncer.productions != 0 {
		t.Fatal("rejected request must not reach the sync service")
	}

	rec = env.do(http.MethodPost, "/api/cron/sync/events", func(r *http.Request) {
		r.Header.Set("X-Cron-Secret", "topsecret")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with the right secret, got %d", rec.Code)
	}
	if env.syncer.events != 1 {
		t.Fatalf("expected 1 event sync, got %d", env.syncer.events)
	}
}

func TestCronEndpoints_EmptySecretAlwaysRejectsInProduction(t *testing.T) {
	env := setupTestRouter(t, "", true)

	rec := env.do(http.MethodPost, "/api/cron/sync/productions", func(r *http.Request) {
		r.Header.Set("X-Cron-Secret", "")
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("an unset secret must reject everything, got %d", rec.Code)
	}
}

func TestCronEndpoints_WaivedOutsideProduction(t *testing.T) {
	env := setupTestRouter(t, "topsecret", false)

	rec := env.do(http.MethodPost, "/api/cron/sync/productions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected dev request to pass without secret, got %d", rec.Code)
	}
	if env.syncer.productions != 1 {
		t.Fatalf("expected 1 production sync, got %d", env.syncer.productions)
	}
}
