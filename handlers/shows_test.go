package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"stagehall/internal/database"
	"stagehall/models"
)

func setupShowsHandler(t *testing.T) (*ShowsHandler, *database.DB) {
	t.Helper()

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewShowsHandler(db.Shows, db.Performances), db
}

func showsTestRouter(h *ShowsHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/shows", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/shows/{slug}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/shows/{slug}/performances", h.ListPerformances).Methods(http.MethodGet)
	r.HandleFunc("/api/performances/upcoming", h.Upcoming).Methods(http.MethodGet)
	return r
}

func TestShows_ListAndGet(t *testing.T) {
	h, db := setupShowsHandler(t)
	router := showsTestRouter(h)

	show := models.Show{Slug: "khamlet", Title: "Хамлет", Category: "drama"}
	if _, err := db.Shows.Insert(context.Background(), &show); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shows", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listBody struct {
		Shows []models.Show `json:"shows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("bad list body: %v", err)
	}
	if len(listBody.Shows) != 1 || listBody.Shows[0].Slug != "khamlet" {
		t.Fatalf("unexpected list body: %+v", listBody)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shows/khamlet", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var got models.Show
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad show body: %v", err)
	}
	if got.Title != "Хамлет" {
		t.Fatalf("unexpected show: %+v", got)
	}
}

func TestShows_GetNotFound(t *testing.T) {
	h, _ := setupShowsHandler(t)
	router := showsTestRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shows/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestShows_ListPerformances(t *testing.T) {
	h, db := setupShowsHandler(t)
	router := showsTestRouter(h)
	ctx := context.Background()

	show := models.Show{Slug: "khamlet", Title: "Хамлет"}
	if _, err := db.Shows.Insert(ctx, &show); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	_, err := db.Performances.BulkInsert(ctx, []models.Performance{
		{ShowID: show.ID, Time: time.Date(2025, 1, 1, 19, 0, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("bulk insert failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/shows/khamlet/performances", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Show         string               `json:"show"`
		Performances []models.Performance `json:"performances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Show != "khamlet" || len(body.Performances) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestShows_Upcoming(t *testing.T) {
	h, db := setupShowsHandler(t)
	router := showsTestRouter(h)
	ctx := context.Background()

	show := models.Show{Slug: "khamlet", Title: "Хамлет"}
	if _, err := db.Shows.Insert(ctx, &show); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	now := time.Now().UTC()
	_, err := db.Performances.BulkInsert(ctx, []models.Performance{
		{ShowID: show.ID, Time: now.Add(-24 * time.Hour)},
		{ShowID: show.ID, Time: now.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("bulk insert failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/performances/upcoming", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Performances []models.Performance `json:"performances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(body.Performances) != 1 {
		t.Fatalf("expected only the future performance, got %d", len(body.Performances))
	}
}
