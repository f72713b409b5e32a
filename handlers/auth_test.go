package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"stagehall/internal/database"
	"stagehall/models"
	"stagehall/services/accounts"
	"stagehall/services/sessions"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *sessions.Service) {
	t.Helper()

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := models.User{Email: "admin@localhost", PasswordHash: string(hash), IsAdmin: true}
	if err := db.Users.Create(context.Background(), &user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	sessionsSvc, err := sessions.NewService("", 0)
	if err != nil {
		t.Fatalf("failed to create sessions service: %v", err)
	}
	return NewAuthHandler(accounts.NewService(db.Users), sessionsSvc), sessionsSvc
}

func TestLogin_Success(t *testing.T) {
	h, sessionsSvc := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"admin@localhost","password":"correct horse"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Token string `json:"token"`
		User  struct {
			IsAdmin bool `json:"isAdmin"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.Token == "" {
		t.Fatal("expected a session token")
	}
	if !body.User.IsAdmin {
		t.Fatal("expected admin flag in response")
	}

	session, err := sessionsSvc.Validate(body.Token)
	if err != nil {
		t.Fatalf("returned token must validate: %v", err)
	}
	if !session.IsAdmin {
		t.Fatal("session must carry the admin flag")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h, _ := setupAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"admin@localhost","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogin_BadRequests(t *testing.T) {
	h, _ := setupAuthHandler(t)

	for name, body := range map[string]string{
		"malformed json":   `{not json`,
		"missing email":    `{"password":"x"}`,
		"missing password": `{"email":"admin@localhost"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Login(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestLogout(t *testing.T) {
	h, sessionsSvc := setupAuthHandler(t)

	session, err := sessionsSvc.Create("user1", true, "", "")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := sessionsSvc.Validate(session.Token); err == nil {
		t.Fatal("token must be revoked after logout")
	}

	// Logging out again is a 404, the session is gone.
	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLogout_NoToken(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
