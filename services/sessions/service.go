// Package sessions manages bearer-token sessions for the admin back-office.
// Sessions live in memory and are persisted to a JSON file so restarts do
// not log every administrator out.
package sessions

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stagehall/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid token")
)

const (
	// DefaultSessionDuration is the lifetime of a session.
	DefaultSessionDuration = 7 * 24 * time.Hour

	// TokenLength is the number of random bytes in a session token.
	TokenLength = 32
)

// Service manages session tokens for authenticated admin users.
type Service struct {
	mu       sync.RWMutex
	path     string
	sessions map[string]models.Session
	duration time.Duration
}

// NewService creates a sessions service. storageDir is where sessions.json
// lives; when empty, sessions are memory-only.
func NewService(storageDir string, duration time.Duration) (*Service, error) {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	svc := &Service{
		sessions: make(map[string]models.Session),
		duration: duration,
	}

	if strings.TrimSpace(storageDir) != "" {
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
		svc.path = filepath.Join(storageDir, "sessions.json")
		if err := svc.load(); err != nil {
			return nil, err
		}
	}

	go svc.cleanupLoop()

	return svc, nil
}

// Create generates a new session for the given user.
func (s *Service) Create(userID string, isAdmin bool, userAgent, ipAddress string) (models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return models.Session{}, err
	}

	now := time.Now().UTC()
	session := models.Session{
		Token:     token,
		UserID:    userID,
		IsAdmin:   isAdmin,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: now.Add(s.duration),
		CreatedAt: now,
	}

	s.mu.Lock()
	s.sessions[token] = session
	if err := s.saveLocked(); err != nil {
		delete(s.sessions, token)
		s.mu.Unlock()
		return models.Session{}, err
	}
	s.mu.Unlock()

	return session, nil
}

// Validate checks a token and returns the associated session.
func (s *Service) Validate(token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrInvalidToken
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	if session.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, token)
		_ = s.saveLocked()
		s.mu.Unlock()
		return models.Session{}, ErrSessionExpired
	}
	return session, nil
}

// Revoke invalidates a session by its token.
func (s *Service) Revoke(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, token)
	return s.saveLocked()
}

// Cleanup removes expired sessions and returns how many were dropped.
func (s *Service) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now()
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			count++
		}
	}
	if count > 0 {
		_ = s.saveLocked()
	}
	return count
}

func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.Cleanup()
	}
}

// load reads persisted sessions, dropping any that expired while the
// server was down.
func (s *Service) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read sessions: %w", err)
	}

	var stored map[string]models.Session
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse sessions: %w", err)
	}

	now := time.Now()
	for token, session := range stored {
		if now.Before(session.ExpiresAt) {
			s.sessions[token] = session
		}
	}
	return nil
}

// saveLocked persists sessions to disk. Caller holds the write lock.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	return nil
}

// generateToken creates a cryptographically secure random token.
func generateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
