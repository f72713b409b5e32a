// Package accounts manages the administrative user accounts behind the
// back-office: credential checks and first-run bootstrap.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/sethvargo/go-password/password"
	"golang.org/x/crypto/bcrypt"

	"stagehall/internal/database"
	"stagehall/models"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const bootstrapEmail = "admin@localhost"

// Service authenticates admin users against the local database.
type Service struct {
	users *database.UserRepository
}

// NewService creates an accounts service.
func NewService(users *database.UserRepository) *Service {
	return &Service{users: users}
}

// Authenticate verifies an email/password pair and returns the user.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, pass string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, database.ErrUserNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(pass)) != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureBootstrapAdmin creates an initial administrator when the users
// table is empty. The generated password is logged exactly once; it should
// be changed after first login.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	pass, err := password.Generate(20, 4, 0, false, false)
	if err != nil {
		return fmt.Errorf("generate bootstrap password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	name := "Administrator"
	user := models.User{
		Email:        bootstrapEmail,
		Name:         &name,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return err
	}

	log.Printf("[accounts] bootstrap admin created: email=%s password=%s (change it after first login)", bootstrapEmail, pass)
	return nil
}
