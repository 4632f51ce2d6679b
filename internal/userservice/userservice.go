// Package userservice is a small user registration service. Its
// collaborators are interfaces so tests can substitute doubles from
// package userservicetest.
package userservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidEmail   = errors.New("invalid email")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")
)

// User is a registered user.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// CreateUserRequest carries the fields of a new user.
type CreateUserRequest struct {
	Email string
	Name  string
}

// Repository persists users.
type Repository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user User) (User, error)
	// FindByID reports found=false for an unknown ID.
	FindByID(ctx context.Context, id uuid.UUID) (user User, found bool, err error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindAll(ctx context.Context) ([]User, error)
}

// EmailService sends user notifications.
type EmailService interface {
	SendWelcome(ctx context.Context, user User) error
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator replaces the UUIDv7 generator for new users.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) { s.newID = fn }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service registers, looks up and deletes users.
type Service struct {
	repo   Repository
	mailer EmailService
	newID  func() uuid.UUID
	logger *slog.Logger
}

// New creates a Service over its collaborators.
func New(repo Repository, mailer EmailService, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		mailer: mailer,
		newID:  func() uuid.UUID { return uuid.Must(uuid.NewV7()) },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var emailRE = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail reports whether email has a local part, an @ and a dotted
// domain.
func IsValidEmail(email string) bool {
	return emailRE.MatchString(email)
}

// CreateUser checks the email is free, saves the user and sends a welcome
// email. A failed welcome email is logged, not returned.
func (s *Service) CreateUser(ctx context.Context, req *CreateUserRequest) (User, error) {
	if req == nil {
		return User{}, fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if !IsValidEmail(req.Email) {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidEmail, req.Email)
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return User{}, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return User{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, req.Email)
	}

	saved, err := s.repo.Save(ctx, User{ID: s.newID(), Email: req.Email, Name: req.Name})
	if err != nil {
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.mailer.SendWelcome(ctx, saved); err != nil {
		s.logger.Warn("welcome email failed", "user", saved.ID, "error", err)
	}
	s.logger.Info("user created", "user", saved.ID)
	return saved, nil
}

// FindByID returns the user with id. found is false when there is none.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (User, bool, error) {
	user, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, false, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return user, found, nil
}

// MustFindByID is FindByID with a missing user reported as
// ErrUserNotFound.
func (s *Service) MustFindByID(ctx context.Context, id uuid.UUID) (User, error) {
	user, found, err := s.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return user, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes the user with id.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be nil", ErrInvalidRequest)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}
