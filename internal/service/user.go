package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/metrics"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/repository"
)

// Field messages for account validation.
const (
	MsgRequired     = "is required"
	MsgInvalidEmail = "invalid email"
	MsgEmailTaken   = "is already taken"
)

var emailRegex = regexp.MustCompile(`^([\w.-]+@([\w-]+\.)+[\w-]{2,4})$`)

// UserService is the credential store: registration, lookup and password checks.
type UserService struct {
	repo    UserRepository
	metrics metrics.Recorder
	now     func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(repo UserRepository, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		repo:    repo,
		metrics: recorder,
		now:     time.Now,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates the input, hashes the password and stores a new user.
// Invalid input yields a *model.ValidationError keyed by "email" and "password".
func (s *UserService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)

	ve := model.NewValidationError()
	switch {
	case email == "":
		ve.Add("email", MsgRequired)
	case !emailRegex.MatchString(email):
		ve.Add("email", MsgInvalidEmail)
	}
	if password == "" {
		ve.Add("password", MsgRequired)
	}

	if !ve.Has("email") {
		existing, err := s.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			ve.Add("email", MsgEmailTaken)
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	return s.create(ctx, email, password)
}

func (s *UserService) create(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           generateID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, repository.ErrEmailExists) {
			ve := model.NewValidationError()
			ve.Add("email", MsgEmailTaken)
			return nil, ve
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.IncUserRegistered()
	return user, nil
}

// FindByID returns the user or nil when absent.
func (s *UserService) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByEmail returns the user or nil when absent.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Authenticate returns the user when password matches, nil otherwise.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.metrics.IncLogin(metrics.LoginFailure)
		return nil, nil
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.metrics.IncLogin(metrics.LoginFailure)
		return nil, nil
	}

	s.metrics.IncLogin(metrics.LoginSuccess)
	return user, nil
}

// FindOrCreateOAuthUser returns the account for email, creating one with a
// random placeholder password when none exists.
func (s *UserService) FindOrCreateOAuthUser(ctx context.Context, email string) (*model.User, error) {
	email = NormalizeEmail(email)
	if !emailRegex.MatchString(email) {
		ve := model.NewValidationError()
		ve.Add("email", MsgInvalidEmail)
		return nil, ve
	}

	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	placeholder, err := auth.RandomPassword()
	if err != nil {
		return nil, err
	}

	user, err := s.create(ctx, email, placeholder)
	if err != nil {
		// Created concurrently by another callback
		if ve, ok := model.AsValidationError(err); ok && ve.Has("email") {
			return s.FindByEmail(ctx, email)
		}
		return nil, err
	}
	return user, nil
}
