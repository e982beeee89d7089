package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog/log"
)

// UserService backs the HTTP registration and lookup surface.
type UserService struct {
	directory port.UserDirectory
}

func NewUserService(directory port.UserDirectory) *UserService {
	return &UserService{directory: directory}
}

func (s *UserService) Register(ctx context.Context, rollno, name, email string) (domain.User, error) {
	id, err := domain.ParseUserID(rollno)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.NewUser(id, strings.TrimSpace(name), strings.TrimSpace(email))
	created, err := s.directory.Create(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	log.Info().Str("rollno", id.String()).Msg("User created")
	return created, nil
}

func (s *UserService) Login(ctx context.Context, rollno string) (domain.User, error) {
	id, err := domain.ParseUserID(rollno)
	if err != nil {
		return domain.User{}, err
	}
	return s.directory.FindByID(ctx, id)
}

// Lookup finds a user by roll number. Malformed roll numbers are reported
// as not found.
func (s *UserService) Lookup(ctx context.Context, rollno string) (domain.User, error) {
	id, err := domain.ParseUserID(rollno)
	if err != nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.directory.FindByID(ctx, id)
}

// Import creates users that do not exist yet and returns how many were
// created.
func (s *UserService) Import(ctx context.Context, users []domain.User) (int, error) {
	created := 0
	for _, u := range users {
		_, err := s.Register(ctx, u.ID.String(), u.Name, u.Email)
		switch {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrDuplicateUser):
			log.Debug().Str("rollno", u.ID.String()).Msg("Seed user exists, skipping")
		default:
			return created, err
		}
	}
	return created, nil
}
