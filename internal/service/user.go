package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/hash"
	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/repo"
)

// UserUpdate carries the optional profile fields a caller may change. Role
// is only honored on the admin path; the profile handlers never set it.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
}

type UserService struct {
	Repo *repo.GormRepo
}

func (s *UserService) Profile(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.Repo.GetUser(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) (int64, []models.User, error) {
	return s.Repo.ListUsers(ctx, limit, offset)
}

func (s *UserService) Update(ctx context.Context, id uint, in UserUpdate) (*models.User, error) {
	patch := repo.UserPatch{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("name must not be blank: %w", ErrValidation)
		}
		patch.Name = &name
	}
	if in.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*in.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("valid email required: %w", ErrValidation)
		}
		if other, err := s.Repo.UserByEmail(ctx, email); err == nil && other.ID != id {
			return nil, fmt.Errorf("email already registered: %w", ErrConflict)
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		patch.Email = &email
	}
	if in.Password != nil {
		if len(*in.Password) < 6 {
			return nil, fmt.Errorf("password must be at least 6 characters: %w", ErrValidation)
		}
		pwHash, err := hash.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		hashed := string(pwHash)
		patch.PasswordHash = &hashed
	}
	if in.Role != nil {
		role := *in.Role
		if role != "user" && role != "admin" {
			return nil, fmt.Errorf("role must be user or admin: %w", ErrValidation)
		}
		patch.Role = &role
	}

	if patch.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", ErrValidation)
	}

	user, err := s.Repo.UpdateUser(ctx, id, patch)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id uint) error {
	if _, err := s.Repo.GetUser(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d: %w", id, ErrNotFound)
		}
		return err
	}
	return s.Repo.DeleteUser(ctx, id)
}
