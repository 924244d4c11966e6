package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tshop/backend/internal/hash"
	"github.com/tshop/backend/internal/models"
	"github.com/tshop/backend/internal/repo"
	"github.com/tshop/backend/internal/tokens"
)

const accessTokenTTL = 24 * time.Hour

type AuthService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	switch {
	case name == "":
		return nil, fmt.Errorf("name required: %w", ErrValidation)
	case email == "" || !strings.Contains(email, "@"):
		return nil, fmt.Errorf("valid email required: %w", ErrValidation)
	case len(password) < 6:
		return nil, fmt.Errorf("password must be at least 6 characters: %w", ErrValidation)
	}

	if _, err := s.Repo.UserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: string(pwHash), Role: "user"}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("email and password required: %w", ErrValidation)
	}

	user, err := s.Repo.UserByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("invalid credentials: %w", ErrNotFound)
	}
	if err != nil {
		return "", nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return "", nil, fmt.Errorf("invalid credentials: %w", ErrNotFound)
	}

	exp := time.Now().Add(accessTokenTTL).UTC()
	token, err := tokens.NewAccessToken(user.ID, user.Role, user.Name, user.Email, exp, s.JWTSecret)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
