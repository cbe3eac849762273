package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/notifystream/internal/database"
	"github.com/charlesng35/notifystream/internal/models"
	apperrors "github.com/charlesng35/notifystream/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUsernameTaken reports a username already held by a different user id.
	ErrUsernameTaken = apperrors.New("USERNAME_TAKEN", "Username already in use", http.StatusConflict)
)

// UserService maintains the local user projection that notifications reference.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get: %w", err)
	}
	return &user, nil
}

// Ensure returns the user with id, creating it when missing. An empty username
// defaults to the id. Existing users are returned unchanged.
func (s *UserService) Ensure(ctx context.Context, id, username string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	user, err := s.Get(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = id
	}

	created := &models.User{
		BaseModel: models.BaseModel{ID: id},
		Username:  username,
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(created).Error; err != nil {
		if database.IsUniqueViolation(err) {
			// A concurrent Ensure may have won the insert for the same id.
			if existing, getErr := s.Get(ctx, id); getErr == nil {
				return existing, nil
			}
			return nil, ErrUsernameTaken.WithInternal(err)
		}
		return nil, fmt.Errorf("user service: create: %w", err)
	}
	return created, nil
}
