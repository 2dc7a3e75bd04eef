package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opendrive/server/internal/models"
	"github.com/opendrive/server/pkg/utils"
	"gorm.io/gorm"
)

// UserService is the credential store.
type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// AddUser inserts a user. passwordHash must already be a bcrypt hash.
func (s *UserService) AddUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	user := models.User{
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("name = ?", user.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(&user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("adding user %q: %w", user.Name, err)
	}

	return &user, nil
}

// GetUser returns the first user whose name or email equals name. When email
// is given the match is name == name OR email == email instead.
func (s *UserService) GetUser(ctx context.Context, name, email string) (*models.User, error) {
	if email == "" {
		email = name
	}

	var user models.User
	err := s.DB.WithContext(ctx).
		Where("name = ? OR email = ?", name, email).
		Order("created_at ASC").
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IsValidUser reports whether some user matching name by name or email has
// the given password.
func (s *UserService) IsValidUser(ctx context.Context, name, password string) bool {
	_, err := s.Authenticate(ctx, name, password)
	return err == nil
}

// Authenticate returns the user that name identifies (by name or email) and
// whose stored hash verifies password.
func (s *UserService) Authenticate(ctx context.Context, name, password string) (*models.User, error) {
	if name == "" || password == "" {
		return nil, ErrUserNotFound
	}

	var candidates []models.User
	if err := s.DB.WithContext(ctx).
		Where("name = ? OR email = ?", name, name).
		Order("created_at ASC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		if utils.CheckPassword(password, candidates[i].PasswordHash) {
			return &candidates[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// DeleteUser removes a user row. Signup uses it to undo a user whose root
// folder could not be created.
func (s *UserService) DeleteUser(ctx context.Context, name string) error {
	return s.DB.WithContext(ctx).Where("name = ?", name).Delete(&models.User{}).Error
}
