package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/strumly/practice-engine/internal/apperr"
	"github.com/strumly/practice-engine/internal/models"
)

// UserRepository handles user database operations and serves as the
// timezone provider for the engagement rules.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("user", fmt.Sprint(id))
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetTimezone returns a user's configured IANA timezone name. An empty
// string means the caller should fall back to the site default; validity is
// the caller's concern (time.LoadLocation).
func (r *UserRepository) GetTimezone(userID uint) (string, error) {
	user, err := r.GetByID(userID)
	if err != nil {
		return "", err
	}
	return user.Timezone, nil
}

// ListIDs returns every user ID, ascending. Used by the nightly badge sweep.
func (r *UserRepository) ListIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}
