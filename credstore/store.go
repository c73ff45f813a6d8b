// Package credstore implements the engine's CredentialStore on top of the
// KeuzeKompas MySQL account table via GORM.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/keuzekompas/kompasauth"
)

// User is the account row. IDs are UUID strings assigned on create; emails
// are stored normalized lowercase and unique.
type User struct {
	ID               string `gorm:"primaryKey;size:36"`
	Email            string `gorm:"uniqueIndex;size:255;not null"`
	Name             string `gorm:"size:255"`
	PasswordHash     string `gorm:"size:255;not null"`
	TwoFactorEnabled bool   `gorm:"not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Store is a GORM-backed credential store.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL with the given DSN, migrates the account table,
// and returns a [Store].
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing GORM handle and migrates the account table.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return &Store{db: db}, nil
}

// FindByEmail looks up an account by its normalized address.
func (s *Store) FindByEmail(ctx context.Context, email string) (kompasauth.UserRecord, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return record(user, err)
}

// FindByID looks up an account by its id.
func (s *Store) FindByID(ctx context.Context, id string) (kompasauth.UserRecord, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	return record(user, err)
}

// Create inserts a new account. Intended for seeding and admin tooling; the
// auth engine itself never writes accounts.
func (s *Store) Create(ctx context.Context, user User) (kompasauth.UserRecord, error) {
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return kompasauth.UserRecord{}, fmt.Errorf("%w: %v", kompasauth.ErrStoreUnavailable, err)
	}
	return record(user, nil)
}

func record(user User, err error) (kompasauth.UserRecord, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return kompasauth.UserRecord{}, kompasauth.ErrUserNotFound
		}
		return kompasauth.UserRecord{}, fmt.Errorf("%w: %v", kompasauth.ErrStoreUnavailable, err)
	}
	return kompasauth.UserRecord{
		ID:               user.ID,
		Email:            user.Email,
		Name:             user.Name,
		PasswordHash:     user.PasswordHash,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}, nil
}
