package profile

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// userRecord mirrors the registration service's user table. Only the fields
// the matcher needs are mapped.
type userRecord struct {
	Email       string `gorm:"column:email;primaryKey"`
	Faculty     string `gorm:"column:faculty"`
	YearOfStudy string `gorm:"column:year_of_study"`
}

func (userRecord) TableName() string { return "users" }

// GormStore reads profiles from the shared user database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Attributes(ctx context.Context, userID string) (Attributes, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).Where("email = ?", userID).First(&rec).Error
	switch {
	case err == nil:
		return Attributes{Faculty: rec.Faculty, YearOfStudy: rec.YearOfStudy}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Attributes{}, ErrNotFound
	default:
		return Attributes{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
}
