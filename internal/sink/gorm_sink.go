package sink

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type messageRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	SenderID   string    `gorm:"column:sender_id;not null"`
	ReceiverID string    `gorm:"column:receiver_id;not null"`
	Message    string    `gorm:"column:message;not null"`
	Status     string    `gorm:"column:status;default:sent"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (messageRecord) TableName() string { return "messages" }

// GormSink persists messages to SQLite.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(dsn string) (*GormSink, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}
	if err := db.AutoMigrate(&messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate message store: %w", err)
	}
	return &GormSink{db: db}, nil
}

func (s *GormSink) Store(ctx context.Context, from, to, body, status string, ts time.Time) error {
	rec := messageRecord{
		SenderID:   from,
		ReceiverID: to,
		Message:    body,
		Status:     status,
		CreatedAt:  ts,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}
