package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/orderdesk/internal/domain/trade"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one key-value pair in the kv_entries table
type Entry struct {
	Name      string `gorm:"column:name;primaryKey;size:191"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "kv_entries"
}

// Migrate creates or updates the kv_entries table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Entry{})
}

// GormStore implements KeyValueStore on a SQL table through GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the value stored under key
func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set upserts the value stored under key
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := Entry{Name: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (s *GormStore) Remove(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

// Ensure GormStore implements KeyValueStore
var _ trade.KeyValueStore = (*GormStore)(nil)
