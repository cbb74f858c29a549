package history

import (
	"context"
	"fmt"

	"github.com/cankoe/misuse-recorder/internal/models"

	"gorm.io/gorm"
)

// SQLStore keeps records in a gorm-managed capture_records table whose
// autoincrement primary key provides the record ID.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the capture_records table and returns the store.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&models.CaptureRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate capture_records: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Append(ctx context.Context, rec *models.CaptureRecord) error {
	row := *rec
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert capture record: %w", err)
	}
	rec.ID = row.ID
	return nil
}

func (s *SQLStore) RecentHistory(ctx context.Context, limit int) ([]models.CaptureRecord, error) {
	records := []models.CaptureRecord{}
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(normalizeLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capture records: %w", err)
	}
	return records, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
