package infrastructure

import (
	"fmt"

	"github.com/yourusername/medialink-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteHistoryRepository implements domain.HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (and migrates) the history database
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&domain.TransferRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Create persists a finished transfer
func (r *SQLiteHistoryRepository) Create(record *domain.TransferRecord) error {
	return r.db.Create(record).Error
}

// FindBySessionID finds records for a session id, newest first
func (r *SQLiteHistoryRepository) FindBySessionID(sessionID string) ([]*domain.TransferRecord, error) {
	var records []*domain.TransferRecord
	err := r.db.Where("session_id = ?", sessionID).
		Order("finished_at DESC").
		Find(&records).Error
	return records, err
}

// FindRecent returns the most recent records, newest first
func (r *SQLiteHistoryRepository) FindRecent(limit int) ([]*domain.TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*domain.TransferRecord
	err := r.db.Order("finished_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// CountByOutcome returns the number of records per outcome tag
func (r *SQLiteHistoryRepository) CountByOutcome() (map[domain.OutcomeTag]int64, error) {
	type row struct {
		Outcome domain.OutcomeTag
		N       int64
	}
	var rows []row
	err := r.db.Model(&domain.TransferRecord{}).
		Select("outcome, count(*) as n").
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.OutcomeTag]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Outcome] = rw.N
	}
	return counts, nil
}

// Close releases the underlying database handle
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
