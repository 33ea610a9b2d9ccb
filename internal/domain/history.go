package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferRecord is one finished session persisted to the local history store
type TransferRecord struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	SessionID       string     `json:"session_id" gorm:"not null;index"`
	MediaType       MediaType  `json:"media_type" gorm:"not null"`
	Strategy        Strategy   `json:"strategy" gorm:"not null"`
	Outcome         OutcomeTag `json:"outcome" gorm:"not null;index"`
	ErrorKey        string     `json:"error_key,omitempty"`
	Message         string     `json:"message,omitempty" gorm:"type:text"`
	OutputPath      string     `json:"output_path,omitempty"`
	FileKept        bool       `json:"file_kept"`
	DownloadedBytes int64      `json:"downloaded_bytes"`
	MediaSeconds    float64    `json:"media_seconds"`
	Segments        int        `json:"segments"`
	ElapsedSeconds  float64    `json:"elapsed_seconds"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at" gorm:"autoCreateTime"`
}

// NewTransferRecord snapshots a terminated session for persistence
func NewTransferRecord(s *Session) *TransferRecord {
	rec := &TransferRecord{
		ID:              uuid.New().String(),
		SessionID:       s.ID,
		MediaType:       s.MediaType,
		Strategy:        s.Strategy,
		OutputPath:      s.OutputPath,
		DownloadedBytes: s.Progress.DownloadedBytes,
		MediaSeconds:    s.Progress.FinalTime,
		Segments:        s.Progress.SegmentCount,
		ElapsedSeconds:  s.Elapsed().Seconds(),
		StartedAt:       s.StartedAt,
		FinishedAt:      time.Now(),
	}
	if s.Outcome != nil {
		rec.Outcome = s.Outcome.Tag
		rec.ErrorKey = string(s.Outcome.Key)
		rec.Message = s.Outcome.Message
		rec.FileKept = s.Outcome.FileKept
	}
	return rec
}

// HistoryRepository defines the interface for transfer history persistence
type HistoryRepository interface {
	// Create persists a finished transfer
	Create(record *TransferRecord) error

	// FindBySessionID finds records for a session id, newest first
	FindBySessionID(sessionID string) ([]*TransferRecord, error)

	// FindRecent returns the most recent records, newest first
	FindRecent(limit int) ([]*TransferRecord, error)

	// CountByOutcome returns the number of records per outcome tag
	CountByOutcome() (map[OutcomeTag]int64, error)

	// Close releases the underlying store
	Close() error
}
