// Package history persists completed conversation turns to a local
// SQLite database.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/voiceflow/agent"
)

// Turn is the persisted row for one conversation turn. Durations are
// stored as milliseconds to keep the schema portable.
type Turn struct {
	ID             uint   `gorm:"primaryKey"`
	TurnID         string `gorm:"uniqueIndex;size:64"`
	SpeechDetected bool
	Transcription  string
	Response       string
	AudioBytes     int
	Status         string `gorm:"index;size:32"`
	Error          string
	VADMillis      int64
	STTMillis      int64
	LLMMillis      int64
	TTSMillis      int64
	TotalMillis    int64
	CreatedAt      time.Time `gorm:"index"`
}

// Store writes and reads turn history. It satisfies agent.TurnRecorder.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ agent.TurnRecorder = (*Store)(nil)

// Open opens the SQLite history database at path, creating the file
// and migrating the schema as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Turn{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	logger.Info("turn history opened", zap.String("path", path))
	return &Store{db: db, logger: logger.Named("history")}, nil
}

// RecordTurn appends one turn record.
func (s *Store) RecordTurn(ctx context.Context, rec agent.TurnRecord) error {
	row := Turn{
		TurnID:         rec.TurnID,
		SpeechDetected: rec.SpeechDetected,
		Transcription:  rec.Transcription,
		Response:       rec.Response,
		AudioBytes:     rec.AudioBytes,
		Status:         rec.Status,
		Error:          rec.Error,
		VADMillis:      rec.VADTime.Milliseconds(),
		STTMillis:      rec.STTTime.Milliseconds(),
		LLMMillis:      rec.LLMTime.Milliseconds(),
		TTSMillis:      rec.TTSTime.Milliseconds(),
		TotalMillis:    rec.TotalTime.Milliseconds(),
		CreatedAt:      rec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("history: record turn %s: %w", rec.TurnID, err)
	}
	return nil
}

// Recent returns up to limit turns, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []Turn
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return rows, nil
}

// Get returns the turn with the given id, gorm.ErrRecordNotFound when
// it does not exist.
func (s *Store) Get(ctx context.Context, turnID string) (*Turn, error) {
	var row Turn
	err := s.db.WithContext(ctx).Where("turn_id = ?", turnID).First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("history: get %s: %w", turnID, err)
	}
	return &row, nil
}

// CountByStatus returns turn counts grouped by final status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type bucket struct {
		Status string
		N      int64
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).
		Model(&Turn{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return nil, fmt.Errorf("history: count by status: %w", err)
	}
	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[b.Status] = b.N
	}
	return out, nil
}

// Prune deletes turns older than the cutoff and returns the number of
// rows removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Delete(&Turn{})
	if res.Error != nil {
		return 0, fmt.Errorf("history: prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return sqlDB.Close()
}
