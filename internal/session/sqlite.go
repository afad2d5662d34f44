package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"

	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

type sessionRecord struct {
	Token     string `gorm:"primaryKey;size:36"`
	Data      string
	UpdatedAt time.Time `gorm:"index"`
}

func (sessionRecord) TableName() string { return "sessions" }

// SQLiteStore keeps sessions in a local SQLite file.
type SQLiteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// OpenSQLite opens (and migrates) the database at path. ttl <= 0 disables expiry.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &SQLiteStore{db: db, ttl: ttl}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, token string) (*State, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.ttl > 0 && time.Since(rec.UpdatedAt) > s.ttl {
		return nil, ErrNotFound
	}
	var st State
	if err := json.Unmarshal([]byte(rec.Data), &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, st *State) error {
	st.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	rec := sessionRecord{Token: st.Token, Data: string(b), UpdatedAt: st.UpdatedAt}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, "token = ?", token).Error
}

// Prune removes expired sessions and returns their tokens so callers can
// clean up artifact directories.
func (s *SQLiteStore) Prune(ctx context.Context) ([]string, error) {
	if s.ttl <= 0 {
		return nil, nil
	}
	cutoff := time.Now().UTC().Add(-s.ttl)
	var tokens []string
	if err := s.db.WithContext(ctx).Model(&sessionRecord{}).Where("updated_at < ?", cutoff).Pluck("token", &tokens).Error; err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	if err := s.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&sessionRecord{}).Error; err != nil {
		return nil, fmt.Errorf("delete expired: %w", err)
	}
	return tokens, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
