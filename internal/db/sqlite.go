package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stacksym/stacksym/internal/model"
)

// Sqlite is a store that keeps symbol caches in a sqlite database.
type Sqlite struct {
	URL string
	// Config
	BatchSize int

	gormStore
}

// NewSqlite creates a new Sqlite store.
func NewSqlite(path string, batchSize int) (*Sqlite, error) {
	if path == "" {
		return nil, fmt.Errorf("'path' is required")
	}
	return &Sqlite{
		URL:       path,
		BatchSize: batchSize,
	}, nil
}

// Connect connects to the database.
func (s *Sqlite) Connect() (err error) {
	if dir := filepath.Dir(s.URL); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create sqlite database directory: %w", err)
		}
	}
	s.db, err = gorm.Open(sqlite.Open(s.URL), &gorm.Config{
		CreateBatchSize:        s.BatchSize,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect sqlite database: %w", err)
	}
	// sqlite allows a single writer
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return s.db.AutoMigrate(&model.SymCache{})
}
