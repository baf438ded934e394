package auth

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pilipi-dev/pilipi/internal/models"
)

// DBTokenStore keeps tokens in a local SQLite file. It is meant for hosts
// without an OS keyring (containers, CI runners).
type DBTokenStore struct {
	db *gorm.DB
}

// DefaultDBPath returns ~/.config/pilipi/credentials.sqlite
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "pilipi", "credentials.sqlite"), nil
}

// OpenDBTokenStore opens (and migrates) the credential database at path
func OpenDBTokenStore(path string) (*DBTokenStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create credential directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stderr, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}

	if err := db.AutoMigrate(&models.StoredCredential{}); err != nil {
		return nil, fmt.Errorf("failed to migrate credential database: %w", err)
	}

	return &DBTokenStore{db: db}, nil
}

// SaveToken upserts the token for server
func (s *DBTokenStore) SaveToken(server, token string) error {
	rec := models.StoredCredential{Server: server, Token: token}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "server"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken returns the stored token or ErrNoToken
func (s *DBTokenStore) LoadToken(server string) (string, error) {
	var rec models.StoredCredential
	if err := s.db.Where("server = ?", server).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return rec.Token, nil
}

// DeleteToken removes the token; deleting a missing token is not an error
func (s *DBTokenStore) DeleteToken(server string) error {
	if err := s.db.Where("server = ?", server).Delete(&models.StoredCredential{}).Error; err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Close releases the underlying connection
func (s *DBTokenStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
