package services

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/opendrive/server/internal/database"
	"github.com/opendrive/server/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(log.New(io.Discard, "", 0)))
	require.NoError(t, err, "failed opening in-memory sqlite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func setupTestDrive(t *testing.T) *storage.LocalDrive {
	t.Helper()
	drive, err := storage.NewLocalDrive(filepath.Join(t.TempDir(), "drive"))
	require.NoError(t, err)
	return drive
}

// failingMirror wraps a real drive and fails the operations it is told to.
type failingMirror struct {
	*storage.LocalDrive
	failMakeDir   bool
	failRemoveAll bool
}

var errInjected = errors.New("injected filesystem failure")

func (m *failingMirror) MakeDir(path string) error {
	if m.failMakeDir {
		return errInjected
	}
	return m.LocalDrive.MakeDir(path)
}

func (m *failingMirror) RemoveAll(path string) error {
	if m.failRemoveAll {
		return errInjected
	}
	return m.LocalDrive.RemoveAll(path)
}
