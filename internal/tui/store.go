package tui

import (
	"database/sql"

	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/storage"
)

// Store persists settings for the editor.
type Store interface {
	Load() (settings.Settings, error)
	Update(fn func(*settings.Settings) error) (settings.Settings, error)
}

// DBStore is a Store backed by the settings database.
type DBStore struct {
	DB *sql.DB
}

func (d DBStore) Load() (settings.Settings, error) {
	s, _, err := storage.LoadSettings(d.DB)
	return s, err
}

func (d DBStore) Update(fn func(*settings.Settings) error) (settings.Settings, error) {
	return storage.UpdateSettings(d.DB, fn)
}
