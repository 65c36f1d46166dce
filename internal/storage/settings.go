package storage

import (
	"database/sql"
	"fmt"

	"github.com/lotas/tabgrouper/internal/settings"
)

// LoadSettings reads the settings record. When none is stored the defaults
// are returned with found=false.
func LoadSettings(db *sql.DB) (s settings.Settings, found bool, err error) {
	return loadSettings(db)
}

func loadSettings(q queryer) (settings.Settings, bool, error) {
	raw, found, err := getValue(q, settings.Key)
	if err != nil {
		return settings.Settings{}, false, err
	}
	if !found {
		return settings.Default(), false, nil
	}
	s, err := settings.Decode([]byte(raw))
	if err != nil {
		return settings.Settings{}, false, err
	}
	return s, true, nil
}

// SaveSettings replaces the stored settings record.
func SaveSettings(db *sql.DB, s settings.Settings) error {
	return saveSettings(db, s)
}

func saveSettings(q queryer, s settings.Settings) error {
	data, err := settings.Encode(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return setValue(q, settings.Key, string(data))
}

// EnsureSettings writes the defaults if no record exists yet and returns
// the stored settings.
func EnsureSettings(db *sql.DB) (settings.Settings, error) {
	s, found, err := LoadSettings(db)
	if err != nil {
		return settings.Settings{}, err
	}
	if !found {
		if err := SaveSettings(db, s); err != nil {
			return settings.Settings{}, err
		}
	}
	return s, nil
}

// UpdateSettings reads the current record, applies fn and writes the result
// back in one transaction. If fn returns an error nothing is written.
func UpdateSettings(db *sql.DB, fn func(*settings.Settings) error) (settings.Settings, error) {
	tx, err := db.Begin()
	if err != nil {
		return settings.Settings{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	s, _, err := loadSettings(tx)
	if err != nil {
		return settings.Settings{}, err
	}
	s = s.Clone()
	if err := fn(&s); err != nil {
		return settings.Settings{}, err
	}
	if err := saveSettings(tx, s); err != nil {
		return settings.Settings{}, err
	}
	if err := tx.Commit(); err != nil {
		return settings.Settings{}, fmt.Errorf("commit: %w", err)
	}
	return s, nil
}
