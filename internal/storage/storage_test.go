package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lotas/tabgrouper/internal/settings"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tabgrouper.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != len(migrations) {
		t.Errorf("applied %d migrations, want %d", n, len(migrations))
	}
}

func TestOpenDBTwice(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	if err := SetValue(db, "k", "v"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db.Close()
	v, found, err := GetValue(db, "k")
	if err != nil || !found || v != "v" {
		t.Errorf("GetValue = %q, %v, %v; want v, true, nil", v, found, err)
	}
}

func TestKeyValue(t *testing.T) {
	db := testDB(t)

	if _, found, err := GetValue(db, "missing"); err != nil || found {
		t.Fatalf("GetValue(missing) found=%v err=%v", found, err)
	}
	if err := SetValue(db, "a", "1"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := SetValue(db, "a", "2"); err != nil {
		t.Fatalf("SetValue overwrite: %v", err)
	}
	v, found, err := GetValue(db, "a")
	if err != nil || !found || v != "2" {
		t.Errorf("GetValue(a) = %q, %v, %v; want 2, true, nil", v, found, err)
	}
	if err := DeleteValue(db, "a"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if _, found, _ := GetValue(db, "a"); found {
		t.Error("key still present after delete")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	db := testDB(t)

	s, found, err := LoadSettings(db)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if found {
		t.Error("found = true on empty database")
	}
	if diff := cmp.Diff(settings.Default(), s); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureSettings(t *testing.T) {
	db := testDB(t)

	if _, err := EnsureSettings(db); err != nil {
		t.Fatalf("EnsureSettings: %v", err)
	}
	if _, found, _ := LoadSettings(db); !found {
		t.Fatal("EnsureSettings did not write defaults")
	}

	custom := settings.Default()
	custom.AutoGroup = false
	if err := SaveSettings(db, custom); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := EnsureSettings(db)
	if err != nil {
		t.Fatalf("EnsureSettings: %v", err)
	}
	if got.AutoGroup {
		t.Error("EnsureSettings overwrote an existing record")
	}
}

func TestLoadSettingsFromExtensionRecord(t *testing.T) {
	db := testDB(t)

	// A record as the browser extension itself would have stored it.
	raw := `{"autoGroup":true,"excludedDomains":["mail.google.com"],"autoCollapse":true,
		"removeDuplicates":false,"customRules":[{"type":"rule","pattern":"github.com","name":"Code","color":"purple"}]}`
	if err := SetValue(db, settings.Key, raw); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	s, found, err := LoadSettings(db)
	if err != nil || !found {
		t.Fatalf("LoadSettings found=%v err=%v", found, err)
	}
	want := settings.Settings{
		AutoGroup:       true,
		ExcludedDomains: []string{"mail.google.com"},
		AutoCollapse:    true,
		CustomRules:     []settings.Rule{{Pattern: "github.com", Name: "Code", Color: "purple"}},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateSettings(t *testing.T) {
	db := testDB(t)

	_, err := UpdateSettings(db, func(s *settings.Settings) error {
		s.AddExcluded("example.com")
		return s.AddRule(settings.Rule{Pattern: "go.dev", Name: "Go", Color: "cyan"})
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got, err := UpdateSettings(db, func(s *settings.Settings) error {
		s.RemoveDuplicates = true
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if !got.RemoveDuplicates || !got.IsExcluded("example.com") || len(got.CustomRules) != 1 {
		t.Errorf("second update lost earlier changes: %+v", got)
	}

	stored, _, err := LoadSettings(db)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if diff := cmp.Diff(got, stored); diff != "" {
		t.Errorf("stored mismatch (-returned +stored):\n%s", diff)
	}
}

func TestUpdateSettingsErrorWritesNothing(t *testing.T) {
	db := testDB(t)
	boom := errors.New("boom")

	_, err := UpdateSettings(db, func(s *settings.Settings) error {
		s.AutoGroup = false
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, found, _ := LoadSettings(db); found {
		t.Error("failed update wrote a record")
	}
}

func TestActionHistory(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"created", "joined", "ungrouped"} {
		err := RecordAction(db, ActionRecord{
			At:       base.Add(time.Duration(i) * time.Minute),
			TabID:    i + 1,
			WindowID: 1,
			URL:      "https://example.com",
			Title:    "example",
			Outcome:  outcome,
		})
		if err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}

	recent, err := RecentActions(db, 2)
	if err != nil {
		t.Fatalf("RecentActions: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].Outcome != "ungrouped" || recent[1].Outcome != "joined" {
		t.Errorf("order = %s, %s; want ungrouped, joined", recent[0].Outcome, recent[1].Outcome)
	}

	n, err := PruneActions(db, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("PruneActions: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
}

func TestWatchFiresOnWrite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "watch.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dbPath, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)

	if _, err := UpdateSettings(db, func(s *settings.Settings) error {
		s.AutoCollapse = true
		return nil
	}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("timed out waiting for change notification")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
