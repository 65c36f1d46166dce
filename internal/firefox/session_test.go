package firefox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lotas/tabgrouper/internal/types"
)

func TestDecompressMozLz4(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		original := []byte(`{"windows":[{"tabs":[]}]}`)
		payload, err := CompressMozLz4(original)
		if err != nil {
			t.Fatalf("CompressMozLz4: %v", err)
		}
		result, err := DecompressMozLz4(payload)
		if err != nil {
			t.Fatalf("DecompressMozLz4 returned error: %v", err)
		}
		if string(result) != string(original) {
			t.Errorf("expected %q, got %q", string(original), string(result))
		}
	})

	t.Run("invalid header returns error", func(t *testing.T) {
		bad := []byte("BADMAGIC\x00\x00\x00\x00some data here")
		if _, err := DecompressMozLz4(bad); err == nil {
			t.Fatal("expected error for invalid header, got nil")
		}
	})

	t.Run("too short data returns error", func(t *testing.T) {
		if _, err := DecompressMozLz4([]byte("mozLz40")); err == nil {
			t.Fatal("expected error for too-short data, got nil")
		}
	})
}

const testSession = `{
	"version": ["sessionrestore", 1],
	"windows": [
		{
			"tabs": [
				{"entries": [{"url": "https://example.com", "title": "Example"}],
				 "index": 1, "lastAccessed": 1707654321000, "groupId": "g-work"},
				{"entries": [{"url": "https://old.com", "title": "Old"}, {"url": "https://current.com", "title": "Current"}],
				 "index": 2, "pinned": true},
				{"entries": []},
				{"entries": [{"url": "https://orphan.com"}], "index": 1, "groupId": "missing"}
			],
			"groups": [{"id": "g-work", "name": "Work", "color": "blue", "collapsed": true}]
		},
		{
			"tabs": [{"entries": [{"url": "https://github.com/x"}], "index": 1, "groupId": "g-code"}],
			"groups": [{"id": "g-code", "name": "Code", "color": "purple"}]
		}
	]
}`

func TestParseSession(t *testing.T) {
	sd, err := ParseSession([]byte(testSession))
	if err != nil {
		t.Fatalf("ParseSession returned error: %v", err)
	}

	if len(sd.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(sd.Windows))
	}
	if len(sd.AllTabs) != 4 {
		t.Fatalf("expected 4 tabs (entry-less tab skipped), got %d", len(sd.AllTabs))
	}
	if len(sd.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(sd.Groups))
	}

	work := sd.Groups[0]
	if work.ID != 1 || work.WindowID != 1 || work.Title != "Work" || work.Color != "blue" || !work.Collapsed {
		t.Errorf("work group = %+v", work)
	}
	if len(work.Tabs) != 1 || work.Tabs[0].URL != "https://example.com" {
		t.Errorf("work group tabs = %+v", work.Tabs)
	}
	code := sd.Groups[1]
	if code.ID != 2 || code.WindowID != 2 {
		t.Errorf("code group = %+v", code)
	}

	tab0 := sd.Windows[0].Tabs[0]
	if tab0.GroupID != work.ID || tab0.LastAccessed.UnixMilli() != 1707654321000 {
		t.Errorf("tab0 = %+v", tab0)
	}
	tab1 := sd.Windows[0].Tabs[1]
	// index=2 means entries[1] is the current page.
	if tab1.URL != "https://current.com" || tab1.Title != "Current" || !tab1.Pinned {
		t.Errorf("tab1 = %+v", tab1)
	}
	if tab1.Grouped() || !tab1.LastAccessed.IsZero() {
		t.Errorf("tab1 should be ungrouped with no access time: %+v", tab1)
	}
	orphan := sd.Windows[0].Tabs[2]
	if orphan.GroupID != types.NoGroup {
		t.Errorf("tab in undefined group should be ungrouped, got %d", orphan.GroupID)
	}
	if orphan.Index != 2 {
		t.Errorf("orphan index = %d, want 2", orphan.Index)
	}

	ids := make(map[int]bool)
	for _, tab := range sd.AllTabs {
		if ids[tab.ID] {
			t.Errorf("duplicate tab id %d", tab.ID)
		}
		ids[tab.ID] = true
	}
	if sd.GroupByID(2) != code || sd.GroupByID(99) != nil {
		t.Error("GroupByID lookup mismatch")
	}
}

func TestParseSessionInvalid(t *testing.T) {
	if _, err := ParseSession([]byte("{not json")); err == nil {
		t.Error("expected error")
	}
}

func writeProfileSession(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	backupDir := filepath.Join(dir, "sessionstore-backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadSessionFile(t *testing.T) {
	profileDir := t.TempDir()
	compressed, err := CompressMozLz4([]byte(testSession))
	if err != nil {
		t.Fatal(err)
	}
	writeProfileSession(t, profileDir, "previous.jsonlz4", compressed)

	sd, err := ReadSessionFile(profileDir)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if len(sd.AllTabs) != 4 {
		t.Errorf("expected 4 tabs, got %d", len(sd.AllTabs))
	}

	// recovery.jsonlz4 wins over previous.jsonlz4.
	recovery, _ := CompressMozLz4([]byte(`{"windows":[{"tabs":[{"entries":[{"url":"https://a.com"}],"index":1}]}]}`))
	writeProfileSession(t, profileDir, "recovery.jsonlz4", recovery)
	sd, err = ReadSessionFile(profileDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(sd.AllTabs) != 1 {
		t.Errorf("expected recovery session with 1 tab, got %d", len(sd.AllTabs))
	}
}

func TestReadSessionFileMissing(t *testing.T) {
	if _, err := ReadSessionFile(t.TempDir()); err == nil {
		t.Error("expected error for profile without session files")
	}
}

func TestReadSessionPathPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	os.WriteFile(path, []byte(testSession), 0o644)
	sd, err := ReadSessionPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sd.Windows) != 2 {
		t.Errorf("expected 2 windows, got %d", len(sd.Windows))
	}
}

func TestReadSessionPathCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recovery.jsonlz4")
	os.WriteFile(path, []byte("mozLz40\x00\xff\xff\x00\x00garbage"), 0o644)
	if _, err := ReadSessionPath(path); err == nil {
		t.Error("expected decompress error")
	}
}
