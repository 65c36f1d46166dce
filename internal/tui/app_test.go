package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/lotas/tabgrouper/internal/settings"
)

type memStore struct {
	s         settings.Settings
	updateErr error
	updates   int
}

func (m *memStore) Load() (settings.Settings, error) {
	return m.s.Clone(), nil
}

func (m *memStore) Update(fn func(*settings.Settings) error) (settings.Settings, error) {
	if m.updateErr != nil {
		return settings.Settings{}, m.updateErr
	}
	c := m.s.Clone()
	if err := fn(&c); err != nil {
		return settings.Settings{}, err
	}
	m.s = c
	m.updates++
	return c.Clone(), nil
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends keys without running the commands they return.
func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

// submit sends one key and feeds the settings or status message its
// command produces back into the model.
func submit(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(key(k))
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("key %q returned no command", k)
	}
	return feed(t, m, cmd)
}

func feed(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	msg := cmd()
	switch msg.(type) {
	case settingsLoadedMsg, settingsSavedMsg, statusMsg:
	default:
		t.Fatalf("unexpected message %T", msg)
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func loaded(t *testing.T, store *memStore) Model {
	t.Helper()
	m := NewModel(store)
	return feed(t, m, m.Init())
}

func TestLoadAndView(t *testing.T) {
	s := settings.Default()
	s.CustomRules = []settings.Rule{{Pattern: "github.com", Name: "GH", Color: "blue"}}
	m := loaded(t, &memStore{s: s})

	if !m.loaded {
		t.Fatal("settings not loaded")
	}
	if v := m.View(); !strings.Contains(v, "[x] Group tabs automatically") {
		t.Errorf("general view:\n%s", v)
	}
	m = press(m, "3")
	if v := m.View(); !strings.Contains(v, "github.com → GH") {
		t.Errorf("rules view:\n%s", v)
	}
}

func TestToggleGeneral(t *testing.T) {
	store := &memStore{s: settings.Default()}
	m := loaded(t, store)

	m = submit(t, m, "space")
	if store.s.AutoGroup {
		t.Error("AutoGroup still on")
	}
	if m.status != "Group tabs automatically: off" {
		t.Errorf("status = %q", m.status)
	}

	m = press(m, "j", "j")
	submit(t, m, "enter")
	if !store.s.RemoveDuplicates {
		t.Error("RemoveDuplicates not enabled")
	}
}

func TestExcludedDomains(t *testing.T) {
	store := &memStore{s: settings.Default()}
	m := loaded(t, store)

	m = press(m, "2", "a", "Example.COM ")
	if m.mode != modePrompt {
		t.Fatalf("mode = %v, want prompt", m.mode)
	}
	m = submit(t, m, "enter")
	if diff := cmp.Diff([]string{"example.com"}, store.s.ExcludedDomains); diff != "" {
		t.Errorf("excluded mismatch (-want +got):\n%s", diff)
	}

	m = press(m, "a", "example.com")
	m = submit(t, m, "enter")
	if m.status != "No change" || m.err != nil {
		t.Errorf("status = %q, err = %v", m.status, m.err)
	}

	m = submit(t, m, "d")
	if len(store.s.ExcludedDomains) != 0 {
		t.Errorf("excluded = %v", store.s.ExcludedDomains)
	}
	if m.cursor[SectionExcluded] != 0 {
		t.Errorf("cursor = %d", m.cursor[SectionExcluded])
	}
}

func TestRuleLifecycle(t *testing.T) {
	store := &memStore{s: settings.Default()}
	m := loaded(t, store)

	m = press(m, "3", "a", "GitHub.com", "tab", "GH", "tab", "right")
	m = submit(t, m, "enter")
	want := []settings.Rule{{Pattern: "github.com", Name: "GH", Color: "grey"}}
	if diff := cmp.Diff(want, store.s.CustomRules); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}

	m = press(m, "e", "tab", "ctrl+u", "Hub")
	m = submit(t, m, "enter")
	if got := store.s.CustomRules[0].Name; got != "Hub" {
		t.Errorf("name = %q, want Hub", got)
	}

	m = press(m, "d")
	if m.mode != modeConfirm {
		t.Fatalf("mode = %v, want confirm", m.mode)
	}
	m = press(m, "n")
	if len(store.s.CustomRules) != 1 {
		t.Fatal("rule deleted without confirmation")
	}

	m = press(m, "d")
	m = submit(t, m, "y")
	if len(store.s.CustomRules) != 0 {
		t.Errorf("rules = %v", store.s.CustomRules)
	}
	if m.status != "Deleted rule github.com" {
		t.Errorf("status = %q", m.status)
	}
}

func TestRuleFormRequiresFields(t *testing.T) {
	store := &memStore{s: settings.Default()}
	m := loaded(t, store)

	m = press(m, "3", "a", "example.com", "enter")
	if m.mode != modeForm {
		t.Fatalf("mode = %v, want form", m.mode)
	}
	if m.form.Err != settings.ErrRequired.Error() {
		t.Errorf("form error = %q", m.form.Err)
	}
	if store.updates != 0 {
		t.Errorf("store updated %d times", store.updates)
	}

	m = press(m, "esc")
	if m.mode != modeBrowse {
		t.Errorf("mode = %v after esc", m.mode)
	}
}

func TestMoveRule(t *testing.T) {
	s := settings.Default()
	s.CustomRules = []settings.Rule{
		{Pattern: "a.com", Name: "A"},
		{Pattern: "b.com", Name: "B"},
		{Pattern: "c.com", Name: "C"},
	}
	store := &memStore{s: s}
	m := loaded(t, store)

	m = press(m, "3")
	if _, cmd := m.Update(key("K")); cmd != nil {
		t.Error("moving the first rule up should do nothing")
	}

	m = submit(t, m, "J")
	got := []string{store.s.CustomRules[0].Pattern, store.s.CustomRules[1].Pattern, store.s.CustomRules[2].Pattern}
	if diff := cmp.Diff([]string{"b.com", "a.com", "c.com"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if m.cursor[SectionRules] != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor[SectionRules])
	}
}

func TestExportThenImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")

	src := settings.Default()
	src.CustomRules = []settings.Rule{
		{Pattern: "github.com", Name: "GH", Color: "blue"},
		{Pattern: "docs.google.com", Name: "Docs"},
	}
	m := loaded(t, &memStore{s: src})

	m = press(m, "3", "x")
	if got := m.prompt.Value(); got != settings.ExportFileName {
		t.Errorf("export prompt = %q", got)
	}
	m = press(m, "ctrl+u", path)
	m = submit(t, m, "enter")
	if m.err != nil {
		t.Fatalf("export: %v", m.err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	dst := &memStore{s: settings.Default()}
	m = loaded(t, dst)
	m = press(m, "3", "i", path)
	m = submit(t, m, "enter")
	if m.status != "Imported 2 rules" {
		t.Errorf("status = %q, err = %v", m.status, m.err)
	}
	if diff := cmp.Diff(src.CustomRules, dst.s.CustomRules); diff != "" {
		t.Errorf("imported rules mismatch (-want +got):\n%s", diff)
	}
}

func TestImportMissingFile(t *testing.T) {
	store := &memStore{s: settings.Default()}
	m := loaded(t, store)

	m = press(m, "3", "i", filepath.Join(t.TempDir(), "missing.json"))
	m = submit(t, m, "enter")
	if !errors.Is(m.err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", m.err)
	}
}

func TestSaveError(t *testing.T) {
	store := &memStore{s: settings.Default(), updateErr: errors.New("disk full")}
	m := loaded(t, store)

	m = submit(t, m, "space")
	if m.err == nil || !strings.Contains(m.View(), "disk full") {
		t.Errorf("err = %v", m.err)
	}
	if !m.settings.AutoGroup {
		t.Error("settings changed despite failed save")
	}
}

func TestReload(t *testing.T) {
	store := &memStore{s: settings.Default()}
	m := loaded(t, store)

	store.s.ExcludedDomains = []string{"example.com"}
	next, cmd := m.Update(ReloadMsg{})
	m = feed(t, next.(Model), cmd)
	if diff := cmp.Diff([]string{"example.com"}, m.settings.ExcludedDomains); diff != "" {
		t.Errorf("excluded mismatch (-want +got):\n%s", diff)
	}
}

func TestQuit(t *testing.T) {
	m := loaded(t, &memStore{s: settings.Default()})
	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := m.Update(key(k))
		if cmd == nil {
			t.Fatalf("%s: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s did not quit", k)
		}
	}
}
