package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabgrouper/internal/settings"
)

// ReloadMsg asks the editor to re-read settings, e.g. after another
// process changed them.
type ReloadMsg struct{}

type settingsLoadedMsg struct {
	s   settings.Settings
	err error
}

type settingsSavedMsg struct {
	s      settings.Settings
	status string
	err    error
}

type statusMsg struct {
	status string
	err    error
}

var errUnchanged = errors.New("nothing changed")

type mode int

const (
	modeBrowse mode = iota
	modePrompt
	modeForm
	modeConfirm
)

type toggle struct {
	label string
	get   func(settings.Settings) bool
	set   func(*settings.Settings, bool)
}

var toggles = []toggle{
	{"Group tabs automatically",
		func(s settings.Settings) bool { return s.AutoGroup },
		func(s *settings.Settings, v bool) { s.AutoGroup = v }},
	{"Collapse new groups",
		func(s settings.Settings) bool { return s.AutoCollapse },
		func(s *settings.Settings, v bool) { s.AutoCollapse = v }},
	{"Close duplicate tabs in the same window",
		func(s settings.Settings) bool { return s.RemoveDuplicates },
		func(s *settings.Settings, v bool) { s.RemoveDuplicates = v }},
}

// Model is the options editor.
type Model struct {
	store    Store
	settings settings.Settings
	loaded   bool

	section Section
	cursor  [3]int
	mode    mode
	prompt  Prompt
	form    RuleForm
	confirm int // rule index pending deletion

	status string
	err    error

	width  int
	height int
}

func NewModel(store Store) Model {
	return Model{store: store, settings: settings.Default()}
}

func (m Model) Init() tea.Cmd {
	return loadSettings(m.store)
}

func loadSettings(store Store) tea.Cmd {
	return func() tea.Msg {
		s, err := store.Load()
		return settingsLoadedMsg{s: s, err: err}
	}
}

// save applies fn to the stored settings. fn returns the status line
// shown on success.
func save(store Store, fn func(*settings.Settings) (string, error)) tea.Cmd {
	return func() tea.Msg {
		var status string
		s, err := store.Update(func(s *settings.Settings) error {
			var err error
			status, err = fn(s)
			return err
		})
		return settingsSavedMsg{s: s, status: status, err: err}
	}
}

func exportRules(rules []settings.Rule, path string) tea.Cmd {
	return func() tea.Msg {
		data, err := settings.ExportRules(rules)
		if err != nil {
			return statusMsg{err: err}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{status: fmt.Sprintf("Exported %d rules to %s", len(rules), path)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ReloadMsg:
		return m, loadSettings(m.store)

	case settingsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.settings = msg.s
		m.loaded = true
		m.err = nil
		m.clamp()
		return m, nil

	case settingsSavedMsg:
		switch {
		case errors.Is(msg.err, errUnchanged):
			m.status = "No change"
			m.err = nil
		case msg.err != nil:
			m.err = msg.err
		default:
			m.settings = msg.s
			m.status = msg.status
			m.err = nil
			m.clamp()
		}
		return m, nil

	case statusMsg:
		m.status = msg.status
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modePrompt:
			return m.updatePrompt(msg)
		case modeForm:
			return m.updateForm(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.section = (m.section + 1) % 3
		return m, nil
	case "shift+tab":
		m.section = (m.section + 2) % 3
		return m, nil
	case "1", "2", "3":
		m.section = Section(msg.String()[0] - '1')
		return m, nil
	case "up", "k":
		if m.cursor[m.section] > 0 {
			m.cursor[m.section]--
		}
		return m, nil
	case "down", "j":
		if m.cursor[m.section] < m.count(m.section)-1 {
			m.cursor[m.section]++
		}
		return m, nil
	case "r":
		m.status = ""
		return m, loadSettings(m.store)
	}

	switch m.section {
	case SectionGeneral:
		return m.updateGeneral(msg)
	case SectionExcluded:
		return m.updateExcluded(msg)
	default:
		return m.updateRules(msg)
	}
}

func (m Model) updateGeneral(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case " ", "enter":
		t := toggles[m.cursor[SectionGeneral]]
		v := !t.get(m.settings)
		return m, save(m.store, func(s *settings.Settings) (string, error) {
			t.set(s, v)
			return fmt.Sprintf("%s: %s", t.label, onOff(v)), nil
		})
	}
	return m, nil
}

func (m Model) updateExcluded(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a":
		m.prompt = NewPrompt(promptExclude, "Exclude domain", "")
		m.mode = modePrompt
	case "d", "delete":
		if len(m.settings.ExcludedDomains) == 0 {
			return m, nil
		}
		domain := m.settings.ExcludedDomains[m.cursor[SectionExcluded]]
		return m, save(m.store, func(s *settings.Settings) (string, error) {
			if !s.RemoveExcluded(domain) {
				return "", errUnchanged
			}
			return "Removed " + domain, nil
		})
	}
	return m, nil
}

func (m Model) updateRules(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rules := m.settings.CustomRules
	i := m.cursor[SectionRules]
	switch msg.String() {
	case "a":
		m.form = NewRuleForm(-1, settings.Rule{})
		m.mode = modeForm
	case "e", "enter":
		if len(rules) > 0 {
			m.form = NewRuleForm(i, rules[i])
			m.mode = modeForm
		}
	case "d", "delete":
		if len(rules) > 0 {
			m.confirm = i
			m.mode = modeConfirm
		}
	case "K", "J":
		to := i - 1
		if msg.String() == "J" {
			to = i + 1
		}
		if to < 0 || to >= len(rules) {
			return m, nil
		}
		m.cursor[SectionRules] = to
		return m, save(m.store, func(s *settings.Settings) (string, error) {
			return "Moved rule", s.MoveRule(i, to)
		})
	case "i":
		m.prompt = NewPrompt(promptImport, "Import rules from file", "")
		m.mode = modePrompt
	case "x":
		m.prompt = NewPrompt(promptExport, "Export rules to file", settings.ExportFileName)
		m.mode = modePrompt
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		return m, nil
	case "enter":
		m.mode = modeBrowse
		value := strings.TrimSpace(m.prompt.Value())
		if value == "" {
			return m, nil
		}
		switch m.prompt.Kind {
		case promptExclude:
			return m, save(m.store, func(s *settings.Settings) (string, error) {
				if !s.AddExcluded(value) {
					return "", errUnchanged
				}
				return "Excluded " + strings.ToLower(value), nil
			})
		case promptImport:
			return m, save(m.store, func(s *settings.Settings) (string, error) {
				data, err := os.ReadFile(value)
				if err != nil {
					return "", err
				}
				n, err := s.ImportRules(data)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Imported %d rules", n), nil
			})
		case promptExport:
			return m, exportRules(m.settings.CustomRules, value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt.Input, cmd = m.prompt.Input.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		return m, nil
	case "enter":
		r, err := settings.NormalizeRule(m.form.Rule())
		if err != nil {
			m.form.Err = err.Error()
			return m, nil
		}
		m.mode = modeBrowse
		if idx := m.form.Index; idx >= 0 {
			return m, save(m.store, func(s *settings.Settings) (string, error) {
				return "Updated rule " + r.Pattern, s.UpdateRule(idx, r)
			})
		}
		m.cursor[SectionRules] = len(m.settings.CustomRules)
		return m, save(m.store, func(s *settings.Settings) (string, error) {
			return "Added rule " + r.Pattern, s.AddRule(r)
		})
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = modeBrowse
		idx := m.confirm
		return m, save(m.store, func(s *settings.Settings) (string, error) {
			if idx >= len(s.CustomRules) {
				return "", errUnchanged
			}
			pattern := s.CustomRules[idx].Pattern
			return "Deleted rule " + pattern, s.RemoveRule(idx)
		})
	case "n", "N", "esc", "q":
		m.mode = modeBrowse
	}
	return m, nil
}

func (m Model) count(sec Section) int {
	switch sec {
	case SectionGeneral:
		return len(toggles)
	case SectionExcluded:
		return len(m.settings.ExcludedDomains)
	default:
		return len(m.settings.CustomRules)
	}
}

func (m *Model) clamp() {
	for sec := SectionGeneral; sec <= SectionRules; sec++ {
		n := m.count(sec)
		if m.cursor[sec] >= n {
			m.cursor[sec] = n - 1
		}
		if m.cursor[sec] < 0 {
			m.cursor[sec] = 0
		}
	}
}

func (m Model) View() string {
	switch m.mode {
	case modePrompt:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.prompt.View())
	case modeForm:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.form.View())
	case modeConfirm:
		q := "Delete rule?"
		if m.confirm < len(m.settings.CustomRules) {
			q = fmt.Sprintf("Delete rule %q?", m.settings.CustomRules[m.confirm].Pattern)
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, renderConfirm(q))
	}

	counts := [3]int{0, len(m.settings.ExcludedDomains), len(m.settings.CustomRules)}
	var b strings.Builder
	b.WriteString(renderNavbar(m.section, counts, "Tab Grouper", m.width))
	b.WriteString("\n\n")

	if !m.loaded && m.err == nil {
		b.WriteString("  Loading settings...\n")
	} else {
		switch m.section {
		case SectionGeneral:
			b.WriteString(m.viewGeneral())
		case SectionExcluded:
			b.WriteString(m.viewExcluded())
		default:
			b.WriteString(m.viewRules())
		}
	}

	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(" " + errStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(" " + statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(" " + helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) help() string {
	common := "tab section · r reload · q quit"
	switch m.section {
	case SectionGeneral:
		return "↑↓ navigate · space toggle · " + common
	case SectionExcluded:
		return "↑↓ navigate · a add · d remove · " + common
	default:
		return "↑↓ navigate · a add · e edit · d delete · K/J move · i import · x export · " + common
	}
}

var (
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m Model) row(sec Section, i int, text string) string {
	if m.cursor[sec] == i {
		return cursorStyle.Render(" > "+text) + "\n"
	}
	return "   " + text + "\n"
}

func (m Model) viewGeneral() string {
	var b strings.Builder
	for i, t := range toggles {
		box := "[ ]"
		if t.get(m.settings) {
			box = "[x]"
		}
		b.WriteString(m.row(SectionGeneral, i, box+" "+t.label))
	}
	return b.String()
}

func (m Model) viewExcluded() string {
	if len(m.settings.ExcludedDomains) == 0 {
		return dimStyle.Render("   No excluded domains.") + "\n"
	}
	var b strings.Builder
	for i, d := range m.settings.ExcludedDomains {
		b.WriteString(m.row(SectionExcluded, i, d))
	}
	return b.String()
}

func (m Model) viewRules() string {
	if len(m.settings.CustomRules) == 0 {
		return dimStyle.Render("   No rules. Tabs are grouped by domain.") + "\n"
	}
	var b strings.Builder
	for i, r := range m.settings.CustomRules {
		b.WriteString(m.row(SectionRules, i, fmt.Sprintf("%s %s → %s", colorDot(r.Color), r.Pattern, r.Name)))
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
