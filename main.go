package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabgrouper/internal/analyzer"
	"github.com/lotas/tabgrouper/internal/applog"
	"github.com/lotas/tabgrouper/internal/config"
	"github.com/lotas/tabgrouper/internal/daemon"
	"github.com/lotas/tabgrouper/internal/export"
	"github.com/lotas/tabgrouper/internal/firefox"
	"github.com/lotas/tabgrouper/internal/server"
	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/sitename"
	"github.com/lotas/tabgrouper/internal/storage"
	"github.com/lotas/tabgrouper/internal/tui"
	"github.com/lotas/tabgrouper/internal/types"
)

const renderWidth = 100

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "organize":
		runOrganize(args)
	case "status":
		runStatus(args)
	case "autogroup":
		runToggle("autoGroup", args)
	case "set":
		runSet(args)
	case "options":
		runOptions()
	case "rules":
		runRules(args)
	case "exclude":
		runExclude(args)
	case "plan":
		runPlan(args)
	case "history":
		runHistory(args)
	case "profiles":
		runProfiles()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Run 'tabgrouper help' for usage.\n", cmd)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`tabgrouper - groups browser tabs by site

Usage:
  tabgrouper [serve]                                   Run the daemon (default)
    --port <n>             Bridge port (default: 19191)
    --db <path>            Settings database
    --config <path>        Config file (default: ~/.config/tabgrouper/config.yaml)
    --debug                Write debug lines to the log

  tabgrouper organize                                  Group every open tab now
  tabgrouper status                                    Show daemon and extension state
  tabgrouper autogroup on|off                          Toggle automatic grouping
  tabgrouper set autoCollapse|removeDuplicates on|off  Change a setting
  tabgrouper options                                   Open the options editor

  tabgrouper rules list                                Print rules
  tabgrouper rules add --pattern <p> [--name <n>] [--color <c>]
  tabgrouper rules remove <index>
  tabgrouper rules move <from> <to>
  tabgrouper rules export [--out <file>]
  tabgrouper rules import <file>

  tabgrouper exclude list|add <domain>|remove <domain>

  tabgrouper plan                                      Preview organize on a session file
    --profile <name>       Firefox profile name
    --session <file>       Session file (sessionstore.jsonlz4 or plain JSON)
    --json                 Print the plan as JSON

  tabgrouper history [--limit <n>]                     Recent grouping activity
  tabgrouper profiles                                  List Firefox profiles

Environment:
  TABGROUPER_PORT        Bridge port
  TABGROUPER_DB          Settings database path
  TABGROUPER_LOG_DIR     Log directory
  TABGROUPER_DEBUG       Enable debug logging
  TABGROUPER_PROFILE     Default Firefox profile (overridden by --profile flag)
  TABGROUPER_FIREFOX_DIR Firefox data directory holding profiles.ini
`)
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fail("loading config: %v", err)
	}
	return cfg
}

func openDB(cfg config.Config) *sql.DB {
	if cfg.DBPath == "" {
		fail("no database path; set --db or TABGROUPER_DB")
	}
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fail("opening database: %v", err)
	}
	return db
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	port := fs.Int("port", 0, "Bridge port")
	dbPath := fs.String("db", "", "Settings database path")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *debug {
		cfg.Debug = true
	}

	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer applog.Close()
	applog.SetDebug(cfg.Debug)

	db := openDB(cfg)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Port, server.WithCallTimeout(cfg.CallTimeout))
	fmt.Fprintf(os.Stderr, "Listening on 127.0.0.1:%d\n", cfg.Port)
	applog.Info("daemon.start", "port", cfg.Port, "db", cfg.DBPath)

	if err := daemon.New(db, cfg.DBPath, srv).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		applog.Error("daemon.exit", err)
		fail("%v", err)
	}
}

func runOrganize(args []string) {
	fs := flag.NewFlagSet("organize", flag.ExitOnError)
	port := fs.Int("port", 0, "Daemon port")
	fs.Parse(args)

	client := daemon.NewClient(daemonPort(*port))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := client.Organize(ctx)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("Organized %d tabs.\n", n)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	port := fs.Int("port", 0, "Daemon port")
	fs.Parse(args)

	client := daemon.NewClient(daemonPort(*port))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := client.Status(ctx)
	if err != nil {
		fail("daemon not reachable: %v", err)
	}
	fmt.Printf("Extension connected: %s\n", yesNo(st.Connected))
	fmt.Printf("Auto-group:          %s\n", yesNo(st.AutoGroup))
	fmt.Printf("Rules:               %d\n", st.Rules)
}

func daemonPort(flagValue int) int {
	if flagValue != 0 {
		return flagValue
	}
	return loadConfig("").Port
}

// update applies fn to the stored settings and prints msg on success.
func update(fn func(*settings.Settings) error) settings.Settings {
	db := openDB(loadConfig(""))
	defer db.Close()
	s, err := storage.UpdateSettings(db, fn)
	if err != nil {
		fail("%v", err)
	}
	return s
}

func parseOnOff(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1":
		return true
	case "off", "false", "no", "0":
		return false
	}
	fail("expected on or off, got %q", v)
	return false
}

func runToggle(name string, args []string) {
	if len(args) != 1 {
		fail("usage: tabgrouper %s on|off", strings.ToLower(name))
	}
	v := parseOnOff(args[0])
	update(func(s *settings.Settings) error {
		switch name {
		case "autoGroup":
			s.AutoGroup = v
		case "autoCollapse":
			s.AutoCollapse = v
		case "removeDuplicates":
			s.RemoveDuplicates = v
		}
		return nil
	})
	fmt.Printf("%s: %s\n", name, onOff(v))
}

func runSet(args []string) {
	if len(args) != 2 {
		fail("usage: tabgrouper set autoCollapse|removeDuplicates on|off")
	}
	switch args[0] {
	case "autoGroup", "autoCollapse", "removeDuplicates":
		runToggle(args[0], args[1:])
	default:
		fail("unknown setting %q", args[0])
	}
}

func runOptions() {
	cfg := loadConfig("")
	db := openDB(cfg)
	defer db.Close()

	p := tea.NewProgram(tui.NewModel(tui.DBStore{DB: db}), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := storage.Watch(ctx, cfg.DBPath, func() { p.Send(tui.ReloadMsg{}) }); err != nil {
			applog.Error("options.watch", err)
		}
	}()

	if _, err := p.Run(); err != nil {
		fail("%v", err)
	}
}

func runRules(args []string) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	sub, subArgs := args[0], args[1:]

	switch sub {
	case "list":
		db := openDB(loadConfig(""))
		defer db.Close()
		s, _, err := storage.LoadSettings(db)
		if err != nil {
			fail("%v", err)
		}
		printMarkdown(export.RulesMarkdown(s))
	case "add":
		runRulesAdd(subArgs)
	case "remove":
		if len(subArgs) != 1 {
			fail("usage: tabgrouper rules remove <index>")
		}
		i := atoi(subArgs[0])
		var removed settings.Rule
		update(func(s *settings.Settings) error {
			if i >= 0 && i < len(s.CustomRules) {
				removed = s.CustomRules[i]
			}
			return s.RemoveRule(i)
		})
		fmt.Printf("Removed rule %s -> %s\n", removed.Pattern, removed.Name)
	case "move":
		if len(subArgs) != 2 {
			fail("usage: tabgrouper rules move <from> <to>")
		}
		from, to := atoi(subArgs[0]), atoi(subArgs[1])
		update(func(s *settings.Settings) error { return s.MoveRule(from, to) })
		fmt.Printf("Moved rule %d to %d\n", from, to)
	case "export":
		runRulesExport(subArgs)
	case "import":
		if len(subArgs) != 1 {
			fail("usage: tabgrouper rules import <file>")
		}
		data, err := os.ReadFile(subArgs[0])
		if err != nil {
			fail("%v", err)
		}
		var n int
		update(func(s *settings.Settings) error {
			var err error
			n, err = s.ImportRules(data)
			return err
		})
		fmt.Printf("Imported %d rules\n", n)
	default:
		fail("unknown rules command %q. Use list, add, remove, move, export, or import.", sub)
	}
}

func runRulesAdd(args []string) {
	fs := flag.NewFlagSet("rules add", flag.ExitOnError)
	pattern := fs.String("pattern", "", "Domain or URL fragment to match")
	name := fs.String("name", "", "Group name (suggested from the site when empty)")
	color := fs.String("color", "", "Group color: "+strings.Join(settings.Colors, ", "))
	fs.Parse(reorderArgs(args))

	if strings.TrimSpace(*pattern) == "" {
		fail("--pattern is required")
	}
	if strings.TrimSpace(*name) == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		suggested, err := sitename.NewFetcher().Suggest(ctx, *pattern)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not fetch site name: %v\n", err)
		}
		*name = suggested
	}

	r := settings.Rule{Pattern: *pattern, Name: *name, Color: *color}
	s := update(func(s *settings.Settings) error { return s.AddRule(r) })
	added := s.CustomRules[len(s.CustomRules)-1]
	fmt.Printf("Added rule %d: %s -> %s\n", len(s.CustomRules)-1, added.Pattern, added.Name)
}

func runRulesExport(args []string) {
	fs := flag.NewFlagSet("rules export", flag.ExitOnError)
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	fs.Parse(args)

	db := openDB(loadConfig(""))
	defer db.Close()
	s, _, err := storage.LoadSettings(db)
	if err != nil {
		fail("%v", err)
	}
	data, err := settings.ExportRules(s.CustomRules)
	if err != nil {
		fail("%v", err)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, data, 0644); err != nil {
			fail("writing file: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d rules to %s\n", len(s.CustomRules), *outFile)
		return
	}
	os.Stdout.Write(data)
}

func runExclude(args []string) {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		db := openDB(loadConfig(""))
		defer db.Close()
		s, _, err := storage.LoadSettings(db)
		if err != nil {
			fail("%v", err)
		}
		if len(s.ExcludedDomains) == 0 {
			fmt.Println("No excluded domains.")
		}
		for _, d := range s.ExcludedDomains {
			fmt.Println(d)
		}
	case "add", "remove":
		if len(args) != 2 {
			fail("usage: tabgrouper exclude %s <domain>", args[0])
		}
		domain := args[1]
		var changed bool
		update(func(s *settings.Settings) error {
			if args[0] == "add" {
				changed = s.AddExcluded(domain)
			} else {
				changed = s.RemoveExcluded(strings.ToLower(strings.TrimSpace(domain)))
			}
			return nil
		})
		if !changed {
			fmt.Println("No change.")
			return
		}
		if args[0] == "add" {
			fmt.Printf("Excluded %s\n", domain)
		} else {
			fmt.Printf("Removed %s\n", domain)
		}
	default:
		fail("unknown exclude command %q. Use list, add, or remove.", args[0])
	}
}

func runPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	sessionFile := fs.String("session", "", "Session file path")
	jsonFlag := fs.Bool("json", false, "Print the plan as JSON")
	fs.Parse(args)

	var sd *types.SessionData
	var err error
	if *sessionFile != "" {
		sd, err = firefox.ReadSessionPath(*sessionFile)
	} else {
		sd, err = firefox.LoadSession(resolveProfileName(*profileName))
	}
	if err != nil {
		fail("%v", err)
	}

	db := openDB(loadConfig(""))
	defer db.Close()
	s, _, err := storage.LoadSettings(db)
	if err != nil {
		fail("%v", err)
	}

	plan := analyzer.Build(sd, &s)
	if *jsonFlag {
		out, err := export.PlanJSON(plan)
		if err != nil {
			fail("generating JSON: %v", err)
		}
		fmt.Print(out)
		return
	}
	printMarkdown(export.PlanMarkdown(plan))
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries")
	fs.Parse(args)

	db := openDB(loadConfig(""))
	defer db.Close()
	records, err := storage.RecentActions(db, *limit)
	if err != nil {
		fail("%v", err)
	}
	printMarkdown(export.HistoryMarkdown(records, time.Now()))
}

func runProfiles() {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		fail("discovering Firefox profiles: %v", err)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

func printMarkdown(md string) {
	out, err := export.Render(md, renderWidth)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fail("invalid index %q", s)
	}
	return n
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise falls back to the TABGROUPER_PROFILE environment variable.
func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TABGROUPER_PROFILE")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
