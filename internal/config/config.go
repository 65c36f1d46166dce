// Package config resolves tabgrouper's runtime configuration.
//
// Values come from, in order of precedence: command-line flags, environment
// variables, ~/.config/tabgrouper/config.yaml, built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lotas/tabgrouper/internal/storage"
)

const DefaultPort = 19191

// Config is the resolved configuration.
type Config struct {
	Port        int           `yaml:"port,omitempty"`
	DBPath      string        `yaml:"db_path,omitempty"`
	LogDir      string        `yaml:"log_dir,omitempty"`
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`
	Debug       bool          `yaml:"debug,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	// Empty when the home directory is unknown.
	dbPath, _ := storage.DefaultDBPath()
	return Config{
		Port:        DefaultPort,
		DBPath:      dbPath,
		LogDir:      DefaultLogDir(),
		CallTimeout: 10 * time.Second,
	}
}

// Dir returns the config directory, honoring XDG_CONFIG_HOME.
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tabgrouper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabgrouper")
}

// Path returns the default config file path.
func Path() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// DefaultLogDir is where applog writes when nothing else is configured.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "tabgrouper")
}

// LoadFrom reads a config file over the defaults. A missing file is not an
// error. Unset keys keep their default.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogDir = expandHome(cfg.LogDir)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("config %s: invalid port %d", path, cfg.Port)
	}
	if cfg.CallTimeout <= 0 {
		return cfg, fmt.Errorf("config %s: call_timeout must be positive", path)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with TABGROUPER_* environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("TABGROUPER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("TABGROUPER_PORT: invalid port %q", v)
		}
		cfg.Port = port
	}
	if v := getenv("TABGROUPER_DB"); v != "" {
		cfg.DBPath = expandHome(v)
	}
	if v := getenv("TABGROUPER_LOG_DIR"); v != "" {
		cfg.LogDir = expandHome(v)
	}
	if v := getenv("TABGROUPER_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TABGROUPER_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Load reads the config file at path (or the default path when empty) and
// applies the environment.
func Load(path string) (Config, error) {
	if path == "" {
		path = Path()
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
