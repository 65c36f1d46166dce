package firefox

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lotas/tabgrouper/internal/types"
)

// DirEnv overrides the Firefox data directory.
const DirEnv = "TABGROUPER_FIREFOX_DIR"

// ErrNoProfiles is returned when no profile with a session file exists.
var ErrNoProfiles = errors.New("no Firefox profiles with a session found")

// Dir returns the Firefox data directory holding profiles.ini, or "" when
// the platform has no known location.
func Dir() string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	}
	return ""
}

// Profiles lists the profiles declared in dir/profiles.ini that have a
// session file to plan against, in file order.
func Profiles(dir string) ([]types.Profile, error) {
	if dir == "" {
		return nil, fmt.Errorf("no Firefox directory on %s; set %s", runtime.GOOS, DirEnv)
	}
	f, err := os.Open(filepath.Join(dir, "profiles.ini"))
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	sections, err := readINI(f)
	if err != nil {
		return nil, fmt.Errorf("read profiles.ini: %w", err)
	}

	var profiles []types.Profile
	for _, sec := range sections {
		if !strings.HasPrefix(sec.name, "Profile") {
			continue
		}
		p := types.Profile{
			Name:       sec.values["Name"],
			Path:       sec.values["Path"],
			IsRelative: sec.values["IsRelative"] == "1",
			IsDefault:  sec.values["Default"] == "1",
		}
		if p.IsRelative {
			p.Path = filepath.Join(dir, p.Path)
		}
		if sessionPath(p.Path) != "" {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// DiscoverProfiles lists the usable profiles of the local Firefox install.
func DiscoverProfiles() ([]types.Profile, error) {
	return Profiles(Dir())
}

// SelectProfile picks the named profile, or the default one (falling back
// to the first) when name is empty.
func SelectProfile(profiles []types.Profile, name string) (types.Profile, error) {
	if len(profiles) == 0 {
		return types.Profile{}, ErrNoProfiles
	}
	if name != "" {
		for _, p := range profiles {
			if p.Name == name {
				return p, nil
			}
		}
		return types.Profile{}, fmt.Errorf("profile %q not found", name)
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	return profiles[0], nil
}

// LoadProfileSession reads the session of the named (or default) profile
// under the Firefox directory dir.
func LoadProfileSession(dir, name string) (*types.SessionData, error) {
	profiles, err := Profiles(dir)
	if err != nil {
		return nil, err
	}
	profile, err := SelectProfile(profiles, name)
	if err != nil {
		return nil, err
	}
	sd, err := ReadSessionFile(profile.Path)
	if err != nil {
		return nil, err
	}
	sd.Profile = profile
	return sd, nil
}

// LoadSession is LoadProfileSession on the local Firefox install.
func LoadSession(name string) (*types.SessionData, error) {
	return LoadProfileSession(Dir(), name)
}

type iniSection struct {
	name   string
	values map[string]string
}

// readINI splits an ini file into sections. Keys before the first section
// and comment lines are dropped.
func readINI(r io.Reader) ([]iniSection, error) {
	var sections []iniSection
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "", line[0] == ';', line[0] == '#':
		case line[0] == '[' && line[len(line)-1] == ']':
			sections = append(sections, iniSection{name: line[1 : len(line)-1], values: make(map[string]string)})
		case len(sections) > 0:
			if key, value, ok := strings.Cut(line, "="); ok {
				sections[len(sections)-1].values[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}
	}
	return sections, sc.Err()
}
