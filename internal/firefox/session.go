package firefox

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/tabgrouper/internal/types"
	"github.com/pierrec/lz4/v4"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// SessionFiles are the session recovery files tried, in order.
var SessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(mozLz4Magic)], mozLz4Magic) {
		return nil, fmt.Errorf("mozlz4: invalid header magic")
	}

	size := binary.LittleEndian.Uint32(data[8:12])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}
	return dst[:n], nil
}

// CompressMozLz4 encodes data in mozlz4 format.
func CompressMozLz4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: compress failed: %w", err)
	}
	out := make([]byte, 0, 12+n)
	out = append(out, mozLz4Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, buf[:n]...), nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries      []rawEntry `json:"entries"`
	Index        int        `json:"index"`
	LastAccessed int64      `json:"lastAccessed"`
	Pinned       bool       `json:"pinned"`
	Group        string     `json:"groupId"`
}

type rawGroup struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

type rawWindow struct {
	Tabs   []rawTab   `json:"tabs"`
	Groups []rawGroup `json:"groups"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession parses session JSON. Firefox identifies groups by string;
// they are numbered from 1 in file order. Windows and tabs are numbered
// from 1 as well, so IDs are stable for one file only.
func ParseSession(data []byte) (*types.SessionData, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	sd := &types.SessionData{ParsedAt: time.Now()}
	nextGroup, nextTab := 1, 1

	for winIdx, rw := range raw.Windows {
		win := &types.Window{ID: winIdx + 1}
		groups := make(map[string]*types.TabGroup)
		for _, rg := range rw.Groups {
			g := &types.TabGroup{
				ID:        nextGroup,
				WindowID:  win.ID,
				Title:     rg.Name,
				Color:     rg.Color,
				Collapsed: rg.Collapsed,
			}
			nextGroup++
			groups[rg.ID] = g
			sd.Groups = append(sd.Groups, g)
		}

		for _, rt := range rw.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}
			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			tab := &types.Tab{
				ID:       nextTab,
				WindowID: win.ID,
				GroupID:  types.NoGroup,
				Index:    len(win.Tabs),
				URL:      entry.URL,
				Title:    entry.Title,
				Pinned:   rt.Pinned,
			}
			nextTab++
			if rt.LastAccessed > 0 {
				tab.LastAccessed = time.UnixMilli(rt.LastAccessed)
			}
			// A group referenced but not defined leaves the tab ungrouped.
			if g, ok := groups[rt.Group]; ok && rt.Group != "" {
				tab.GroupID = g.ID
				g.Tabs = append(g.Tabs, tab)
			}
			win.Tabs = append(win.Tabs, tab)
			sd.AllTabs = append(sd.AllTabs, tab)
		}
		sd.Windows = append(sd.Windows, win)
	}
	return sd, nil
}

// ReadSessionPath reads a mozlz4 session file, or plain JSON when the file
// lacks the mozlz4 header.
func ReadSessionPath(path string) (*types.SessionData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if bytes.HasPrefix(data, mozLz4Magic) {
		data, err = DecompressMozLz4(data)
		if err != nil {
			return nil, fmt.Errorf("decompress session file: %w", err)
		}
	}
	return ParseSession(data)
}

// ReadSessionFile reads and parses the session recovery file of a profile
// directory. It tries recovery.jsonlz4 (active session), then
// previous.jsonlz4 (last closed session).
func ReadSessionFile(profileDir string) (*types.SessionData, error) {
	path := sessionPath(profileDir)
	if path == "" {
		return nil, fmt.Errorf("no session file found in %s", filepath.Join(profileDir, "sessionstore-backups"))
	}
	return ReadSessionPath(path)
}

// sessionPath returns the first existing session file of a profile, or "".
func sessionPath(profileDir string) string {
	for _, name := range SessionFiles {
		path := filepath.Join(profileDir, "sessionstore-backups", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
