package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	fileName    = "tabgrouper.log"
	maxFileSize = 5 << 20 // 5 MB
	maxValueLen = 200
	truncSuffix = "…"
)

var (
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	debug atomic.Bool
)

// Init opens the log file in dir for appending. Call once at startup.
// If the file exceeds 5 MB, it is rotated (renamed to .log.1) before opening.
// All log calls are no-ops until Init or SetOutput is called.
func Init(dir string) error {
	path := filepath.Join(dir, fileName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil && info.Size() > maxFileSize {
		os.Rename(path, path+".1")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	mu.Lock()
	file = f
	out = f
	mu.Unlock()
	return nil
}

// SetOutput sends log lines to w instead of the log file. Passing nil
// disables logging.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// SetDebug enables or disables Debug lines.
func SetDebug(on bool) {
	debug.Store(on)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	out = nil
}

// Info logs a structured event line.
//
//	applog.Info("ws.connected", "remote", addr)
//	applog.Info("group.created", "tab", 12, "title", "github")
func Info(event string, kv ...any) {
	write("INFO", event, nil, kv)
}

// Debug logs a structured event line when debug logging is on.
func Debug(event string, kv ...any) {
	if !debug.Load() {
		return
	}
	write("DEBUG", event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("tabs.ungroup", err, "tab", 12)
func Error(event string, err error, kv ...any) {
	write("ERROR", event, err, kv)
}

func write(level, event string, err error, kv []any) {
	mu.Lock()
	w := out
	mu.Unlock()
	if w == nil {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(event)

	if err != nil {
		b.WriteString(" err=")
		b.WriteString(quote(err.Error()))
	}

	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		b.WriteString(quote(fmt.Sprint(kv[i+1])))
	}
	b.WriteByte('\n')

	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		io.WriteString(out, b.String())
	}
}

func quote(s string) string {
	if len(s) > maxValueLen {
		s = s[:maxValueLen] + truncSuffix
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
	}
	return s
}
