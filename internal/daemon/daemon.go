// Package daemon runs the grouping service: the bridge server, the settings
// watcher and the event loop that drives the grouping controller.
package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lotas/tabgrouper/internal/applog"
	"github.com/lotas/tabgrouper/internal/grouper"
	"github.com/lotas/tabgrouper/internal/server"
	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/storage"
	"github.com/lotas/tabgrouper/internal/types"
)

// HistoryRetention is how long grouping history is kept.
const HistoryRetention = 30 * 24 * time.Hour

// Daemon owns the settings cache and serializes all grouping work on a
// single goroutine.
type Daemon struct {
	db     *sql.DB
	dbPath string
	srv    *server.Server
	cache  *grouper.Cache
	ctrl   *grouper.Controller
	jobs   chan func(context.Context)

	// Stored settings value the cache was last refreshed from. Only
	// touched by Run and the watcher callback.
	lastRaw string
}

// New wires a daemon around an open database and a bridge server.
func New(db *sql.DB, dbPath string, srv *server.Server) *Daemon {
	d := &Daemon{
		db:     db,
		dbPath: dbPath,
		srv:    srv,
		jobs:   make(chan func(context.Context)),
	}
	d.cache = grouper.NewCache(d.loadSettings)
	d.ctrl = grouper.New(srv, d.cache, historyRecorder{db: db})
	return d
}

func (d *Daemon) loadSettings() (settings.Settings, error) {
	s, _, err := storage.LoadSettings(d.db)
	return s, err
}

// Run serves until ctx is cancelled or a component fails.
func (d *Daemon) Run(ctx context.Context) error {
	raw, _, err := storage.GetValue(d.db, settings.Key)
	if err != nil {
		return err
	}
	if err := d.cache.Refresh(); err != nil {
		return err
	}
	d.lastRaw = raw
	if n, err := storage.PruneActions(d.db, time.Now().Add(-HistoryRetention)); err != nil {
		applog.Error("history.prune", err)
	} else if n > 0 {
		applog.Info("history.prune", "removed", n)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.srv.ListenAndServe(ctx, d.Routes())
	})
	g.Go(func() error {
		return storage.Watch(ctx, d.dbPath, d.reload)
	})
	g.Go(func() error {
		return d.Loop(ctx)
	})
	return g.Wait()
}

// reload refreshes the cache after a storage change. History writes touch
// the same file, so the settings value is compared first.
func (d *Daemon) reload() {
	raw, _, err := storage.GetValue(d.db, settings.Key)
	if err != nil {
		applog.Error("settings.reload", err)
		return
	}
	if raw == d.lastRaw {
		return
	}
	if err := d.cache.Refresh(); err != nil {
		applog.Error("settings.reload", err)
		return
	}
	d.lastRaw = raw
	applog.Debug("settings.reload")
}

// Loop processes bridge events and queued jobs one at a time until ctx is
// cancelled.
func (d *Daemon) Loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-d.srv.Events():
			d.handle(ctx, msg)
		case job := <-d.jobs:
			job(ctx)
		}
	}
}

func (d *Daemon) handle(ctx context.Context, msg server.IncomingMsg) {
	switch msg.Type {
	case server.EventInstalled:
		s, err := storage.EnsureSettings(d.db)
		if err != nil {
			applog.Error("settings.init", err)
			return
		}
		d.cache.Set(s)
		applog.Info("extension.installed", "rules", len(s.CustomRules))

	case server.EventTabUpdated:
		tab, ci, err := server.ParseTabUpdated(msg)
		if err != nil {
			applog.Error("event.parse", err, "type", msg.Type)
			return
		}
		if !grouper.Qualifies(ci.Status, ci.URL, tab) {
			return
		}
		d.ctrl.GroupTab(ctx, tab)

	case server.EventOrganizeAll:
		status := "done"
		if _, err := d.ctrl.OrganizeAll(ctx); err != nil {
			applog.Error("organize", err)
			status = "error"
		}
		if msg.ID != "" {
			if err := d.srv.Reply(msg.ID, status); err != nil {
				applog.Error("organize.reply", err)
			}
		}

	default:
		applog.Debug("event.unknown", "type", msg.Type)
	}
}

// organize runs an organize-all pass on the loop goroutine and waits for it.
func (d *Daemon) organize(ctx context.Context) (grouper.Summary, error) {
	type result struct {
		sum grouper.Summary
		err error
	}
	done := make(chan result, 1)
	job := func(loopCtx context.Context) {
		sum, err := d.ctrl.OrganizeAll(loopCtx)
		done <- result{sum, err}
	}
	select {
	case d.jobs <- job:
	case <-ctx.Done():
		return grouper.Summary{}, ctx.Err()
	}
	select {
	case r := <-done:
		return r.sum, r.err
	case <-ctx.Done():
		return grouper.Summary{}, ctx.Err()
	}
}

// Routes returns the HTTP endpoints served next to the WebSocket.
func (d *Daemon) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/organize": http.HandlerFunc(d.handleOrganize),
		"/status":   http.HandlerFunc(d.handleStatus),
	}
}

// OrganizeResponse is the body of POST /organize.
type OrganizeResponse struct {
	Status string `json:"status"`
	Tabs   int    `json:"tabs,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Connected bool `json:"connected"`
	AutoGroup bool `json:"autoGroup"`
	Rules     int  `json:"rules"`
}

func (d *Daemon) handleOrganize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !d.srv.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, OrganizeResponse{Status: "error", Error: server.ErrNotConnected.Error()})
		return
	}
	sum, err := d.organize(r.Context())
	if err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, server.ErrNotConnected) || errors.Is(err, server.ErrDisconnected) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, OrganizeResponse{Status: "error", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, OrganizeResponse{Status: "done", Tabs: sum.Tabs})
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Connected: d.srv.Connected()}
	if s, err := d.cache.Get(); err == nil {
		resp.AutoGroup = s.AutoGroup
		resp.Rules = len(s.CustomRules)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// historyRecorder persists controller results to the group_actions table.
type historyRecorder struct {
	db *sql.DB
}

func (h historyRecorder) Record(tab *types.Tab, res grouper.Result) {
	err := storage.RecordAction(h.db, storage.ActionRecord{
		TabID:    tab.ID,
		WindowID: tab.WindowID,
		URL:      tab.URL,
		Title:    res.Title,
		Outcome:  string(res.Outcome),
	})
	if err != nil {
		applog.Error("history.record", err, "tab", tab.ID)
	}
}
