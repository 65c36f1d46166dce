package daemon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"nhooyr.io/websocket"

	"github.com/lotas/tabgrouper/internal/grouper"
	"github.com/lotas/tabgrouper/internal/server"
	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// extension is a scripted stand-in for the bridge extension: one window
// with a fixed set of tabs, groups created on demand.
type extension struct {
	conn *websocket.Conn

	mu      sync.Mutex
	tabs    []map[string]any
	groups  map[int]string
	nextID  int
	actions []string
	replies chan server.OutgoingMsg
	dropOn  string // close the connection instead of answering this action
}

func newExtension(urls ...string) *extension {
	e := &extension{groups: make(map[int]string), nextID: 500, replies: make(chan server.OutgoingMsg, 4)}
	for i, u := range urls {
		e.tabs = append(e.tabs, map[string]any{"id": i + 1, "windowId": 1, "groupId": -1, "url": u})
	}
	return e
}

func (e *extension) respond(cmd server.OutgoingMsg) (any, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, cmd.Action)
	switch cmd.Action {
	case "windows.getAll":
		return []map[string]any{{"id": 1, "tabs": e.tabs}}, ""
	case "tabGroups.query":
		var out []map[string]any
		for id, title := range e.groups {
			out = append(out, map[string]any{"id": id, "windowId": 1, "title": title})
		}
		return out, ""
	case "tabGroups.get":
		title, ok := e.groups[cmd.GroupID]
		if !ok {
			return nil, fmt.Sprintf("No group with id: %d", cmd.GroupID)
		}
		return map[string]any{"id": cmd.GroupID, "windowId": 1, "title": title}, ""
	case "tabs.group":
		id := cmd.GroupID
		if id == 0 {
			id = e.nextID
			e.nextID++
			e.groups[id] = ""
		}
		return id, ""
	case "tabGroups.update":
		e.groups[cmd.GroupID] = cmd.Title
		return nil, ""
	case "tabs.query":
		return e.tabs, ""
	default:
		return nil, ""
	}
}

func (e *extension) run(ctx context.Context) {
	for {
		_, data, err := e.conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd server.OutgoingMsg
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		if cmd.Action == "reply" {
			e.replies <- cmd
			continue
		}
		if cmd.Action == e.dropOn {
			e.conn.CloseNow()
			return
		}
		result, errMsg := e.respond(cmd)
		ok := errMsg == ""
		raw, _ := json.Marshal(result)
		out, _ := json.Marshal(map[string]any{"type": "response", "id": cmd.ID, "ok": ok, "result": json.RawMessage(raw), "error": errMsg})
		if err := e.conn.Write(ctx, websocket.MessageText, out); err != nil {
			return
		}
	}
}

func (e *extension) send(t *testing.T, ctx context.Context, msg string) {
	t.Helper()
	if err := e.conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (e *extension) groupTitles() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var titles []string
	for _, t := range e.groups {
		titles = append(titles, t)
	}
	return titles
}

type harness struct {
	db  *sql.DB
	srv *server.Server
	d   *Daemon
	ts  *httptest.Server
	ctx context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	srv := server.New(0, server.WithCallTimeout(2*time.Second))
	d := New(db, dbPath, srv)

	mux := http.NewServeMux()
	for p, h := range d.Routes() {
		mux.Handle(p, h)
	}
	mux.Handle("/", srv.Handler())
	ts := httptest.NewServer(mux)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	loopDone := make(chan struct{})
	go func() {
		d.Loop(ctx)
		close(loopDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-loopDone
		ts.Close()
	})
	return &harness{db: db, srv: srv, d: d, ts: ts, ctx: ctx}
}

func (h *harness) connect(t *testing.T, e *extension) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http")
	conn, _, err := websocket.Dial(h.ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	e.conn = conn
	t.Cleanup(func() { conn.CloseNow() })
	go e.run(h.ctx)
	eventually(t, h.srv.Connected)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInstalledWritesDefaults(t *testing.T) {
	h := newHarness(t)
	e := newExtension()
	h.connect(t, e)

	e.send(t, h.ctx, `{"type":"installed"}`)
	eventually(t, func() bool {
		_, found, err := storage.GetValue(h.db, settings.Key)
		return err == nil && found
	})
	s, _, err := storage.LoadSettings(h.db)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(settings.Default(), s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestTabUpdatedGroupsTab(t *testing.T) {
	h := newHarness(t)
	e := newExtension("https://www.github.com/golang/go")
	h.connect(t, e)

	e.send(t, h.ctx, `{"type":"tabUpdated","tabId":1,"changeInfo":{"status":"complete"},
		"tab":{"id":1,"windowId":1,"groupId":-1,"url":"https://www.github.com/golang/go"}}`)

	eventually(t, func() bool {
		titles := e.groupTitles()
		return len(titles) == 1 && titles[0] == "github"
	})
	eventually(t, func() bool {
		acts, err := storage.RecentActions(h.db, 10)
		return err == nil && len(acts) == 1 && acts[0].Outcome == "created" && acts[0].Title == "github"
	})
}

func TestTabUpdatedIgnoresLoading(t *testing.T) {
	h := newHarness(t)
	e := newExtension()
	h.connect(t, e)

	e.send(t, h.ctx, `{"type":"tabUpdated","tabId":1,"changeInfo":{"status":"loading"},
		"tab":{"id":1,"windowId":1,"url":"https://example.com"}}`)
	// A qualifying event after it proves the first was consumed and ignored.
	e.send(t, h.ctx, `{"type":"tabUpdated","tabId":2,"changeInfo":{"url":"https://go.dev/"},
		"tab":{"id":2,"windowId":1,"url":"https://go.dev/"}}`)

	eventually(t, func() bool { return len(e.groupTitles()) == 1 })
	if titles := e.groupTitles(); titles[0] != "go" {
		t.Errorf("group titles = %v, want [go]", titles)
	}
}

func TestOrganizeAllEventReplies(t *testing.T) {
	h := newHarness(t)
	e := newExtension("https://a.example.com", "https://b.example.com", "about:blank")
	h.connect(t, e)

	e.send(t, h.ctx, `{"type":"organizeAll","id":"popup-1"}`)
	select {
	case r := <-e.replies:
		if r.ID != "popup-1" || r.Status != "done" {
			t.Errorf("reply = %+v", r)
		}
	case <-h.ctx.Done():
		t.Fatal("no reply to organizeAll")
	}
	if diff := cmp.Diff([]string{"example"}, e.groupTitles()); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestOrganizeEndpoint(t *testing.T) {
	h := newHarness(t)
	client := &Client{BaseURL: h.ts.URL, HTTP: h.ts.Client()}

	if _, err := client.Organize(h.ctx); err == nil {
		t.Fatal("organize without an extension should fail")
	}

	e := newExtension("https://news.bbc.co.uk", "https://www.bbc.co.uk/sport")
	h.connect(t, e)
	n, err := client.Organize(h.ctx)
	if err != nil {
		t.Fatalf("Organize: %v", err)
	}
	if n != 2 {
		t.Errorf("tabs = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"bbc"}, e.groupTitles()); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestOrganizeEndpointExtensionDisconnects(t *testing.T) {
	h := newHarness(t)
	e := newExtension("https://a.example.com", "https://b.example.com")
	e.dropOn = "tabGroups.query"
	h.connect(t, e)

	resp, err := h.ts.Client().Post(h.ts.URL+"/organize", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	var body OrganizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "error" || !strings.Contains(body.Error, server.ErrDisconnected.Error()) {
		t.Errorf("body = %+v", body)
	}
}

func TestOrganizeEndpointRejectsGet(t *testing.T) {
	h := newHarness(t)
	resp, err := h.ts.Client().Get(h.ts.URL + "/organize")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t)
	if _, err := storage.UpdateSettings(h.db, func(s *settings.Settings) error {
		s.AutoGroup = false
		return s.AddRule(settings.Rule{Pattern: "x.com", Name: "X"})
	}); err != nil {
		t.Fatal(err)
	}
	client := &Client{BaseURL: h.ts.URL, HTTP: h.ts.Client()}

	st, err := client.Status(h.ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := StatusResponse{Connected: false, AutoGroup: false, Rules: 1}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestReloadSkipsUnchangedSettings(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	d := New(db, dbPath, server.New(0))
	loads := 0
	d.cache = grouper.NewCache(func() (settings.Settings, error) {
		loads++
		return d.loadSettings()
	})

	if _, err := storage.UpdateSettings(db, func(s *settings.Settings) error {
		s.AutoCollapse = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	d.reload()
	if loads != 1 {
		t.Fatalf("loads after settings write = %d, want 1", loads)
	}

	if err := storage.RecordAction(db, storage.ActionRecord{TabID: 1, WindowID: 1, URL: "https://go.dev", Outcome: "created"}); err != nil {
		t.Fatal(err)
	}
	d.reload()
	if loads != 1 {
		t.Errorf("loads after history write = %d, want 1", loads)
	}

	if _, err := storage.UpdateSettings(db, func(s *settings.Settings) error {
		return s.AddRule(settings.Rule{Pattern: "go.dev", Name: "Go"})
	}); err != nil {
		t.Fatal(err)
	}
	d.reload()
	s, err := d.cache.Get()
	if err != nil {
		t.Fatal(err)
	}
	if loads != 2 || len(s.CustomRules) != 1 {
		t.Errorf("loads = %d, rules = %v; want 2 loads and the new rule", loads, s.CustomRules)
	}
}
