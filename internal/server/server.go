package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lotas/tabgrouper/internal/applog"
	"nhooyr.io/websocket"
)

var (
	// ErrNotConnected is returned when no extension is connected.
	ErrNotConnected = errors.New("extension not connected")
	// ErrDisconnected is returned when the extension goes away while a
	// command is waiting for its response.
	ErrDisconnected = errors.New("extension disconnected")
)

// CommandError is a failure reported by the extension for one command,
// e.g. "No tab with id: 12" or "Tabs cannot be edited right now".
type CommandError struct {
	Action  string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// DefaultCallTimeout bounds how long a command waits for its response.
const DefaultCallTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithCallTimeout sets the per-command response timeout. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Server) { s.callTimeout = d }
}

// WithEventBuffer sets how many unhandled events are queued before new
// ones are dropped.
func WithEventBuffer(n int) Option {
	return func(s *Server) { s.eventBuffer = n }
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port        int
	callTimeout time.Duration
	eventBuffer int
	events      chan IncomingMsg

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	done    chan struct{} // closed when conn goes away
	pending map[string]chan IncomingMsg
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int, opts ...Option) *Server {
	s := &Server{
		port:        port,
		callTimeout: DefaultCallTimeout,
		eventBuffer: 256,
		pending:     make(map[string]chan IncomingMsg),
	}
	for _, o := range opts {
		o(s)
	}
	s.events = make(chan IncomingMsg, s.eventBuffer)
	return s
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Events returns the channel of events from the extension. Command
// responses are not delivered here.
func (s *Server) Events() <-chan IncomingMsg {
	return s.events
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send writes a message to the connected extension without waiting for a
// response.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	applog.Debug("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Call sends a command and waits for the extension's response. The
// response's result payload is returned as raw JSON.
func (s *Server) Call(ctx context.Context, msg OutgoingMsg) (json.RawMessage, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	msg.ID = uuid.NewString()
	ch := make(chan IncomingMsg, 1)

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	done := s.done
	s.pending[msg.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	}()

	if err := s.Send(msg); err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Action, err)
	}

	select {
	case resp := <-ch:
		if resp.OK != nil && !*resp.OK {
			return nil, &CommandError{Action: msg.Action, Message: resp.Error}
		}
		return resp.Result, nil
	case <-done:
		return nil, fmt.Errorf("%s: %w", msg.Action, ErrDisconnected)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

// Reply answers an event that carried an id, such as organizeAll.
func (s *Server) Reply(id, status string) error {
	return s.Send(OutgoingMsg{ID: id, Action: "reply", Status: status})
}

// route delivers a response to its waiting Call. It reports false when
// nobody is waiting for the id.
func (s *Server) route(msg IncomingMsg) bool {
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // windows.getAll with many tabs can be large

		ctx := r.Context()
		done := make(chan struct{})
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.done = done
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
				s.done = nil
			}
			s.mu.Unlock()
			close(done)
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			if msg.Type == typeResponse || (msg.Type == "" && msg.ID != "") {
				if !s.route(msg) {
					applog.Debug("ws.response.orphan", "id", msg.ID)
				}
				continue
			}
			applog.Debug("ws.recv", "type", msg.Type)
			select {
			case s.events <- msg:
			default:
				applog.Info("ws.event.dropped", "type", msg.Type, "id", msg.ID)
				// The sender is waiting on a reply it would otherwise never get.
				if msg.ID != "" {
					if err := s.Reply(msg.ID, "error"); err != nil {
						applog.Error("ws.event.dropped.reply", err, "id", msg.ID)
					}
				}
			}
		}
	})
}

// ListenAndServe serves the WebSocket endpoint plus any extra routes on
// 127.0.0.1 at the configured port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, extra map[string]http.Handler) error {
	mux := http.NewServeMux()
	for pattern, h := range extra {
		mux.Handle(pattern, h)
	}
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
