package kamiapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Callbacks receive socket events. Any of them may be nil. All callbacks
// of one socket run on that socket's read goroutine, in arrival order.
type Callbacks struct {
	OnMessage func(msg Message)
	OnOpen    func()
	OnClose   func(ev CloseEvent)
	OnError   func(err error)
}

// CloseEvent describes how the connection ended. Code is the websocket
// close status; 1006 means the connection dropped without a close frame.
type CloseEvent struct {
	Code   int
	Reason string
}

// SessionSocket is the handle of one live session subscription. There is
// no reconnection: once closed, open a new socket.
type SessionSocket struct {
	id        string
	url       string
	cb        Callbacks
	readLimit int64
	logger    *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// held across the closed check and the OnOpen/OnMessage call
	dispatchMu sync.Mutex
	inCallback atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	openOnce  sync.Once
	errOnce   sync.Once
	closeOnce sync.Once
}

// OpenSessionSocket subscribes to live events of sessionID. It never
// fails synchronously: the dial runs in the background under ctx and
// failures arrive through OnError followed by OnClose. The token, when
// present, travels in the query string since the handshake cannot carry
// custom headers in browsers and the backend accepts both.
func (c *Client) OpenSessionSocket(ctx context.Context, sessionID SessionID, token string, cb Callbacks) *SessionSocket {
	s := &SessionSocket{
		id:        uuid.NewString(),
		url:       c.socketURL(sessionID, token),
		cb:        cb,
		readLimit: c.readLimit,
		logger:    c.logger.With(zap.String("session_id", string(sessionID))),
		done:      make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.run(ctx)
	return s
}

func (c *Client) socketURL(sessionID SessionID, token string) string {
	u := c.wsURL + "/ws/sessions"
	if token != "" {
		u += "?token=" + url.QueryEscape(token) + "&sid=" + url.QueryEscape(string(sessionID))
	}
	return u
}

// Close ends the subscription. After Close returns no OnOpen or OnMessage
// call starts; a callback already running finishes normally. OnClose
// still fires once. Safe to call more than once and from callbacks.
func (s *SessionSocket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	// Wait out a dispatch that passed its closed check. Skipped while a
	// callback runs so Close stays callable from inside one.
	if !s.inCallback.Load() {
		s.dispatchMu.Lock()
		s.dispatchMu.Unlock()
	}

	if conn != nil {
		// the peer may already be gone; nothing useful to report then
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	s.cancel()
	return nil
}

// Done is closed once the connection goroutine has exited and OnClose has run.
func (s *SessionSocket) Done() <-chan struct{} { return s.done }

// ID is a client-side identifier used in logs.
func (s *SessionSocket) ID() string { return s.id }

func (s *SessionSocket) run(dialCtx context.Context) {
	defer close(s.done)
	defer s.cancel()

	dctx, cancelDial := context.WithCancel(dialCtx)
	stop := context.AfterFunc(s.ctx, cancelDial)
	conn, _, err := websocket.Dial(dctx, s.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	stop()
	cancelDial()
	if err != nil {
		s.logger.Debug("session_socket_dial_failed", zap.String("socket_id", s.id), zap.Error(err))
		if s.isClosed() {
			s.fireClose(CloseEvent{Code: int(websocket.StatusNormalClosure)})
			return
		}
		s.fireError(err)
		s.fireClose(CloseEvent{Code: int(websocket.StatusAbnormalClosure)})
		return
	}
	conn.SetReadLimit(s.readLimit)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.fireClose(CloseEvent{Code: int(websocket.StatusNormalClosure)})
		return
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Debug("session_socket_open", zap.String("socket_id", s.id))
	if s.cb.OnOpen != nil {
		s.dispatch(func() { s.openOnce.Do(s.cb.OnOpen) })
	}

	s.listen(conn)
}

func (s *SessionSocket) listen(conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(s.ctx)
		if err != nil {
			s.finish(err)
			return
		}
		// Malformed or binary frames are dropped without a trace.
		if typ != websocket.MessageText || !json.Valid(data) {
			continue
		}
		if s.cb.OnMessage != nil {
			msg := Message(data)
			s.dispatch(func() { s.cb.OnMessage(msg) })
		}
	}
}

// dispatch runs fn on the read goroutine unless the socket is closed.
func (s *SessionSocket) dispatch(fn func()) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if s.isClosed() {
		return
	}
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	fn()
}

func (s *SessionSocket) finish(err error) {
	ev := CloseEvent{Code: int(websocket.StatusAbnormalClosure)}
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		ev.Code = int(ce.Code)
		ev.Reason = ce.Reason
	} else if !s.isClosed() {
		s.fireError(err)
	} else {
		ev.Code = int(websocket.StatusNormalClosure)
	}
	s.logger.Debug("session_socket_closed",
		zap.String("socket_id", s.id),
		zap.Int("code", ev.Code),
		zap.String("reason", ev.Reason),
	)
	s.fireClose(ev)
}

func (s *SessionSocket) fireError(err error) {
	if s.cb.OnError == nil {
		return
	}
	s.errOnce.Do(func() { s.cb.OnError(err) })
}

func (s *SessionSocket) fireClose(ev CloseEvent) {
	if s.cb.OnClose == nil {
		return
	}
	s.closeOnce.Do(func() { s.cb.OnClose(ev) })
}

func (s *SessionSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
