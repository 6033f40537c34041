package fakebackend

import (
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the server side of one accepted subscription.
type Socket struct {
	conn    *websocket.Conn
	query   url.Values
	writeMu sync.Mutex

	received atomic.Int64
	closed   chan struct{}
	once     sync.Once
}

func newSocket(conn *websocket.Conn, query url.Values) *Socket {
	return &Socket{conn: conn, query: query, closed: make(chan struct{})}
}

// readPump drains client frames so control frames, including the close
// handshake, get processed.
func (s *Socket) readPump() {
	defer s.finish()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
		s.received.Add(1)
	}
}

func (s *Socket) finish() {
	s.once.Do(func() {
		_ = s.conn.Close()
		close(s.closed)
	})
}

// SendText writes a text frame verbatim.
func (s *Socket) SendText(msg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// SendBinary writes a binary frame.
func (s *Socket) SendBinary(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, msg)
}

// CloseWith starts a close handshake from the server side.
func (s *Socket) CloseWith(code int, reason string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// Query is the handshake query string.
func (s *Socket) Query() url.Values { return s.query }

// Drop cuts the TCP connection without a close frame.
func (s *Socket) Drop() { s.finish() }

// Closed is closed once the connection is gone.
func (s *Socket) Closed() <-chan struct{} { return s.closed }

// Received counts data frames sent by the client.
func (s *Socket) Received() int64 { return s.received.Load() }
