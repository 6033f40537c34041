// Package fakebackend is an in-process stand-in for the Kamisado session
// server. Routes behave like the real backend unless a canned response is
// installed with Respond.
package fakebackend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Route names accepted by Respond.
const (
	RouteCreate = "create"
	RouteJoin   = "join"
	RouteState  = "state"
	RouteMove   = "move"
)

// DefaultState is returned by the state route of a fresh session.
const DefaultState = `{"turnSide":"white","moves":[],"legalMovesMap":{"a1":["a2","a3"]},"terminal":{"status":"ongoing"},"board":[]}`

// Request is a recorded HTTP request.
type Request struct {
	Route  string
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Response is a canned reply.
type Response struct {
	Status int
	Body   string
}

type seat struct {
	session int
	side    string
}

type Backend struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	nextID   int
	sessions map[int]bool
	tokens   map[string]seat
	canned   map[string]Response
	requests []Request
	sockets  chan *Socket
	accepted []*Socket
	rejectWS int
}

// New starts a backend and registers its shutdown with t.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		sessions: make(map[int]bool),
		tokens:   make(map[string]seat),
		canned:   make(map[string]Response),
		sockets:  make(chan *Socket, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", b.handleCreate)
	mux.HandleFunc("POST /api/sessions/{id}/join", b.handleJoin)
	mux.HandleFunc("GET /api/sessions/{id}/state", b.handleState)
	mux.HandleFunc("POST /api/sessions/{id}/move", b.handleMove)
	mux.HandleFunc("/ws/sessions", b.handleSocket)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) URL() string { return b.server.URL }

func (b *Backend) Close() {
	b.mu.Lock()
	socks := append([]*Socket(nil), b.accepted...)
	b.mu.Unlock()
	for _, s := range socks {
		s.Drop()
	}
	b.server.Close()
}

// Respond installs a canned reply for route, replacing the default behavior.
func (b *Backend) Respond(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canned[route] = Response{Status: status, Body: body}
}

// RejectSockets makes the socket endpoint answer with status instead of upgrading.
func (b *Backend) RejectSockets(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectWS = status
}

// Requests returns the recorded HTTP requests in arrival order.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// LastRequest returns the most recent request, or a zero Request.
func (b *Backend) LastRequest() Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.requests) == 0 {
		return Request{}
	}
	return b.requests[len(b.requests)-1]
}

// WaitSocket blocks until a client socket has been accepted.
func (b *Backend) WaitSocket(ctx context.Context) (*Socket, error) {
	select {
	case s := <-b.sockets:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// record stores r and reports the canned response for route, if any.
func (b *Backend) record(route string, r *http.Request) (Request, Response, bool) {
	body, _ := io.ReadAll(r.Body)
	req := Request{Route: route, Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	resp, ok := b.canned[route]
	return req, resp, ok
}

func (b *Backend) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, canned, ok := b.record(RouteCreate, r)
	if ok {
		writeRaw(w, canned)
		return
	}
	var in struct {
		AnalysisEnabled *bool `json:"analysisEnabled"`
	}
	if err := json.Unmarshal(req.Body, &in); err != nil || in.AnalysisEnabled == nil {
		writeError(w, http.StatusBadRequest, "No analysisEnabled field")
		return
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.sessions[id] = *in.AnalysisEnabled
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "analysisEnabled": *in.AnalysisEnabled})
}

func (b *Backend) handleJoin(w http.ResponseWriter, r *http.Request) {
	req, canned, ok := b.record(RouteJoin, r)
	if ok {
		writeRaw(w, canned)
		return
	}
	id, analysis, found := b.session(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "Session does not exist")
		return
	}
	side := ""
	if len(req.Body) > 0 {
		var in struct {
			Side string `json:"side"`
		}
		if err := json.Unmarshal(req.Body, &in); err != nil || (in.Side != "white" && in.Side != "black") {
			writeError(w, http.StatusBadRequest, "Invalid side")
			return
		}
		side = in.Side
	}

	b.mu.Lock()
	taken := map[string]bool{}
	for _, st := range b.tokens {
		if st.session == id {
			taken[st.side] = true
		}
	}
	if side == "" {
		switch {
		case !taken["white"]:
			side = "white"
		case !taken["black"]:
			side = "black"
		}
	}
	if side == "" || taken[side] {
		b.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "Internal error: No free slots")
		return
	}
	token := uuid.NewString()
	b.tokens[token] = seat{session: id, side: side}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "side": side, "analysisEnabled": analysis})
}

func (b *Backend) handleState(w http.ResponseWriter, r *http.Request) {
	_, canned, ok := b.record(RouteState, r)
	if ok {
		writeRaw(w, canned)
		return
	}
	if _, _, found := b.session(r.PathValue("id")); !found {
		writeError(w, http.StatusBadRequest, "Session does not exist")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, DefaultState)
}

func (b *Backend) handleMove(w http.ResponseWriter, r *http.Request) {
	req, canned, ok := b.record(RouteMove, r)
	if ok {
		writeRaw(w, canned)
		return
	}
	id, _, found := b.session(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusBadRequest, "Session does not exist")
		return
	}
	token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	st, authed := b.tokens[token]
	b.mu.Unlock()
	if !authed || st.session != id {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var in struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(req.Body, &in); err != nil || in.From == "" || in.To == "" {
		writeError(w, http.StatusBadRequest, "No from/to field")
		return
	}
	// the real backend acknowledges with an empty body
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleSocket(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	reject := b.rejectWS
	b.mu.Unlock()
	if reject != 0 {
		http.Error(w, http.StatusText(reject), reject)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s := newSocket(conn, r.URL.Query())
	b.mu.Lock()
	b.accepted = append(b.accepted, s)
	b.mu.Unlock()
	go s.readPump()
	b.sockets <- s
}

func (b *Backend) session(raw string) (int, bool, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	analysis, ok := b.sessions[id]
	return id, analysis, ok
}

func writeRaw(w http.ResponseWriter, resp Response) {
	if resp.Body != "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
