package kamiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/kamisado-client/internal/kamisado"
)

// HeaderRequestID correlates client logs with backend logs.
const HeaderRequestID = "X-Request-Id"

// Client talks to the session backend. It is stateless apart from its
// configuration and is safe for concurrent use.
type Client struct {
	baseURL string
	wsURL   string
	http    *fasthttp.Client
	logger  *zap.Logger

	// zero means no client-side deadline
	timeout   time.Duration
	readLimit int64
}

type Option func(*Client)

// WithTimeout bounds each request. Off by default; a ctx deadline applies either way.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.http.MaxConnsPerHost = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWebSocketURL overrides the socket origin, which otherwise follows the base URL.
func WithWebSocketURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.wsURL = strings.TrimRight(strings.TrimSpace(u), "/")
		}
	}
}

// WithReadLimit caps the size of a single inbound socket frame.
func WithReadLimit(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:      &fasthttp.Client{MaxConnsPerHost: 64},
		logger:    zap.NewNop(),
		readLimit: 1 << 20,
	}
	c.wsURL = socketOrigin(c.baseURL)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession asks the backend for a new session.
func (c *Client) CreateSession(ctx context.Context, analysisEnabled bool) (*SessionDescriptor, error) {
	body, err := c.do(ctx, OpCreateSession, fasthttp.MethodPost, "/api/sessions", "", createSessionRequest{AnalysisEnabled: analysisEnabled})
	if err != nil {
		return nil, err
	}
	out := SessionDescriptor{Raw: body}
	if err := c.decodeBody(OpCreateSession, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinSession joins sessionID. With SideUnspecified no body is sent and
// the backend assigns a free side.
func (c *Client) JoinSession(ctx context.Context, sessionID SessionID, side kamisado.Side) (*JoinResult, error) {
	var in any
	if side != kamisado.SideUnspecified {
		in = joinRequest{Side: side}
	}
	body, err := c.do(ctx, OpJoinSession, fasthttp.MethodPost, sessionPath(sessionID, "join"), "", in)
	if err != nil {
		return nil, err
	}
	out := JoinResult{Raw: body}
	if err := c.decodeBody(OpJoinSession, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchState reads the current state. An empty token makes a spectator read.
func (c *Client) FetchState(ctx context.Context, sessionID SessionID, token string) (GameState, error) {
	body, err := c.do(ctx, OpFetchState, fasthttp.MethodGet, sessionPath(sessionID, "state"), token, nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: decode response: %w", OpFetchState, ErrInvalidJSON)
	}
	return GameState(body), nil
}

// SendMove submits a move. Legality is decided by the backend only.
// An empty success body is an acknowledgement and yields a nil state.
func (c *Client) SendMove(ctx context.Context, sessionID SessionID, token string, from, to kamisado.Square) (GameState, error) {
	body, err := c.do(ctx, OpSendMove, fasthttp.MethodPost, sessionPath(sessionID, "move"), token, MoveRequest{From: from, To: to})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: decode response: %w", OpSendMove, ErrInvalidJSON)
	}
	return GameState(body), nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	reqID := uuid.NewString()
	req.Header.SetMethod(method)
	req.Header.SetNoDefaultContentType(true)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.Header.Set(HeaderRequestID, reqID)
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	start := time.Now()
	var err error
	if deadline, ok := c.deadline(ctx); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.Do(req, resp)
	}
	if err != nil {
		c.logger.Debug("kamiapi_request_failed",
			zap.String("op", op),
			zap.String("request_id", reqID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := resp.StatusCode()
	c.logger.Debug("kamiapi_request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
	if status < 200 || status >= 300 {
		return nil, &StatusError{Op: op, Status: status}
	}

	// resp is pooled; the body must outlive it
	return append([]byte(nil), resp.Body()...), nil
}

// decodeBody requires valid JSON and fills v as far as the body allows.
// Fields sent with an unexpected type stay zero; callers keep the raw body.
func (c *Client) decodeBody(op string, body []byte, v any) error {
	if !json.Valid(body) {
		return fmt.Errorf("%s: decode response: %w", op, ErrInvalidJSON)
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Debug("kamiapi_partial_decode", zap.String("op", op), zap.Error(err))
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) (time.Time, bool) {
	dl, ok := ctx.Deadline()
	if c.timeout > 0 {
		clientDL := time.Now().Add(c.timeout)
		if !ok || clientDL.Before(dl) {
			return clientDL, true
		}
	}
	return dl, ok
}

func sessionPath(id SessionID, action string) string {
	return "/api/sessions/" + url.PathEscape(string(id)) + "/" + action
}

// socketOrigin maps an http(s) origin to its ws(s) counterpart.
func socketOrigin(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
