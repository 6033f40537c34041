// Package relay republishes session socket frames to Redis pub/sub so other
// processes can follow a game without holding their own socket.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/kamisado-client/internal/kamiapi"
)

const (
	DefaultPrefix         = "kamisado"
	defaultPublishTimeout = 2 * time.Second
)

type Publisher struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

type Option func(*Publisher)

func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		if s := strings.TrimSpace(prefix); s != "" {
			p.prefix = s
		}
	}
}

// WithPublishTimeout bounds each publish made by Forward.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(rdb *redis.Client, opts ...Option) *Publisher {
	p := &Publisher{rdb: rdb, prefix: DefaultPrefix, timeout: defaultPublishTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromURL connects to a redis:// or rediss:// URL and pings it.
func NewFromURL(ctx context.Context, raw string, opts ...Option) (*Publisher, error) {
	ropts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts...), nil
}

func (p *Publisher) Channel(sessionID kamiapi.SessionID) string {
	return p.prefix + ":session:" + string(sessionID) + ":events"
}

// Publish sends the raw frame on the session channel.
func (p *Publisher) Publish(ctx context.Context, sessionID kamiapi.SessionID, msg kamiapi.Message) error {
	if err := p.rdb.Publish(ctx, p.Channel(sessionID), []byte(msg)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.Channel(sessionID), err)
	}
	return nil
}

// Forward returns a func usable as Callbacks.OnMessage. Failures are logged
// and never stop the socket.
func (p *Publisher) Forward(sessionID kamiapi.SessionID) func(kamiapi.Message) {
	return func(msg kamiapi.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, sessionID, msg); err != nil {
			p.logger.Warn("relay_publish_failed",
				zap.String("session", string(sessionID)),
				zap.Error(err),
			)
		}
	}
}

func (p *Publisher) Close() error { return p.rdb.Close() }
