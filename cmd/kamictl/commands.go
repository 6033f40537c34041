package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/kamisado-client/internal/config"
	"github.com/park285/kamisado-client/internal/kamiapi"
	"github.com/park285/kamisado-client/internal/kamisado"
	"github.com/park285/kamisado-client/internal/relay"
)

var errSessionRequired = errors.New("-session is required")

type socketOpener interface {
	OpenSessionSocket(ctx context.Context, sessionID kamiapi.SessionID, token string, cb kamiapi.Callbacks) *kamiapi.SessionSocket
}

type app struct {
	cfg       *config.AppConfig
	transport kamiapi.Transport
	sockets   socketOpener
	stdout    io.Writer
	stderr    io.Writer
	logger    *zap.Logger
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	switch name {
	case "create":
		return a.create(ctx, args)
	case "join":
		return a.join(ctx, args)
	case "state":
		return a.state(ctx, args)
	case "move":
		return a.move(ctx, args)
	case "watch":
		return a.watch(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := a.flags("create")
	analysis := fs.Bool("analysis", false, "enable engine analysis frames")
	if err := fs.Parse(args); err != nil {
		return err
	}
	desc, err := a.transport.CreateSession(ctx, *analysis)
	if err != nil {
		return err
	}
	return a.printJSON(desc)
}

func (a *app) join(ctx context.Context, args []string) error {
	fs := a.flags("join")
	session := fs.String("session", "", "session id")
	sideFlag := fs.String("side", "", "preferred side: white or black")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *session == "" {
		return errSessionRequired
	}
	side, err := kamisado.ParseSide(*sideFlag)
	if err != nil {
		return err
	}
	res, err := a.transport.JoinSession(ctx, kamiapi.SessionID(*session), side)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

func (a *app) state(ctx context.Context, args []string) error {
	fs := a.flags("state")
	session := fs.String("session", "", "session id")
	token := fs.String("token", "", "player token")
	summary := fs.Bool("summary", false, "print a short human-readable summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *session == "" {
		return errSessionRequired
	}
	raw, err := a.transport.FetchState(ctx, kamiapi.SessionID(*session), *token)
	if err != nil {
		return err
	}
	if !*summary {
		return a.printRaw(raw)
	}
	st, err := kamisado.DecodeState(raw)
	if err != nil {
		return err
	}
	a.printSummary(st)
	return nil
}

func (a *app) move(ctx context.Context, args []string) error {
	fs := a.flags("move")
	session := fs.String("session", "", "session id")
	token := fs.String("token", "", "player token")
	fromFlag := fs.String("from", "", "origin square, e.g. a1")
	toFlag := fs.String("to", "", "target square, e.g. a2")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *session == "" {
		return errSessionRequired
	}
	from, err := kamisado.ParseSquare(*fromFlag)
	if err != nil {
		return fmt.Errorf("-from: %w", err)
	}
	to, err := kamisado.ParseSquare(*toFlag)
	if err != nil {
		return fmt.Errorf("-to: %w", err)
	}
	res, err := a.transport.SendMove(ctx, kamiapi.SessionID(*session), *token, from, to)
	if err != nil {
		return err
	}
	if res == nil {
		return a.printRaw(json.RawMessage(`{"ok":true}`))
	}
	return a.printRaw(res)
}

func (a *app) watch(ctx context.Context, args []string) error {
	fs := a.flags("watch")
	session := fs.String("session", "", "session id")
	token := fs.String("token", "", "player token")
	useRelay := fs.Bool("relay", false, "also publish frames to Redis")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *session == "" {
		return errSessionRequired
	}
	sid := kamiapi.SessionID(*session)

	var forward func(kamiapi.Message)
	if *useRelay {
		if a.cfg.RedisURL == "" {
			return errors.New("-relay needs REDIS_URL")
		}
		pub, err := relay.NewFromURL(ctx, a.cfg.RedisURL,
			relay.WithPrefix(a.cfg.RelayPrefix),
			relay.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		forward = pub.Forward(sid)
	}

	var (
		mu       sync.Mutex
		firstErr error
		closeEv  kamiapi.CloseEvent
	)
	finished := make(chan struct{})
	var finishOnce sync.Once

	sock := a.sockets.OpenSessionSocket(ctx, sid, *token, kamiapi.Callbacks{
		OnOpen: func() {
			a.logger.Info("watch_open", zap.String("session", *session))
		},
		OnMessage: func(msg kamiapi.Message) {
			_ = a.printRaw(msg)
			if forward != nil {
				forward(msg)
			}
			ev, err := kamiapi.ParseEvent(msg)
			if err != nil {
				return
			}
			if out, over := kamiapi.Outcome(ev); over {
				a.logger.Info("watch_terminal", zap.String("status", out.Status), zap.String("winner", out.Winner.String()))
				finishOnce.Do(func() { close(finished) })
			}
		},
		OnError: func(err error) {
			a.logger.Warn("watch_socket_error", zap.Error(err))
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		},
		OnClose: func(ev kamiapi.CloseEvent) {
			mu.Lock()
			closeEv = ev
			mu.Unlock()
		},
	})

	terminal := false
	select {
	case <-ctx.Done():
	case <-sock.Done():
	case <-finished:
		terminal = true
	}
	_ = sock.Close()
	<-sock.Done()

	mu.Lock()
	defer mu.Unlock()
	if terminal || ctx.Err() != nil || firstErr == nil {
		return nil
	}
	return fmt.Errorf("socket closed (%d): %w", closeEv.Code, firstErr)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	return enc.Encode(v)
}

func (a *app) printRaw(raw json.RawMessage) error {
	_, err := fmt.Fprintf(a.stdout, "%s\n", raw)
	return err
}

func (a *app) printSummary(st *kamisado.State) {
	var b strings.Builder
	fmt.Fprintf(&b, "turn: %s\n", orDash(string(st.TurnSide)))
	status := st.Terminal.Status
	if st.Terminal.Winner != kamisado.SideUnspecified {
		status += " (" + string(st.Terminal.Winner) + ")"
	}
	fmt.Fprintf(&b, "status: %s\n", orDash(status))
	if st.LastMove != nil {
		fmt.Fprintf(&b, "last move: %s-%s\n", st.LastMove.From, st.LastMove.To)
	} else {
		b.WriteString("last move: -\n")
	}
	fmt.Fprintf(&b, "moves played: %d\n", len(st.Moves))
	fmt.Fprintf(&b, "legal moves: %d\n", st.LegalMoveCount())
	_, _ = io.WriteString(a.stdout, b.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
