package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/kamisado-client/internal/config"
	"github.com/park285/kamisado-client/internal/testutil/fakebackend"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func quietEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "false")
}

func runCLI(ctx context.Context, b *fakebackend.Backend, args ...string) result {
	var stdout, stderr bytes.Buffer
	full := append([]string{"-base-url", b.URL()}, args...)
	code := run(ctx, full, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestCreateJoinMoveState(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)
	ctx := context.Background()

	res := runCLI(ctx, b, "create", "-analysis")
	require.Equal(t, 0, res.code, res.stderr)
	assert.JSONEq(t, `{"sessionId":"0","analysisEnabled":true}`, res.stdout)

	res = runCLI(ctx, b, "join", "-session", "0", "-side", "b")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, `"side":"black"`)
	assert.JSONEq(t, `{"side":"black"}`, string(b.LastRequest().Body))
	token := strings.TrimSpace(strings.Split(strings.Split(res.stdout, `"token":"`)[1], `"`)[0])
	require.NotEmpty(t, token)

	res = runCLI(ctx, b, "move", "-session", "0", "-token", token, "-from", "A1", "-to", "a2")
	require.Equal(t, 0, res.code, res.stderr)
	assert.JSONEq(t, `{"ok":true}`, res.stdout)
	assert.JSONEq(t, `{"from":"a1","to":"a2"}`, string(b.LastRequest().Body))

	res = runCLI(ctx, b, "state", "-session", "0")
	require.Equal(t, 0, res.code, res.stderr)
	assert.JSONEq(t, fakebackend.DefaultState, res.stdout)

	res = runCLI(ctx, b, "state", "-session", "0", "-summary")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "turn: white\n")
	assert.Contains(t, res.stdout, "status: ongoing\n")
	assert.Contains(t, res.stdout, "legal moves: 2\n")
}

func TestMoveRejectsBadSquareLocally(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)

	res := runCLI(context.Background(), b, "move", "-session", "0", "-token", "t", "-from", "z9", "-to", "a2")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid square")
	assert.Empty(t, b.Requests())
}

func TestStatusErrorExitCode(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)

	res := runCLI(context.Background(), b, "join", "-session", "99")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "joinSession failed: 404")
	assert.Empty(t, res.stdout)
}

func TestUsageErrors(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)
	ctx := context.Background()

	res := runCLI(ctx, b)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "usage: kamictl")

	res = runCLI(ctx, b, "dance")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unknown command "dance"`)

	res = runCLI(ctx, b, "state")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "-session is required")

	res = runCLI(ctx, b, "join", "-session", "0", "-side", "green")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "invalid side")

	res = runCLI(ctx, b, "create", "-h")
	assert.Equal(t, 0, res.code)
}

func TestWatchStopsOnTerminal(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan result, 1)
	go func() { done <- runCLI(ctx, b, "watch", "-session", "4", "-token", "tok") }()

	srv, err := b.WaitSocket(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", srv.Query().Get("token"))
	assert.Equal(t, "4", srv.Query().Get("sid"))

	require.NoError(t, srv.SendText(`{"type":"ready"}`))
	require.NoError(t, srv.SendText(`{"type":"terminal","payload":{"status":"win","winner":"black"}}`))

	select {
	case res := <-done:
		require.Equal(t, 0, res.code, res.stderr)
		lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
		require.Len(t, lines, 2)
		assert.JSONEq(t, `{"type":"ready"}`, lines[0])
	case <-ctx.Done():
		t.Fatal("watch did not exit after terminal frame")
	}
}

func TestWatchExitsOnCancel(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan result, 1)
	go func() { done <- runCLI(ctx, b, "watch", "-session", "4") }()

	wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wcancel()
	_, err := b.WaitSocket(wctx)
	require.NoError(t, err)
	cancel()

	select {
	case res := <-done:
		assert.Equal(t, 0, res.code, res.stderr)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit on cancel")
	}
}

func TestWatchReportsDialFailure(t *testing.T) {
	quietEnv(t)
	b := fakebackend.New(t)
	b.RejectSockets(401)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := runCLI(ctx, b, "watch", "-session", "4", "-token", "bad")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "socket closed (1006)")
}

func TestWatchRelay(t *testing.T) {
	quietEnv(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr()+"/0")
	t.Setenv("KAMISADO_RELAY_PREFIX", "test")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sub := rdb.Subscribe(context.Background(), "test:session:4:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	b := fakebackend.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan result, 1)
	go func() { done <- runCLI(ctx, b, "watch", "-session", "4", "-relay") }()

	srv, err := b.WaitSocket(ctx)
	require.NoError(t, err)
	frame := `{"type":"state","payload":{"terminal":{"status":"draw"}}}`
	require.NoError(t, srv.SendText(frame))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, frame, msg.Payload)

	res := <-done
	assert.Equal(t, 0, res.code, res.stderr)
}

func TestWatchRelayNeedsRedisURL(t *testing.T) {
	quietEnv(t)
	t.Setenv("REDIS_URL", "")
	b := fakebackend.New(t)

	res := runCLI(context.Background(), b, "watch", "-session", "4", "-relay")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "REDIS_URL")
}
