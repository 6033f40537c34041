package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/park285/kamisado-client/internal/config"
	"github.com/park285/kamisado-client/internal/kamiapi"
	"github.com/park285/kamisado-client/internal/obslog"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf(".env load error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("kamictl", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "YAML config file (default $"+config.EnvConfigFile+")")
	baseURL := global.String("base-url", "", "backend origin, overrides config")
	global.Usage = func() { usage(stderr, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr, global)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}

	if err := obslog.Init(cfg.Log); err != nil {
		fmt.Fprintf(stderr, "log init error: %v\n", err)
		return 1
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	client := kamiapi.NewClient(cfg.BaseURL, clientOptions(cfg, logger)...)
	a := &app{
		cfg:       cfg,
		transport: client,
		sockets:   client,
		stdout:    stdout,
		stderr:    stderr,
		logger:    logger,
	}

	if err := a.dispatch(ctx, rest[0], rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "kamictl %s: %v\n", rest[0], err)
		return 1
	}
	return 0
}

func clientOptions(cfg *config.AppConfig, logger *zap.Logger) []kamiapi.Option {
	return []kamiapi.Option{
		kamiapi.WithLogger(logger),
		kamiapi.WithTimeout(cfg.HTTPTimeout),
		kamiapi.WithMaxConnsPerHost(cfg.MaxConnsPerHost),
		kamiapi.WithWebSocketURL(cfg.WSURL),
		kamiapi.WithReadLimit(cfg.WSReadLimit),
	}
}

func usage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintln(w, "usage: kamictl [-config file] [-base-url url] <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  create  [-analysis]")
	fmt.Fprintln(w, "  join    -session ID [-side white|black]")
	fmt.Fprintln(w, "  state   -session ID [-token T] [-summary]")
	fmt.Fprintln(w, "  move    -session ID -token T -from a1 -to a2")
	fmt.Fprintln(w, "  watch   -session ID [-token T] [-relay]")
	fmt.Fprintln(w, "")
	global.PrintDefaults()
}
