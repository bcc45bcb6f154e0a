package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cfgpkg "github.com/ChitLaq/ChitLaq-sub005/internal/config"
	"github.com/ChitLaq/ChitLaq-sub005/internal/runtime"
	httpserver "github.com/ChitLaq/ChitLaq-sub005/internal/server/http"
	logpkg "github.com/ChitLaq/ChitLaq-sub005/pkg/log"
)

// Options for starting the server process.
type Options struct {
	Config cfgpkg.Config
}

// Run starts the engine and its HTTP server and blocks until ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	// layer a local signal context over the provided one so direct callers
	// still observe SIGINT/SIGTERM
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	cfg.DataDir = filepath.Join(cfg.DataDir, "store")

	logger := newProcessLogger(cfg)

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Start(sctx); err != nil {
		return err
	}
	defer rt.Stop()

	logger.Info("starting server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("level", cfg.LogLevel),
		logpkg.Str("format", cfg.LogFormat),
		logpkg.Bool("trusted_mode", cfg.JWTSecret == ""))

	hsrv := httpserver.New(rt, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- hsrv.ListenAndServe(sctx, cfg.HTTPAddr) }()

	select {
	case <-sctx.Done():
		hsrv.Close()
		<-errCh
		return nil
	case err := <-errCh:
		hsrv.Close()
		return err
	}
}

func newProcessLogger(cfg cfgpkg.Config) logpkg.Logger {
	level, err := logpkg.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logpkg.InfoLevel
	}
	format := cfg.LogFormat
	if format == "" {
		format = logpkg.FormatText
	}
	return logpkg.NewLogger(logpkg.WithLevel(level), logpkg.WithFormat(format))
}
