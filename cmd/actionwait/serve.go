package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/actionwait/internal/artifact"
	"github.com/rendis/actionwait/internal/host"
	"github.com/rendis/actionwait/internal/httpapi"
	"github.com/rendis/actionwait/internal/logging"
	"github.com/rendis/actionwait/internal/store"
	"github.com/rendis/actionwait/internal/streaming"
	"github.com/rendis/actionwait/internal/validation"
	"github.com/rendis/actionwait/pkg/mcp"
)

func runServe() {
	if err := serve(loadConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components of a running server.
type app struct {
	cfg       Config
	level     *slog.LevelVar
	logger    *slog.Logger
	store     *store.LibSQLStore
	hub       *streaming.MemoryHub
	host      *host.Host
	validator *validation.BlockValidator
	artifacts *artifact.Registry
	swapper   *handlerSwapper
}

func newApp(ctx context.Context, cfg Config) (*app, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout, _ := cfg.timeout()

	level := new(slog.LevelVar)
	level.Set(logging.ParseLevel(cfg.LogLevel))
	logger := logging.NewLeveledLogger(os.Stderr, level)

	dbPath := strings.TrimPrefix(cfg.DBPath, "file:")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + dbPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	hub := streaming.NewMemoryHub()
	artifacts := artifact.NewRegistry()
	h, err := host.New(st, host.Config{
		BaseURL:    cfg.BaseURL,
		Hub:        hub,
		Logger:     logger,
		OnResolved: func(sp *store.Suspension) { artifacts.Evict(sp.CorrelationID) },
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	validator, err := validation.NewBlockValidator()
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		level:     level,
		logger:    logger,
		store:     st,
		hub:       hub,
		host:      h,
		validator: validator,
		artifacts: artifacts,
	}
	a.swapper = newHandlerSwapper(a.handler(timeout))
	return a, nil
}

// handler builds the HTTP mux for the current configuration.
func (a *app) handler(timeout time.Duration) http.Handler {
	var hub streaming.EventHub
	if a.cfg.Events {
		hub = a.hub
	}
	return httpapi.NewServer(httpapi.Deps{
		Host:           a.host,
		Store:          a.store,
		Hub:            hub,
		Validator:      a.validator,
		Logger:         a.logger,
		DefaultTimeout: timeout,
		Artifacts:      a.artifacts,
	}).Handler()
}

// reload applies the hot-reloadable part of next and reports the rest.
func (a *app) reload(next Config) {
	d := diffConfigs(a.cfg, next)
	if d.LogLevelChanged {
		a.level.Set(logging.ParseLevel(next.LogLevel))
		a.cfg.LogLevel = next.LogLevel
		a.logger.Info("log level changed", slog.String("level", next.LogLevel))
	}
	if d.EventsChanged {
		a.cfg.Events = next.Events
		timeout, _ := a.cfg.timeout()
		gen := a.swapper.Swap(a.handler(timeout))
		a.logger.Info("event stream toggled",
			slog.Bool("enabled", next.Events),
			slog.Uint64("handler_generation", gen),
		)
	}
	if len(d.RestartNeeded) > 0 {
		a.logger.Warn("configuration changes need a restart", slog.Any("fields", d.RestartNeeded))
	}
}

func serve(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.store.Close()
	slog.SetDefault(a.logger)

	sweeper, err := host.NewSweeper(a.host, cfg.SweepSchedule, a.logger)
	if err != nil {
		return err
	}
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.swapper,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.logger.Info("actionwait listening",
		slog.String("addr", cfg.ListenAddr),
		slog.String("base_url", cfg.BaseURL),
		slog.String("version", version),
	)

	if cfg.MCP {
		mcpSrv := mcp.NewWaitServer(mcp.WaitServerDeps{Host: a.host, Hub: a.hub, Logger: a.logger})
		go func() {
			if err := mcpSrv.Serve(ctx); err != nil {
				a.logger.Error("mcp server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if err := os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		a.logger.Warn("cannot write pid file", slog.String("error", err.Error()))
	}
	defer os.Remove(pidPath())

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			a.reload(loadConfig())
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			a.logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		}
	}
}
