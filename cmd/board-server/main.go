package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/swapboard/internal/adapter/boardpresenter"
	"github.com/park285/swapboard/internal/board"
	appcfg "github.com/park285/swapboard/internal/config"
	"github.com/park285/swapboard/internal/msgcat"
	"github.com/park285/swapboard/internal/obslog"
	"github.com/park285/swapboard/internal/pvp"
	"github.com/park285/swapboard/internal/server"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("msgcat_init_error", zap.Error(err))
	}
	formatter := boardpresenter.NewFormatter(cat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []server.Option{server.WithFormatter(formatter)}
	var closers []func() error
	if cfg.Mode == appcfg.ModeOnline {
		mgr, cl, err := buildManager(ctx, cfg, formatter)
		if err != nil {
			logger.Fatal("session_manager_init_error", zap.Error(err))
		}
		closers = cl
		opts = append(opts, server.WithManager(mgr))
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()

	srv, err := server.New(cfg, opts...)
	if err != nil {
		logger.Fatal("server_init_error", zap.Error(err))
	}
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen", zap.String("addr", cfg.ListenAddr), zap.String("mode", cfg.Mode))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", zap.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("server_shutdown_error", zap.Error(err))
	}
	logger.Info("server_stopped")
}

// buildManager wires the optional Redis store and Postgres archive, restores
// stored sessions and opens a fresh table when none survived.
func buildManager(ctx context.Context, cfg *appcfg.AppConfig, formatter *boardpresenter.Formatter) (*pvp.Manager, []func() error, error) {
	logger := obslog.L()
	opts := []pvp.Option{pvp.WithFormatter(formatter), pvp.WithSecretLength(cfg.SeatSecretLength)}
	var closers []func() error

	if cfg.RedisURL != "" {
		rdb, err := pvp.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, rdb.Close)
		opts = append(opts, pvp.WithStore(pvp.NewRedisStore(rdb, cfg.SessionTTL)))
	} else {
		logger.Warn("session_store_memory_only")
	}
	mgr := pvp.NewManager(opts...)

	if cfg.DatabaseURL != "" {
		repo, err := pvp.NewRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, repo.Close)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, closers, err
		}
		mgr.AttachRepository(repo)
	}

	restored, err := mgr.Restore(ctx)
	if err != nil {
		return nil, closers, err
	}
	if restored > 0 {
		logger.Info("session_restore", zap.Int("sessions", restored))
		return mgr, closers, nil
	}

	created, err := mgr.CreateSession(ctx, cfg.Ruleset)
	if err != nil {
		return nil, closers, err
	}
	logger.Info("session_create_seeded", zap.String("session_id", created.SessionID), zap.String("ruleset", created.Ruleset))
	printSeatSecrets(os.Stderr, created)
	return mgr, closers, nil
}

// printSeatSecrets hands the plain passwords to the operator's terminal.
// They never go to the log sink.
func printSeatSecrets(w io.Writer, created *pvp.Created) {
	fmt.Fprintf(w, "session %s (%s)\n  blue password: %s\n  red password:  %s\n",
		created.SessionID, created.Ruleset, created.Secret(board.Blue), created.Secret(board.Red))
}
