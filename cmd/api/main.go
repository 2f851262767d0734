package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/config"
	"github.com/guardwatch/guardwatch/internal/countdown"
	"github.com/guardwatch/guardwatch/internal/guard"
	"github.com/guardwatch/guardwatch/internal/httpapi"
	apimw "github.com/guardwatch/guardwatch/internal/httpapi/middleware"
	"github.com/guardwatch/guardwatch/internal/logging"
	"github.com/guardwatch/guardwatch/internal/notify"
	"github.com/guardwatch/guardwatch/internal/protocol"
	"github.com/guardwatch/guardwatch/internal/repo"
	"github.com/guardwatch/guardwatch/internal/repo/memory"
	"github.com/guardwatch/guardwatch/internal/repo/postgres"
	"github.com/guardwatch/guardwatch/internal/repo/retry"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.System()

	var (
		alerts repo.AlertStore
		confs  repo.ConfirmationStore
		users  repo.UserStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, clk, cfg.CancelWindow, logger)
		if err != nil {
			logger.Fatal("postgres_connect", zap.Error(err))
		}
		defer pg.Close()
		alerts, confs, users = pg, pg, pg
	} else {
		mem := memory.New(clk, cfg.CancelWindow)
		alerts, confs, users = mem, mem, mem
		logger.Warn("using_memory_store")
	}

	alerts = &retry.Alerts{Inner: alerts, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	confs = &retry.Confirmations{Inner: confs, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}

	var sink notify.Notifier = notify.Noop{}
	if push := notify.NewPush(cfg.PushWebhook, cfg.PushAPIKey, users); push != nil {
		sink = push
	} else {
		logger.Warn("push_disabled")
	}
	dispatcher := notify.NewAsync(sink, cfg.NotifyWorkers, cfg.NotifyQueue, logger)
	defer dispatcher.Close()

	machine := protocol.New(alerts, confs, users, guard.New(users), clk, dispatcher, cfg.CancelWindow, logger)
	engine := countdown.New(clk, cfg.CancelWindow)
	api := httpapi.NewServer(logger, alerts, users, machine, engine)

	keys := apimw.Keys{Device: cfg.DeviceAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.Router(keys, cfg.DeviceRPM, cfg.DeviceBurst, cfg.AdminRPM, cfg.AdminBurst),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.Duration("cancel_window", cfg.CancelWindow),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("listen", zap.Error(err))
	}
}
