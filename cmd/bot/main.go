package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"notibot/internal/config"
	"notibot/internal/scheduler"
	"notibot/internal/storage"
	"notibot/internal/summary"
	"notibot/internal/transport/telegram"
	"notibot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, closeLogs, err := logx.Setup(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}
	defer func() { _ = closeLogs() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeoutDuration(),
	}, log.With(logx.String("component", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	tg, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeoutDuration(),
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram client: %w", err)
	}

	sched := scheduler.New(scheduler.Config{
		DefaultChatID:   cfg.Telegram.DefaultChatID,
		Location:        loc,
		DispatchTimeout: cfg.Scheduler.DispatchTimeoutDuration(),
	}, store, tg, log.With(logx.String("component", "scheduler")))

	sum := summary.New(summary.Config{
		At:            cfg.Scheduler.SummaryAt,
		DefaultChatID: cfg.Telegram.DefaultChatID,
		Location:      loc,
	}, store, tg, log.With(logx.String("component", "summary")))
	if *cfg.Scheduler.SummaryEnabled {
		if err := sum.Register(sched); err != nil {
			return fmt.Errorf("register daily summary: %w", err)
		}
	}

	telegram.NewRouter(sched, sum, loc, log.With(logx.String("component", "router"))).Attach(tg.Bot())

	if err := sched.RestoreOnStart(ctx); err != nil {
		return err
	}

	go tg.Start()

	// Only the log level is hot-reloadable; everything else needs a restart.
	if err := config.Watch(ctx, cfgPath, log, func(next config.Config) {
		logx.SetLevel(next.Logging.Level)
	}); err != nil {
		log.Warn("config watch unavailable", logx.Err(err))
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify ready skipped", logx.Err(err))
	}
	log.Info("bot started", logx.Int("live", sched.LiveCount()))

	<-ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	sched.Shutdown(stopCtx)
	tg.Stop()
	log.Info("bot stopped")
	return nil
}
