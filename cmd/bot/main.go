package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tc "github.com/Roma7-7-7/telegram"
	"github.com/jonboulle/clockwork"

	"github.com/Roma7-7-7/livestream-notifier/internal/config"
	"github.com/Roma7-7-7/livestream-notifier/internal/dal"
	"github.com/Roma7-7-7/livestream-notifier/internal/metrics"
	"github.com/Roma7-7-7/livestream-notifier/internal/service"
	"github.com/Roma7-7-7/livestream-notifier/internal/telegram"
)

const shutdownTimeout = 30 * time.Second

type subscribersStore interface {
	service.SubscribersReader
	service.SubscriptionsStore
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.NewConfig(ctx)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return 1
	}

	log := mustLogger(conf.Dev)

	store, closeStore, err := openStore(conf, log)
	if err != nil {
		log.Error("Failed to open subscribers store", "error", err, "driver", conf.StorageDriver, "path", conf.SubscribersPath)
		return 1
	}
	defer closeStore()

	rule, err := conf.Rule()
	if err != nil {
		log.Error("Failed to build announcement rule", "error", err)
		return 1
	}

	sender := tc.NewClient(http.DefaultClient, conf.TelegramToken)
	dispatcher, err := service.NewDispatcher(store, sender, clockwork.NewRealClock(), service.DispatcherConfig{
		Rule:          rule,
		Text:          conf.AnnounceText,
		Concurrency:   conf.SendConcurrency,
		RatePerSecond: conf.SendRatePerSecond,
		SendTimeout:   conf.SendTimeout,
	}, log)
	if err != nil {
		log.Error("Failed to create dispatcher", "error", err)
		return 1
	}

	subscriptionsSvc := service.NewSubscription(store, log)
	handler := telegram.NewHandler(subscriptionsSvc, log)
	bot, err := telegram.NewBot(conf.TelegramToken, handler, log)
	if err != nil {
		log.Error("Failed to create telegram bot", "error", err)
		return 1
	}

	scheduler, err := service.NewScheduler(dispatcher, log).Start(ctx)
	if err != nil {
		log.Error("Failed to start scheduler", "error", err)
		return 1
	}

	if conf.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              conf.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second, //nolint:mnd // it's ok
		}
		go func() {
			log.Info("Starting metrics server", "addr", conf.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Failed to stop metrics server", "error", err)
			}
		}()
	}

	err = bot.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Failed to start bot", "error", err)
	}

	scheduler.Cancel()
	waitCtx, waitCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer waitCancel()
	if err := scheduler.Wait(waitCtx); err != nil {
		log.Warn("Scheduler did not stop in time", "error", err)
	}

	log.Info("Stopped bot")
	return 0
}

func openStore(conf *config.Config, log *slog.Logger) (subscribersStore, func(), error) {
	switch conf.StorageDriver {
	case config.StorageBolt:
		store, err := dal.NewBoltSubscribers(conf.SubscribersPath, conf.SubscribersImportPath, log)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // it's ok
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error("Failed to close subscribers store", "error", err)
			}
		}, nil
	default:
		store, err := dal.NewFileSubscribers(conf.SubscribersPath)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // it's ok
		}
		return store, func() {}, nil
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func mustLogger(dev bool) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if dev {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler)
}
