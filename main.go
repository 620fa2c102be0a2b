package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/vespa-garage/vespa-admin/config"
	"github.com/vespa-garage/vespa-admin/internal/logging"
	"github.com/vespa-garage/vespa-admin/internal/monitor"
	"github.com/vespa-garage/vespa-admin/internal/setup"
	"github.com/vespa-garage/vespa-admin/internal/storage"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
	"github.com/vespa-garage/vespa-admin/internal/watcher"
	"golang.org/x/sync/errgroup"
)

func main() {
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		setup.FatalWithWait("%v", err)
	}

	if missing := cfg.CheckRequired(true); len(missing) > 0 {
		if !setup.IsInteractiveTerminal() {
			setup.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
		if !setup.RunWizard(setup.Options{
			Title:        "🛵 Vespa Admin stock agent - First-time Setup",
			WithTelegram: true,
			DoneMessage:  "Run `vespactl login` to sign in, then start the agent again.",
		}) {
			setup.WaitOnWindows()
			os.Exit(1)
		}
		if cfg, err = config.Load(); err != nil {
			setup.FatalWithWait("%v", err)
		}
	}

	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		setup.FatalWithWait("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		setup.FatalWithWait("failed to open credential store: %v", err)
	}
	defer store.Close()

	session, err := vespa.NewSession(ctx, store)
	if err != nil {
		setup.FatalWithWait("failed to load session: %v", err)
	}
	if session.State() != vespa.StateAuthenticated {
		log.Warn().Msg("no stored session, run `vespactl login` before alerts can be fetched")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := vespa.NewClient(vespa.ClientOpts{
		BaseURL:       cfg.API.BaseURL,
		Session:       session,
		Timeout:       cfg.API.Timeout,
		RefreshLeeway: cfg.API.RefreshLeeway,
		Metrics:       vespa.NewMetrics(reg),
		OnSessionExpired: func(err error) {
			log.Error().Err(err).Msg("session expired, run `vespactl login` to sign in again")
		},
	})

	tg, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		setup.FatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	alerts, ok := store.(storage.AlertStore)
	if !ok {
		alerts = storage.NewMemoryStore()
	}

	notifier := watcher.NewTelegramNotifier(tg, cfg.Telegram.ChatID)
	notifier.AdminURL = cfg.Watcher.AdminURL
	watcherService := watcher.NewService(client, alerts, notifier, cfg.Watcher.PollInterval)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watcherService.Run(ctx)
		return nil
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMonitor(ctx, cfg.MetricsAddr, monitor.NewRouter(reg))
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.CredentialStore, error) {
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}

	var key []byte
	if cfg.Store.Backend != storage.BackendMemory {
		if key, err = storage.DeriveKey(cfg.Store.TokenKey); err != nil {
			return nil, err
		}
	}

	store, err := storage.Open(ctx, opts, key)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", opts.Backend).Str("dbPath", opts.DBPath).Msg("credential store initialized")
	return store, nil
}

func serveMonitor(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("monitor listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("monitor shutdown incomplete")
	}
	return nil
}
