// Package app is the composition root: it loads config, builds the logger,
// transport adapter, storage, and controllers, and owns the two long-lived
// goroutines (router worker and config watcher).
package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"promobot/internal/approval"
	"promobot/internal/broadcast"
	"promobot/internal/config"
	"promobot/internal/delivery"
	"promobot/internal/router"
	"promobot/internal/session"
	"promobot/internal/stats"
	"promobot/internal/storage"
	kit "promobot/internal/transport"
	telegram "promobot/internal/transport/telegram"
	logx "promobot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	adapter kit.Adapter
	store   storage.Store
	router  *router.Router
	stats   *stats.Service

	updates chan kit.Update

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logs.Logger().With(logx.String("comp", "config")))

	// The token may live in the environment instead of the config file.
	token := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if token == "" {
		token = strings.TrimSpace(cfg.Telegram.Token)
	}
	if token == "" {
		return nil, errors.New("telegram token missing: set telegram.token or BOT_TOKEN")
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       token,
		PollTimeout: pollTimeout,
	}, logs.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logs.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	pace, err := config.ParseDurationOrDefault("delivery.pace", cfg.Delivery.Pace, delivery.DefaultPace)
	if err != nil {
		return nil, err
	}
	engine := delivery.New(adapter, store, delivery.Interval(pace),
		logs.Logger().With(logx.String("comp", "delivery")))

	// Catalog lookups read through the manager so hot reload reaches the
	// session service without restarts.
	catalog := session.Catalog(func(key string) (session.Plan, bool) {
		c := cfgm.Get()
		if c == nil {
			return session.Plan{}, false
		}
		p, ok := c.Plans[key]
		if !ok {
			return session.Plan{}, false
		}
		return session.Plan{Key: key, Price: p.Price, Users: p.Users}, true
	})

	adminID := cfg.Telegram.AdminID
	notifier := router.NewOperatorNotifier(adapter, adminID,
		logs.Logger().With(logx.String("comp", "notify")))
	sessions := session.New(catalog, store, notifier,
		logs.Logger().With(logx.String("comp", "session")))
	approvals := approval.New(store, engine,
		logs.Logger().With(logx.String("comp", "approval")))
	broadcasts := broadcast.New(store, engine,
		logs.Logger().With(logx.String("comp", "broadcast")))

	rt := router.New(adapter, cfgm, store, sessions, approvals, broadcasts, adminID,
		logs.Logger().With(logx.String("comp", "router")))

	statsSvc := stats.New(stats.Config{
		Enabled:  cfg.Stats.Enabled,
		Schedule: cfg.Stats.Schedule,
	}, store, adapter, adminID, logs.Logger().With(logx.String("comp", "stats")))

	return &App{
		cfgm:    cfgm,
		logs:    logs,
		log:     log,
		adapter: adapter,
		store:   store,
		router:  rt,
		stats:   statsSvc,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.updates = make(chan kit.Update, 256)
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.router.Run(runCtx, a.updates)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch unavailable", logx.Err(err))
		}
	}()

	// Apply reloadable sections (logging) when the file changes.
	reloads := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(reloads)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-reloads:
				if !ok {
					return
				}
				a.logs.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
			}
		}
	}()

	if err := a.stats.Start(); err != nil {
		return err
	}

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.stats.Stop(ctx)
	_ = a.adapter.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
