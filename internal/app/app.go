// Package app wires configuration, logging, persistence, selection, and
// delivery into a runnable unit for the command entrypoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"otdbot/internal/config"
	"otdbot/internal/feed"
	"otdbot/internal/history"
	"otdbot/internal/linkcheck"
	"otdbot/internal/metrics"
	"otdbot/internal/notify"
	"otdbot/internal/pipeline"
	"otdbot/internal/provider"
	"otdbot/internal/schedule"
	"otdbot/internal/selector"
	logx "otdbot/pkg/logx"
)

type App struct {
	cfgMgr  *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	store   history.Store
	metrics *metrics.Metrics
	runner  *pipeline.Runner
	sched   *schedule.Service
	loc     *time.Location

	metricsSrv *http.Server
}

// New loads the config file and builds every component. The returned App owns
// the history store and log service; Close releases both.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	mgr.SetLogger(log.With(logx.String("component", "config")))

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("timezone: %w", err)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	m := metrics.New()

	runner, err := buildRunner(cfg, store, m, log)
	if err != nil {
		_ = store.Close()
		logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		store:   store,
		metrics: m,
		runner:  runner,
		loc:     loc,
	}
	a.sched = schedule.New(scheduleConfig(cfg), a.runJob, log.With(logx.String("component", "schedule")))
	return a, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Discord: logx.DiscordConfig{
			Enabled:    cfg.Logging.Discord.Enabled,
			WebhookURL: config.Secret(cfg.Logging.Discord.WebhookURLEnv),
			MinLevel:   cfg.Logging.Discord.MinLevel,
			RatePerSec: cfg.Logging.Discord.RatePerSec,
		},
	}
}

func scheduleConfig(cfg *config.Config) schedule.Config {
	return schedule.Config{
		Enabled:  cfg.Schedule.Enabled,
		Spec:     cfg.Schedule.Spec,
		Timezone: cfg.Timezone,
	}
}

func openStore(cfg *config.Config, log logx.Logger) (history.Store, error) {
	busy, err := config.ParseDurationOrDefault("history.busy_timeout", cfg.History.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	st, err := history.Open(history.Config{
		Driver:      cfg.History.Driver,
		Path:        cfg.History.Path,
		Retention:   cfg.History.Retention,
		BusyTimeout: busy,
	}, log.With(logx.String("component", "history")))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return st, nil
}

func buildRunner(cfg *config.Config, store history.Store, m *metrics.Metrics, log logx.Logger) (*pipeline.Runner, error) {
	feedTimeout, err := config.ParseDurationOrDefault("feed.timeout", cfg.Feed.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	source := feed.New(feed.Config{
		BaseURL:   cfg.Feed.BaseURL,
		UserAgent: cfg.Feed.UserAgent,
		Limit:     cfg.Feed.Limit,
		Timeout:   feedTimeout,
	}, log.With(logx.String("component", "feed")))

	tiers, err := buildTiers(cfg)
	if err != nil {
		return nil, err
	}

	var isLive selector.LiveFunc
	if cfg.LinkCheck.Enabled {
		lcTimeout, err := config.ParseDurationOrDefault("link_check.timeout", cfg.LinkCheck.Timeout, 5*time.Second)
		if err != nil {
			return nil, err
		}
		isLive = linkcheck.New(lcTimeout, log.With(logx.String("component", "linkcheck"))).IsLive
	}

	picker := selector.New(tiers, selector.Constraints{
		MaxWords:      cfg.Selection.MaxWords,
		MaxEventChars: cfg.Selection.MaxEventChars,
	}, isLive, log.With(logx.String("component", "selector")))

	sender, err := buildNotify(cfg, log)
	if err != nil {
		return nil, err
	}

	budget, err := config.ParseDurationOrDefault("run_budget", cfg.RunBudget, 3*time.Minute)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(pipeline.Config{
		RunBudget:     budget,
		ExcludeWindow: cfg.Selection.ExcludeWindow,
		ContextWindow: cfg.Selection.ContextWindow,
		CurrentPath:   cfg.History.CurrentPath,
	}, source, picker, &meteredSender{inner: sender, metrics: m}, store, m, log.With(logx.String("component", "pipeline"))), nil
}

func buildTiers(cfg *config.Config) ([]selector.Tier, error) {
	tiers := make([]selector.Tier, 0, len(cfg.Tiers))
	for i, tc := range cfg.Tiers {
		delay, err := config.ParseDurationOrDefault(fmt.Sprintf("tiers[%d].retry_delay", i), tc.RetryDelay, 5*time.Second)
		if err != nil {
			return nil, err
		}
		timeout, err := config.ParseDurationOrDefault(fmt.Sprintf("tiers[%d].timeout", i), tc.Timeout, 45*time.Second)
		if err != nil {
			return nil, err
		}

		var p provider.Provider
		switch strings.ToLower(strings.TrimSpace(tc.Kind)) {
		case "gemini":
			p = provider.NewGemini(provider.GeminiConfig{
				Name:    tc.Name,
				Model:   tc.Model,
				APIKey:  config.Secret(tc.APIKeyEnv),
				BaseURL: tc.BaseURL,
				Timeout: timeout,
			})
		case "openai":
			p = provider.NewOpenAI(provider.OpenAIConfig{
				Name:    tc.Name,
				Model:   tc.Model,
				APIKey:  config.Secret(tc.APIKeyEnv),
				BaseURL: tc.BaseURL,
				Timeout: timeout,
			})
		case "emergency":
			p = provider.NewEmergency(tc.Name)
		default:
			return nil, fmt.Errorf("tiers[%d]: unknown kind %q", i, tc.Kind)
		}

		name := tc.Name
		if strings.TrimSpace(name) == "" {
			name = p.Name()
		}
		tiers = append(tiers, selector.Tier{
			Name:     name,
			Provider: p,
			Attempts: tc.Attempts,
			Delay:    delay,
		})
	}
	return tiers, nil
}

func buildNotify(cfg *config.Config, log logx.Logger) (*notify.Service, error) {
	var sinks []notify.Sink
	if cfg.Notify.Discord.Enabled {
		d, err := notify.NewDiscord(notify.DiscordConfig{
			WebhookURL: config.Secret(cfg.Notify.Discord.WebhookURLEnv),
			Username:   cfg.Notify.Discord.Username,
			Color:      cfg.Notify.Discord.Color,
		})
		if err != nil {
			return nil, fmt.Errorf("discord sink: %w", err)
		}
		sinks = append(sinks, d)
	}
	if cfg.Notify.Telegram.Enabled {
		t, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  config.Secret(cfg.Notify.Telegram.TokenEnv),
			ChatID: cfg.Notify.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, t)
	}
	if len(sinks) == 0 {
		return nil, errors.New("no notification sink enabled")
	}
	return notify.NewService(notify.Config{
		RatePerSec: cfg.Notify.RatePerSec,
		RetryMax:   cfg.Notify.RetryMax,
	}, sinks, log.With(logx.String("component", "notify"))), nil
}

// meteredSender counts delivery outcomes without the notify package knowing
// about Prometheus.
type meteredSender struct {
	inner   *notify.Service
	metrics *metrics.Metrics
}

func (m *meteredSender) Deliver(ctx context.Context, sel selector.Selection) (int, error) {
	delivered, err := m.inner.Deliver(ctx, sel)
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.metrics.Deliveries.WithLabelValues("all", result).Add(float64(delivered))
	return delivered, err
}

// RunOnce executes a single pipeline run and returns its outcome.
func (a *App) RunOnce(ctx context.Context) (pipeline.Outcome, error) {
	rc := pipeline.NewRunContext(time.Now(), a.loc)
	return a.runner.Run(ctx, rc)
}

func (a *App) runJob(ctx context.Context) {
	out, err := a.RunOnce(ctx)
	if err != nil {
		a.log.Error("scheduled run failed", logx.String("outcome", string(out)), logx.Err(err))
		return
	}
	a.log.Info("scheduled run finished", logx.String("outcome", string(out)))
}

// StartDaemon runs until ctx is cancelled: cron trigger, config file watch,
// and the optional metrics listener.
func (a *App) StartDaemon(ctx context.Context) error {
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	cfg := a.cfgMgr.Get()
	if cfg.Metrics.Enabled {
		a.startMetricsServer(cfg.Metrics.Addr)
	}

	updates := a.cfgMgr.Subscribe(1)
	go a.reloadLoop(ctx, updates)
	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	if next := a.sched.Next(); !next.IsZero() {
		a.log.Info("daemon ready", logx.Time("next_run", next))
	} else {
		a.log.Info("daemon ready, no schedule active")
	}
	return nil
}

func (a *App) reloadLoop(ctx context.Context, updates chan *config.Config) {
	defer a.cfgMgr.Unsubscribe(updates)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.applyReload(ctx, cfg)
		}
	}
}

// applyReload propagates a validated config to the hot-swappable components.
// Stores, providers, and sinks are rebuilt only on restart.
func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	a.logSvc.Apply(loggingConfig(cfg))
	if err := a.sched.Apply(ctx, scheduleConfig(cfg)); err != nil {
		a.log.Error("reload: schedule rejected", logx.Err(err))
	}
	a.log.Info("config reloaded")
}

func (a *App) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsSrv = srv
	go func() {
		a.log.Info("metrics listener started", logx.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics listener failed", logx.Err(err))
		}
	}()
}

func (a *App) Close(ctx context.Context) {
	a.sched.Stop()
	if a.metricsSrv != nil {
		shutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = a.metricsSrv.Shutdown(shutCtx)
		cancel()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("history close failed", logx.Err(err))
	}
	a.logSvc.Close()
}
