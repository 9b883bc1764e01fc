// Package schedule triggers the daily pipeline run on a cron spec in the
// configured timezone.
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	logx "otdbot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Spec     string
	Timezone string
}

// Job is one scheduled run. The context is the service's run context and is
// cancelled on Stop.
type Job func(ctx context.Context)

// Service owns the cron runtime. Apply may be called concurrently with a
// running service; a spec or timezone change restarts the cron with the new
// settings.
type Service struct {
	log    logx.Logger
	job    Job
	parser cron.Parser

	mu        sync.Mutex
	cfg       Config
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		job: job,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Start launches the cron runtime. It is a no-op when already running or
// when the config disables scheduling.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	if err := s.startLocked(ctx); err != nil {
		return err
	}
	// Best-effort readiness signal; a no-op outside systemd.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		s.log.Debug("sd_notify unavailable", logx.Err(err))
	}
	return nil
}

func (s *Service) startLocked(ctx context.Context) error {
	loc, err := time.LoadLocation(strings.TrimSpace(s.cfg.Timezone))
	if err != nil {
		return fmt.Errorf("schedule timezone: %w", err)
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	runCtx, cancel := context.WithCancel(ctx)

	if _, err := c.AddFunc(s.cfg.Spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in scheduled run",
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())),
				)
			}
		}()
		s.job(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule spec %q: %w", s.cfg.Spec, err)
	}

	s.c = c
	s.runCtx = runCtx
	s.runCancel = cancel
	c.Start()
	s.log.Info("scheduler started", logx.String("spec", s.cfg.Spec), logx.String("tz", loc.String()))
	return nil
}

// Apply swaps in a new config. The cron restarts only when the effective
// schedule actually changed.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		// Not running; Start picks up the new config later.
		return nil
	}
	if cfg.Enabled == old.Enabled && cfg.Spec == old.Spec && cfg.Timezone == old.Timezone {
		return nil
	}

	s.stopLocked()
	if !cfg.Enabled {
		s.log.Info("scheduler disabled by reload")
		return nil
	}
	s.log.Info("scheduler restarting after reload")
	return s.startLocked(ctx)
}

// Next reports the next scheduled run time, zero when not running.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	stopCtx := s.c.Stop()
	s.runCancel()
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
}
