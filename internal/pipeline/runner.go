// Package pipeline runs the daily sequence: idempotency guard, candidate
// fetch, tiered selection, delivery, and only then persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otdbot/internal/feed"
	"otdbot/internal/history"
	"otdbot/internal/metrics"
	"otdbot/internal/selector"
	logx "otdbot/pkg/logx"
)

// FeedSource supplies the day's candidate events.
type FeedSource interface {
	Today(ctx context.Context, month, day int) ([]feed.Candidate, error)
}

// Picker chooses one validated selection from the candidates.
type Picker interface {
	Select(ctx context.Context, in selector.Input) (selector.Selection, selector.Stats, error)
}

// Deliverer fans the selection out to the notification sinks. It reports how
// many sinks accepted the message alongside any per-sink errors.
type Deliverer interface {
	Deliver(ctx context.Context, sel selector.Selection) (int, error)
}

// Outcome classifies one run for logs and metrics.
type Outcome string

const (
	OutcomePosted    Outcome = metrics.ResultPosted
	OutcomeSkipped   Outcome = metrics.ResultSkipped
	OutcomeExhausted Outcome = metrics.ResultExhausted
	OutcomeError     Outcome = metrics.ResultError
)

type Config struct {
	// RunBudget caps the wall clock of one run end to end.
	RunBudget time.Duration
	// ExcludeWindow is how many recent records feed the novelty exclusion set.
	ExcludeWindow int
	// ContextWindow is how many recent summaries are quoted to providers.
	ContextWindow int
	// CurrentPath, when set, receives a snapshot of the latest selection.
	CurrentPath string
}

type Runner struct {
	cfg     Config
	source  FeedSource
	picker  Picker
	sender  Deliverer
	store   history.Store
	metrics *metrics.Metrics
	log     logx.Logger
}

func NewRunner(cfg Config, source FeedSource, picker Picker, sender Deliverer, store history.Store, m *metrics.Metrics, log logx.Logger) *Runner {
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 3 * time.Minute
	}
	if cfg.ExcludeWindow <= 0 {
		cfg.ExcludeWindow = 50
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 5
	}
	if m == nil {
		m = metrics.New()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{cfg: cfg, source: source, picker: picker, sender: sender, store: store, metrics: m, log: log}
}

// Run executes one full day cycle for rc. History is appended only after at
// least one sink accepted the message, so a failed delivery never marks the
// day as done.
func (r *Runner) Run(ctx context.Context, rc RunContext) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RunBudget)
	defer cancel()

	out, err := r.run(ctx, rc)
	r.metrics.Runs.WithLabelValues(string(out)).Inc()
	return out, err
}

func (r *Runner) run(ctx context.Context, rc RunContext) (Outcome, error) {
	log := r.log.With(logx.String("date_key", rc.DateKey))

	if !history.ShouldRun(ctx, r.store, rc.DateKey, log) {
		log.Info("already posted today, skipping")
		return OutcomeSkipped, nil
	}

	candidates, err := r.source.Today(ctx, rc.Month, rc.Day)
	if err != nil {
		return OutcomeError, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return OutcomeError, errors.New("feed returned no usable candidates")
	}
	log.Info("candidates fetched", logx.Int("count", len(candidates)))

	exclusions, recent := r.historyWindows(ctx, log)

	sel, stats, err := r.picker.Select(ctx, selector.Input{
		DateKey:    rc.DateKey,
		Candidates: candidates,
		Exclusions: exclusions,
		Recent:     recent,
	})
	for tier, n := range stats.AttemptsByTier {
		r.metrics.TierAttempts.WithLabelValues(tier).Add(float64(n))
	}
	if err != nil {
		if errors.Is(err, selector.ErrExhausted) {
			log.Error("no tier produced a valid selection", logx.Err(err))
			return OutcomeExhausted, err
		}
		return OutcomeError, fmt.Errorf("select: %w", err)
	}
	r.metrics.TierWins.WithLabelValues(stats.Winner).Inc()
	log.Info("selection accepted",
		logx.String("tier", stats.Winner),
		logx.String("year", sel.Year),
		logx.String("link", sel.Link),
	)

	delivered, derr := r.sender.Deliver(ctx, sel)
	if delivered == 0 {
		if derr == nil {
			derr = errors.New("no sink accepted the message")
		}
		return OutcomeError, fmt.Errorf("deliver: %w", derr)
	}

	if err := r.persist(ctx, rc, sel); err != nil {
		// The message is already out; failing the run here would replay it
		// tomorrow only if the guard also failed, so log and keep going.
		log.Error("selection delivered but not persisted", logx.Err(err))
		return OutcomeError, fmt.Errorf("persist: %w", err)
	}

	if derr != nil {
		log.Warn("partial delivery", logx.Int("delivered", delivered), logx.Err(derr))
		return OutcomePosted, derr
	}
	log.Info("run complete", logx.Int("delivered", delivered))
	return OutcomePosted, nil
}

// historyWindows builds the identity exclusion set and the prompt context
// summaries from the recent history window. Unreadable history degrades to
// empty windows.
func (r *Runner) historyWindows(ctx context.Context, log logx.Logger) (exclusions, recent []string) {
	if r.store == nil {
		return nil, nil
	}
	records, err := r.store.Recent(ctx, r.cfg.ExcludeWindow)
	if err != nil {
		log.Warn("history window unreadable", logx.Err(err))
		return nil, nil
	}
	for i, rec := range records {
		if rec.Identity != "" {
			exclusions = append(exclusions, rec.Identity)
		}
		if i < r.cfg.ContextWindow {
			recent = append(recent, fmt.Sprintf("%s: %s", rec.Year, rec.Event))
		}
	}
	return exclusions, recent
}

func (r *Runner) persist(ctx context.Context, rc RunContext, sel selector.Selection) error {
	rec := history.Record{
		DateKey:   rc.DateKey,
		Identity:  sel.Identity,
		Year:      sel.Year,
		Event:     sel.Event,
		Link:      sel.Link,
		Thumbnail: sel.Thumbnail,
		PostedAt:  rc.Now,
	}
	if r.cfg.CurrentPath != "" {
		if err := history.WriteCurrent(r.cfg.CurrentPath, rec); err != nil {
			return fmt.Errorf("write current snapshot: %w", err)
		}
	}
	if r.store == nil {
		return nil
	}
	return r.store.Append(ctx, rec)
}
