// Package selector implements the tiered selection pipeline: ordered
// fallback across generation providers, structural validation of their
// output, and hard novelty enforcement against recent history.
package selector

import (
	"context"
	"errors"
	"time"

	"otdbot/internal/feed"
	"otdbot/internal/provider"
	logx "otdbot/pkg/logx"
)

// ErrExhausted is returned when every configured tier has spent its retry
// budget without producing a valid selection. It is the only selector
// failure surfaced to the caller; everything upstream is absorbed.
var ErrExhausted = errors.New("all tiers exhausted")

// Selection is the chosen, validated output for one day.
type Selection struct {
	Year      string `json:"year"`
	Event     string `json:"event"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Identity  string `json:"-"`
	DateKey   string `json:"date_key"`
}

// Tier is one provider in fallback priority order with its retry budget.
type Tier struct {
	Name     string
	Provider provider.Provider
	// Attempts is the bounded per-tier budget (transient failures and
	// invalid responses both count against it).
	Attempts int
	// Delay is the fixed inter-attempt delay.
	Delay time.Duration
}

// Constraints bound the structural shape of an accepted selection.
type Constraints struct {
	MaxWords      int
	MaxEventChars int
}

// Input is everything one Select run needs; it is built fresh per run so the
// selector itself holds no per-day state.
type Input struct {
	DateKey    string
	Candidates []feed.Candidate
	// Exclusions are identities from the recent history window.
	Exclusions []string
	// Recent holds "year: event" summaries for prompt context.
	Recent []string
}

// Stats reports what a Select run did, for logging and metrics.
type Stats struct {
	// AttemptsByTier counts provider invocations per tier name.
	AttemptsByTier map[string]int
	// Winner is the accepting tier's name, "" when exhausted.
	Winner string
}

// LiveFunc probes whether a URL is reachable. Implementations must be
// best-effort: false on any failure, never an error.
type LiveFunc func(ctx context.Context, url string) bool

type Selector struct {
	tiers       []Tier
	constraints Constraints
	isLive      LiveFunc
	log         logx.Logger
}

func New(tiers []Tier, constraints Constraints, isLive LiveFunc, log logx.Logger) *Selector {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Selector{tiers: tiers, constraints: constraints, isLive: isLive, log: log}
}

// Select walks the tiers strictly in priority order and returns the first
// selection that survives validation. A later tier is consulted only after
// the earlier one is confirmed exhausted: first-success-wins, never
// fastest-wins.
func (s *Selector) Select(ctx context.Context, in Input) (Selection, Stats, error) {
	stats := Stats{AttemptsByTier: make(map[string]int, len(s.tiers))}

	excluded := make(map[string]bool, len(in.Exclusions))
	for _, id := range in.Exclusions {
		if id != "" {
			excluded[id] = true
		}
	}

	req := provider.PickRequest{
		DateKey:    in.DateKey,
		Candidates: in.Candidates,
		Exclusions: in.Exclusions,
		Recent:     in.Recent,
		Constraints: provider.Constraints{
			MaxWords:      s.constraints.MaxWords,
			MaxEventChars: s.constraints.MaxEventChars,
		},
	}

	for _, tier := range s.tiers {
		tier := tier
		tlog := s.log.With(logx.String("tier", tier.Name))
		tlog.Info("trying tier", logx.Int("attempts", tier.Attempts))

		var accepted Selection
		err := retryDo(ctx, tier.Attempts, tier.Delay, func(attempt int) error {
			stats.AttemptsByTier[tier.Name]++

			raw, perr := tier.Provider.Pick(ctx, req)
			if perr != nil {
				tlog.Warn("provider call failed",
					logx.Int("attempt", attempt+1),
					logx.Bool("permanent", provider.IsPermanent(perr)),
					logx.Err(perr),
				)
				return perr
			}

			sel, verr := s.validate(ctx, raw, in, excluded)
			if verr != nil {
				// Logged distinctly from transport failures for diagnosis;
				// handled identically for control flow.
				var ve *ValidationError
				reason := verr.Error()
				if errors.As(verr, &ve) {
					reason = ve.Reason
				}
				tlog.Warn("invalid response", logx.Int("attempt", attempt+1), logx.String("reason", reason))
				return verr
			}

			accepted = sel
			return nil
		}, provider.IsPermanent)

		if err == nil {
			stats.Winner = tier.Name
			tlog.Info("tier accepted",
				logx.String("identity", accepted.Identity),
				logx.String("year", accepted.Year),
			)
			return accepted, stats, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Selection{}, stats, ctxErr
		}
		tlog.Warn("tier exhausted", logx.Int("attempts_used", stats.AttemptsByTier[tier.Name]))
	}

	return Selection{}, stats, ErrExhausted
}
