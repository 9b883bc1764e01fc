// Package notify delivers the day's selection to the configured sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"otdbot/internal/selector"
	logx "otdbot/pkg/logx"
)

// Sink delivers one formatted message per selection.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, sel selector.Selection) error
}

type Config struct {
	RatePerSec int
	// RetryMax is extra attempts per sink after the first.
	RetryMax int
}

// Service fans a selection out to all sinks with a shared rate limit and a
// bounded linear-backoff retry per sink. One sink failing never stops the
// others.
type Service struct {
	sinks    []Sink
	limiter  *rate.Limiter
	retryMax int
	log      logx.Logger
}

func NewService(cfg Config, sinks []Sink, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		sinks:    sinks,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		retryMax: cfg.RetryMax,
		log:      log,
	}
}

// Deliver sends sel to every sink. It returns how many sinks accepted the
// message and a joined error for those that did not.
func (s *Service) Deliver(ctx context.Context, sel selector.Selection) (int, error) {
	if len(s.sinks) == 0 {
		return 0, errors.New("no notification sinks configured")
	}

	delivered := 0
	var errs []error
	for _, sink := range s.sinks {
		if err := s.sendOne(ctx, sink, sel); err != nil {
			s.log.Warn("delivery failed", logx.String("sink", sink.Name()), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		delivered++
		s.log.Info("delivered", logx.String("sink", sink.Name()), logx.String("date_key", sel.DateKey))
	}
	return delivered, errors.Join(errs...)
}

func (s *Service) sendOne(ctx context.Context, sink Sink, sel selector.Selection) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	var last error
	for i := 0; i <= s.retryMax; i++ {
		last = sink.Deliver(ctx, sel)
		if last == nil {
			return nil
		}
		if i == s.retryMax {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		s.log.Debug("delivery retry scheduled",
			logx.String("sink", sink.Name()),
			logx.Int("attempt", i+2),
			logx.Duration("delay", delay),
			logx.Err(last),
		)
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}
