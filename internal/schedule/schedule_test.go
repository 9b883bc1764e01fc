package schedule

import (
	"context"
	"testing"
	"time"

	logx "otdbot/pkg/logx"
)

func TestStartFiresJob(t *testing.T) {
	t.Parallel()
	fired := make(chan struct{}, 4)
	s := New(Config{Enabled: true, Spec: "* * * * * *", Timezone: "UTC"}, func(ctx context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, logx.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired on a per-second spec")
	}
	if s.Next().IsZero() {
		t.Fatal("Next should be set while running")
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false, Spec: "0 9 * * *", Timezone: "UTC"}, func(ctx context.Context) {
		t.Error("job must not run while disabled")
	}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatal("no schedule expected")
	}
	s.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Spec: "not a spec", Timezone: "UTC"}, func(ctx context.Context) {}, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected spec parse error")
	}
}

func TestStartRejectsBadTimezone(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Spec: "0 9 * * *", Timezone: "Mars/Olympus"}, func(ctx context.Context) {}, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestApplyBeforeStartDefersToNewConfig(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false, Spec: "0 9 * * *", Timezone: "UTC"}, func(ctx context.Context) {}, logx.Nop())

	if err := s.Apply(context.Background(), Config{Enabled: true, Spec: "0 10 * * *", Timezone: "UTC"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if s.Next().IsZero() {
		t.Fatal("reloaded config should enable the schedule")
	}
}

func TestApplyDisableStopsRunningSchedule(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Spec: "0 9 * * *", Timezone: "UTC"}, func(ctx context.Context) {}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Apply(context.Background(), Config{Enabled: false, Spec: "0 9 * * *", Timezone: "UTC"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatal("disable on reload should stop the cron")
	}
	s.Stop()
}
