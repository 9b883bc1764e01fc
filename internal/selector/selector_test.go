package selector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"otdbot/internal/feed"
	"otdbot/internal/provider"
	logx "otdbot/pkg/logx"
)

// scripted returns its steps in order, then repeats the last one.
// It counts invocations.
type scripted struct {
	name  string
	steps []stubStep
	calls int
}

type stubStep struct {
	raw string
	err error
}

func (p *scripted) Name() string { return p.name }

func (p *scripted) Pick(ctx context.Context, _ provider.PickRequest) (string, error) {
	i := p.calls
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	p.calls++
	st := p.steps[i]
	return st.raw, st.err
}


func testInput() Input {
	return Input{
		DateKey: "March 1, 2026",
		Candidates: []feed.Candidate{
			{Year: "1990", Text: "A thing", Link: "http://x", Identity: "http://x"},
		},
		Exclusions: []string{"http://used"},
		Recent:     []string{"1969: Moon landing"},
	}
}

const validRaw = `{"year":"1990","event":"A","link":"http://x"}`

func newTestSelector(tiers []Tier) *Selector {
	return New(tiers, Constraints{MaxWords: 40, MaxEventChars: 400}, nil, logx.Nop())
}

func TestTierOrderingFirstSuccessWins(t *testing.T) {
	t.Parallel()
	t1 := &scripted{name: "primary", steps: []stubStep{{raw: validRaw}}}
	t2 := &scripted{name: "backup", steps: []stubStep{{raw: validRaw}}}

	s := newTestSelector([]Tier{
		{Name: "primary", Provider: t1, Attempts: 3},
		{Name: "backup", Provider: t2, Attempts: 3},
	})

	sel, stats, err := s.Select(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if stats.Winner != "primary" {
		t.Fatalf("winner = %q, want primary", stats.Winner)
	}
	if t1.calls != 1 {
		t.Fatalf("tier 1 calls = %d, want 1", t1.calls)
	}
	if t2.calls != 0 {
		t.Fatalf("tier 2 must never be invoked when tier 1 succeeds, got %d calls", t2.calls)
	}
	if sel.Year != "1990" || sel.DateKey != "March 1, 2026" || sel.Identity != "http://x" {
		t.Fatalf("unexpected selection: %+v", sel)
	}
}

func TestFallbackAfterRetryBudget(t *testing.T) {
	t.Parallel()
	boom := errors.New("timeout")
	t1 := &scripted{name: "primary", steps: []stubStep{{err: boom}, {err: boom}, {err: boom}}}
	t2 := &scripted{name: "backup", steps: []stubStep{{raw: validRaw}}}

	s := newTestSelector([]Tier{
		{Name: "primary", Provider: t1, Attempts: 3},
		{Name: "backup", Provider: t2, Attempts: 3},
	})

	_, stats, err := s.Select(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if t1.calls != 3 {
		t.Fatalf("tier 1 invoked %d times, want exactly 3", t1.calls)
	}
	if t2.calls != 1 {
		t.Fatalf("tier 2 invoked %d times, want exactly 1", t2.calls)
	}
	if stats.Winner != "backup" {
		t.Fatalf("winner = %q, want backup", stats.Winner)
	}
}

func TestExhaustionNoTierLeft(t *testing.T) {
	t.Parallel()
	boom := errors.New("down")
	t1 := &scripted{name: "a", steps: []stubStep{{err: boom}}}
	t2 := &scripted{name: "b", steps: []stubStep{{err: boom}}}

	s := newTestSelector([]Tier{
		{Name: "a", Provider: t1, Attempts: 2},
		{Name: "b", Provider: t2, Attempts: 2},
	})

	_, stats, err := s.Select(context.Background(), testInput())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if stats.Winner != "" {
		t.Fatalf("winner = %q, want empty", stats.Winner)
	}
	if t1.calls != 2 || t2.calls != 2 {
		t.Fatalf("calls = %d/%d, want 2/2", t1.calls, t2.calls)
	}
}

func TestNoveltyHardCheckRejectsExcluded(t *testing.T) {
	t.Parallel()
	// A compliant-looking response that picks an excluded URL.
	excludedRaw := `{"year":"1969","event":"Repeat","link":"http://used"}`
	t1 := &scripted{name: "naughty", steps: []stubStep{{raw: excludedRaw}}}
	t2 := &scripted{name: "backup", steps: []stubStep{{raw: validRaw}}}

	s := newTestSelector([]Tier{
		{Name: "naughty", Provider: t1, Attempts: 2},
		{Name: "backup", Provider: t2, Attempts: 1},
	})

	sel, stats, err := s.Select(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// The excluded pick burned the whole tier-1 budget, then tier 2 won.
	if t1.calls != 2 {
		t.Fatalf("tier 1 calls = %d, want 2", t1.calls)
	}
	if stats.Winner != "backup" || sel.Link != "http://x" {
		t.Fatalf("winner = %q, sel = %+v", stats.Winner, sel)
	}
}

func TestValidationFailures(t *testing.T) {
	t.Parallel()
	long := ""
	for i := 0; i < 401; i++ {
		long += "x"
	}
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "sorry, I can't"},
		{name: "missing year", raw: `{"event":"A","link":"http://x"}`},
		{name: "missing event", raw: `{"year":"1990","link":"http://x"}`},
		{name: "missing link", raw: `{"year":"1990","event":"A"}`},
		{name: "wrong date", raw: `{"year":"1990","event":"A","link":"http://x","date_key":"March 2, 2026"}`},
		{name: "event too long", raw: fmt.Sprintf(`{"year":"1990","event":"%s","link":"http://x"}`, long)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &scripted{name: "p", steps: []stubStep{{raw: tt.raw}}}
			s := newTestSelector([]Tier{{Name: "p", Provider: p, Attempts: 1}})
			_, _, err := s.Select(context.Background(), testInput())
			if !errors.Is(err, ErrExhausted) {
				t.Fatalf("err = %v, want ErrExhausted after invalid response", err)
			}
		})
	}
}

func TestPermanentErrorSkipsRemainingBudget(t *testing.T) {
	t.Parallel()
	perm := provider.Permanent(errors.New("bad credentials"))
	t1 := &scripted{name: "p", steps: []stubStep{{err: perm}}}
	t2 := &scripted{name: "b", steps: []stubStep{{raw: validRaw}}}

	s := newTestSelector([]Tier{
		{Name: "p", Provider: t1, Attempts: 3},
		{Name: "b", Provider: t2, Attempts: 1},
	})

	_, stats, err := s.Select(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if t1.calls != 1 {
		t.Fatalf("permanent error should not be retried, got %d calls", t1.calls)
	}
	if stats.Winner != "b" {
		t.Fatalf("winner = %q", stats.Winner)
	}
}

func TestContextCancelAborts(t *testing.T) {
	t.Parallel()
	boom := errors.New("slow")
	t1 := &scripted{name: "p", steps: []stubStep{{err: boom}}}
	s := newTestSelector([]Tier{{Name: "p", Provider: t1, Attempts: 5, Delay: time.Hour}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := s.Select(ctx, testInput())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if t1.calls != 1 {
		t.Fatalf("calls = %d, want 1 before cancellation", t1.calls)
	}
}

func TestLinkCheckRejection(t *testing.T) {
	t.Parallel()
	p := &scripted{name: "p", steps: []stubStep{{raw: validRaw}}}
	dead := func(ctx context.Context, url string) bool { return false }
	s := New([]Tier{{Name: "p", Provider: p, Attempts: 1}}, Constraints{MaxEventChars: 400}, dead, logx.Nop())

	if _, _, err := s.Select(context.Background(), testInput()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("dead link should exhaust, got %v", err)
	}
}
