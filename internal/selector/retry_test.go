package selector

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryDoSucceedsMidBudget(t *testing.T) {
	t.Parallel()
	calls := 0
	err := retryDo(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryDoSpendsBudget(t *testing.T) {
	t.Parallel()
	boom := errors.New("down")
	calls := 0
	err := retryDo(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the last failure", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryDoStopPredicate(t *testing.T) {
	t.Parallel()
	fatal := errors.New("fatal")
	calls := 0
	err := retryDo(context.Background(), 5, time.Millisecond, func(int) error {
		calls++
		return fatal
	}, func(err error) bool { return errors.Is(err, fatal) })
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("stop predicate ignored: calls = %d", calls)
	}
}

func TestRetryDoZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()
	calls := 0
	_ = retryDo(context.Background(), 0, 0, func(int) error {
		calls++
		return errors.New("x")
	}, nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
