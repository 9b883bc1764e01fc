package pipeline

import (
	"testing"
	"time"
)

func TestNewRunContextUsesFixedZone(t *testing.T) {
	t.Parallel()
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("zone db unavailable: %v", err)
	}

	// 03:00 UTC on March 2 is still March 1 in Los Angeles.
	rc := NewRunContext(time.Date(2026, time.March, 2, 3, 0, 0, 0, time.UTC), la)
	if rc.DateKey != "March 1, 2026" {
		t.Fatalf("DateKey = %q", rc.DateKey)
	}
	if rc.Month != 3 || rc.Day != 1 {
		t.Fatalf("month/day = %d/%d", rc.Month, rc.Day)
	}
}

func TestNewRunContextNilLocation(t *testing.T) {
	t.Parallel()
	rc := NewRunContext(time.Date(2026, time.July, 4, 12, 0, 0, 0, time.UTC), nil)
	if rc.DateKey != "July 4, 2026" {
		t.Fatalf("DateKey = %q", rc.DateKey)
	}
}
