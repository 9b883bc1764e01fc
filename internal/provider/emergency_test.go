package provider

import (
	"context"
	"testing"
)

func TestEmergencyDeterministicPerDay(t *testing.T) {
	t.Parallel()
	e := NewEmergency("emergency")
	req := PickRequest{DateKey: "March 1, 2026"}

	a, err := e.Pick(context.Background(), req)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	b, err := e.Pick(context.Background(), req)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if a != b {
		t.Fatal("same day must yield the same emergency pick")
	}

	pick, err := ExtractPick(a)
	if err != nil {
		t.Fatalf("emergency output must be parseable: %v", err)
	}
	if pick.Year == "" || pick.Event == "" || pick.Link == "" {
		t.Fatalf("incomplete emergency pick: %+v", pick)
	}
}

func TestEmergencySkipsExcluded(t *testing.T) {
	t.Parallel()
	e := NewEmergency("")
	req := PickRequest{DateKey: "March 1, 2026"}

	first, _ := e.Pick(context.Background(), req)
	pick, err := ExtractPick(first)
	if err != nil {
		t.Fatalf("ExtractPick: %v", err)
	}

	// Excluding the day's natural pick forces the next pool entry.
	req.Exclusions = []string{pick.Link}
	second, _ := e.Pick(context.Background(), req)
	other, err := ExtractPick(second)
	if err != nil {
		t.Fatalf("ExtractPick: %v", err)
	}
	if other.Link == pick.Link {
		t.Fatal("excluded identity was picked again")
	}
}
