// Package provider implements the generation tiers that pick one event from
// the day's candidate pool.
package provider

import (
	"context"
	"errors"
	"fmt"

	"otdbot/internal/feed"
)

// Constraints describe the structural shape required of a pick.
type Constraints struct {
	MaxWords      int
	MaxEventChars int
}

// PickRequest is the input handed to a tier.
type PickRequest struct {
	// DateKey is the canonical day string ("March 1, 2026").
	DateKey    string
	Candidates []feed.Candidate
	// Exclusions are identities that must not be picked again.
	Exclusions []string
	// Recent holds short "year: event" summaries of the latest posts,
	// quoted in the prompt to steer topic variety.
	Recent      []string
	Constraints Constraints
}

// Provider is one generation tier. Pick returns the raw model text, which is
// expected to contain one JSON object (possibly wrapped in incidental
// formatting) matching the selection shape.
type Provider interface {
	Name() string
	Pick(ctx context.Context, req PickRequest) (string, error)
}

// errPermanent marks provider failures that retrying cannot fix
// (bad API key, malformed request). The selector skips the remaining
// attempt budget for these and advances to the next tier.
var errPermanent = errors.New("permanent provider error")

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errPermanent, err)
}

func permanent(err error) error { return Permanent(err) }

// IsPermanent reports whether err is a non-retriable provider failure.
func IsPermanent(err error) bool { return errors.Is(err, errPermanent) }
