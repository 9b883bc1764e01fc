package pipeline

import "time"

// dateKeyLayout renders the human-readable day marker stored in history and
// shown in notifications, e.g. "March 1, 2026".
const dateKeyLayout = "January 2, 2006"

// RunContext pins one run to a single calendar day in a fixed zone. Every
// stage reads the day from here so a run that straddles midnight stays
// internally consistent.
type RunContext struct {
	Now      time.Time
	Location *time.Location
	DateKey  string
	Month    int
	Day      int
}

func NewRunContext(now time.Time, loc *time.Location) RunContext {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return RunContext{
		Now:      local,
		Location: loc,
		DateKey:  local.Format(dateKeyLayout),
		Month:    int(local.Month()),
		Day:      local.Day(),
	}
}
