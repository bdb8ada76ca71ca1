// Package calendar implements the working-time arithmetic behind teacher
// SLA deadlines. It is pure: callers supply the holiday data, nothing here
// touches storage or the clock.
package calendar

import "time"

const dateKeyLayout = "2006-01-02"

// Calendar answers whether a calendar date counts as working time. The
// default policy is that every day except Sunday works; Overrides adjusts
// individual dates in either direction (a holiday date maps to false, a
// date explicitly flagged as working maps to true, which also lets an
// admin declare a working Sunday).
type Calendar struct {
	Overrides map[string]bool
}

// New builds a Calendar from explicit date rules.
func New(overrides map[time.Time]bool) Calendar {
	c := Calendar{Overrides: make(map[string]bool, len(overrides))}
	for d, working := range overrides {
		c.Overrides[d.Format(dateKeyLayout)] = working
	}
	return c
}

// IsWorkingDate reports whether the date of t counts toward SLA hours.
// Granularity is the whole calendar date: a holiday shorter than a day
// still blocks the date.
func (c Calendar) IsWorkingDate(t time.Time) bool {
	if working, ok := c.Overrides[t.Format(dateKeyLayout)]; ok {
		return working
	}
	return t.Weekday() != time.Sunday
}

// AddSlaHours walks forward from start one hour at a time, counting only
// hours that fall on working dates, and returns the instant reached once
// hours working hours have elapsed. hours must be positive; non-positive
// values return start unchanged.
//
// The walk is O(hours), which is fine for the 24/48 hour SLAs this domain
// uses; the semantics that matter are the date-level exclusions, not the
// step size.
func (c Calendar) AddSlaHours(start time.Time, hours int) time.Time {
	deadline := start
	remaining := hours
	for remaining > 0 {
		deadline = deadline.Add(time.Hour)
		if c.IsWorkingDate(deadline) {
			remaining--
		}
	}
	return deadline
}
