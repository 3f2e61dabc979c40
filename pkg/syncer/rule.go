package syncer

import "time"

// Rule decides when a manual data refresh becomes eligible. Every
// computation runs in the fixed reference zone so the daily cutoff is
// the same wall-clock moment for all viewers regardless of locale.
type Rule struct {
	Loc        *time.Location
	CutoffHour int
}

// NextAvailable returns the earliest instant a sync is allowed, given
// the last successful sync and the current time. A zero result means a
// sync is allowed immediately. A zero lastSync means never synced.
//
// Semantics: once per reference-zone calendar day, eligible from the
// cutoff hour onward (the cutoff instant itself is eligible). A sync at
// or after the cutoff locks the day; the next window opens at the next
// day's cutoff.
func (r Rule) NextAvailable(lastSync, now time.Time) time.Time {
	nowRef := now.In(r.Loc)
	cutoff := time.Date(nowRef.Year(), nowRef.Month(), nowRef.Day(), r.CutoffHour, 0, 0, 0, r.Loc)

	// A sync at or after today's cutoff consumed today's window. A sync
	// earlier the same day (or any prior day) does not.
	if !lastSync.IsZero() {
		lastRef := lastSync.In(r.Loc)
		if sameDay(lastRef, nowRef) && !lastRef.Before(cutoff) {
			// Next calendar day at the cutoff hour. Built from calendar
			// components rather than +24h so the wall-clock hour holds
			// across DST transitions.
			return time.Date(nowRef.Year(), nowRef.Month(), nowRef.Day()+1, r.CutoffHour, 0, 0, 0, r.Loc)
		}
	}

	if !nowRef.Before(cutoff) {
		return time.Time{}
	}
	return cutoff
}

// sameDay compares calendar days; both arguments must already be in
// the reference zone.
func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
