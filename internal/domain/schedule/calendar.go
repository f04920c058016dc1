package schedule

import "time"

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DaysUntil returns the number of calendar days from now to due, both taken in loc.
// It is negative once the due day has passed.
func DaysUntil(due, now time.Time, loc *time.Location) int {
	d := due.In(loc)
	n := now.In(loc)
	// Compare in UTC so DST shifts in loc cannot produce 23h or 25h days.
	dd := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	nd := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(dd.Sub(nd).Hours() / 24)
}

// NextOccurrence is the first date after today whose day of month is dayOfMonth:
// this month if today's day is still before it, otherwise next month.
// dayOfMonth is limited to 1..28 so the result always exists.
func NextOccurrence(now time.Time, dayOfMonth int, loc *time.Location) time.Time {
	today := now.In(loc)
	if today.Day() >= dayOfMonth {
		return time.Date(today.Year(), today.Month()+1, dayOfMonth, 0, 0, 0, 0, loc)
	}
	return time.Date(today.Year(), today.Month(), dayOfMonth, 0, 0, 0, 0, loc)
}
