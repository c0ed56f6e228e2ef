package reminders

import "time"

// onceSchedule is a cron.Schedule that yields a single instant.
type onceSchedule struct {
	at time.Time
}

// Next returns the instant while it is still ahead and the zero time afterwards,
// which cron treats as never.
func (s onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}
