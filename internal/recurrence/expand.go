// Package recurrence turns a RecurrenceSpec into the concrete instants a reminder fires at.
package recurrence

import (
	"math"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// MaxOccurrences bounds a single expansion. Second-granularity custom rules over a
// long window would otherwise produce millions of instants.
const MaxOccurrences = 5000

var ruleFrequencies = map[domain.Frequency]rrule.Frequency{
	domain.FrequencyYearly:  rrule.YEARLY,
	domain.FrequencyMonthly: rrule.MONTHLY,
	domain.FrequencyWeekly:  rrule.WEEKLY,
	domain.FrequencyDaily:   rrule.DAILY,
}

// Monday first, matching WeekdayMask.
var maskWeekdays = [7]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// ExpandIn expands spec after anchoring its timestamps in loc, so rule-based
// frequencies are computed in that wall clock. Zone-less dates and times keep
// their fields.
func ExpandIn(spec domain.RecurrenceSpec, loc *time.Location) []time.Time {
	return Expand(spec.In(loc))
}

// Expand returns every instant described by spec in ascending order. Wall-clock
// arithmetic uses the location carried by StartDate. A start after the end is
// clamped to the end; unusable specs expand to nothing.
func Expand(spec domain.RecurrenceSpec) []time.Time {
	if spec.StartDate.IsZero() || spec.EndDate.IsZero() {
		return nil
	}
	start, end := spec.StartDate, spec.EndDate.In(spec.StartDate.Location())
	if start.After(end) {
		start = end
	}

	if spec.Frequency == domain.FrequencyCustom {
		return expandCustom(start, end, spec.Custom)
	}
	freq, ok := ruleFrequencies[spec.Frequency]
	if !ok {
		return nil
	}
	return expandRule(freq, start, end, spec)
}

func expandRule(freq rrule.Frequency, start, end time.Time, spec domain.RecurrenceSpec) []time.Time {
	clock := start
	if !spec.Time.IsZero() {
		clock = spec.Time.In(start.Location())
	}
	opt := rrule.ROption{
		Freq:    freq,
		Dtstart: atClock(start, clock),
		Until:   atClock(end, clock),
		Count:   MaxOccurrences,
	}
	if freq == rrule.WEEKLY {
		if !spec.Weekdays.Any() {
			return nil
		}
		for i, on := range spec.Weekdays {
			if on {
				opt.Byweekday = append(opt.Byweekday, maskWeekdays[i])
			}
		}
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil
	}
	return rule.All()
}

func expandCustom(start, end time.Time, custom domain.CustomRecurrence) []time.Time {
	if custom.Num <= 0 {
		return nil
	}
	step := stepper(custom.Unit, custom.Num, end.Sub(start))
	if step == nil {
		return nil
	}
	out := []time.Time{start}
	for i := 1; i < MaxOccurrences; i++ {
		at := step(start, out[i-1], i)
		if at.After(end) || !at.After(out[i-1]) {
			break
		}
		out = append(out, at)
	}
	return out
}

// stepper returns the i-th instant after start given the previous one. A step
// longer than the window only ever yields start, so n is clamped to the window
// first and no arithmetic below can overflow. Calendar units go through AddDate
// from start so days keep their wall-clock time across DST and months keep
// their length.
func stepper(unit domain.Unit, n int, window time.Duration) func(start, prev time.Time, i int) time.Time {
	days := int(window/(24*time.Hour)) + 1
	switch unit {
	case domain.UnitSecond:
		d := time.Duration(min(n, int(window/time.Second)+1, math.MaxInt/int(time.Second))) * time.Second
		return func(_, prev time.Time, _ int) time.Time { return prev.Add(d) }
	case domain.UnitMinute:
		d := time.Duration(min(n, int(window/time.Minute)+1, math.MaxInt/int(time.Minute))) * time.Minute
		return func(_, prev time.Time, _ int) time.Time { return prev.Add(d) }
	case domain.UnitDay:
		n = min(n, days)
		return func(start, _ time.Time, i int) time.Time { return start.AddDate(0, 0, i*n) }
	case domain.UnitWeek:
		n = min(n, days/7+1)
		return func(start, _ time.Time, i int) time.Time { return start.AddDate(0, 0, 7*i*n) }
	case domain.UnitMonth:
		n = min(n, days/28+1)
		return func(start, _ time.Time, i int) time.Time { return start.AddDate(0, i*n, 0) }
	case domain.UnitYear:
		n = min(n, days/365+1)
		return func(start, _ time.Time, i int) time.Time { return start.AddDate(i*n, 0, 0) }
	}
	return nil
}

func atClock(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, day.Location())
}
