package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency selects how a RecurrenceSpec repeats.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
	FrequencyCustom  Frequency = "custom"
)

// UnmarshalJSON accepts frequency names in any case as well as the numeric rule
// codes stored by the web client (0 yearly, 1 monthly, 2 weekly, 3 daily).
func (f *Frequency) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	parsed, err := ParseFrequency(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFrequency maps a name or numeric rule code to a Frequency.
func ParseFrequency(raw string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return "", nil
	case "0", "yearly":
		return FrequencyYearly, nil
	case "1", "monthly":
		return FrequencyMonthly, nil
	case "2", "weekly":
		return FrequencyWeekly, nil
	case "3", "daily":
		return FrequencyDaily, nil
	case "custom":
		return FrequencyCustom, nil
	}
	return "", fmt.Errorf("unknown recurrence frequency %q", raw)
}

// Unit is the step size of a custom recurrence.
type Unit string

const (
	UnitSecond Unit = "second"
	UnitMinute Unit = "minute"
	UnitDay    Unit = "day"
	UnitWeek   Unit = "week"
	UnitMonth  Unit = "month"
	UnitYear   Unit = "year"
)

// UnmarshalJSON accepts singular, plural and capitalized unit names.
func (u *Unit) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = Unit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s"))
	return nil
}

// WeekdayMask holds one flag per weekday, index 0 is Monday.
type WeekdayMask [7]bool

// Any reports whether at least one weekday is selected.
func (m WeekdayMask) Any() bool {
	for _, on := range m {
		if on {
			return true
		}
	}
	return false
}

// CustomRecurrence is "every Num Unit".
type CustomRecurrence struct {
	Num  int  `json:"num"`
	Unit Unit `json:"unit"`
}

// UnmarshalJSON tolerates a numeric Num sent as a string.
func (c *CustomRecurrence) UnmarshalJSON(data []byte) error {
	var raw struct {
		Num  json.RawMessage `json:"num"`
		Unit Unit            `json:"unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Unit = raw.Unit
	c.Num = 0
	num := strings.Trim(string(bytes.TrimSpace(raw.Num)), `"`)
	if num == "" || num == "null" {
		return nil
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return fmt.Errorf("custom recurrence num %q: %w", num, err)
	}
	c.Num = n
	return nil
}

// RecurrenceSpec describes when reminders for one contact method fire.
type RecurrenceSpec struct {
	StartDate  time.Time        `json:"startDate"`
	EndDate    time.Time        `json:"endDate"`
	Frequency  Frequency        `json:"frequency"`
	Weekdays   WeekdayMask      `json:"weekdays"`
	Time       time.Time        `json:"time"`
	Custom     CustomRecurrence `json:"customRecurrence"`
	CustomText string           `json:"customRecurrenceText,omitempty"`
}

// UnmarshalJSON accepts empty strings and date-only values for the time fields.
func (s *RecurrenceSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		StartDate  string           `json:"startDate"`
		EndDate    string           `json:"endDate"`
		Frequency  Frequency        `json:"frequency"`
		Weekdays   []bool           `json:"weekdays"`
		Time       string           `json:"time"`
		Custom     CustomRecurrence `json:"customRecurrence"`
		CustomText string           `json:"customRecurrenceText"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	out := RecurrenceSpec{Frequency: raw.Frequency, Custom: raw.Custom, CustomText: raw.CustomText}
	if out.StartDate, err = ParseFlexibleTime(raw.StartDate); err != nil {
		return fmt.Errorf("startDate: %w", err)
	}
	if out.EndDate, err = ParseFlexibleTime(raw.EndDate); err != nil {
		return fmt.Errorf("endDate: %w", err)
	}
	if out.Time, err = ParseFlexibleTime(raw.Time); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	for i := 0; i < len(raw.Weekdays) && i < len(out.Weekdays); i++ {
		out.Weekdays[i] = raw.Weekdays[i]
	}
	*s = out
	return nil
}

// In returns the spec with its timestamps anchored in loc.
func (s RecurrenceSpec) In(loc *time.Location) RecurrenceSpec {
	s.StartDate = AnchorIn(s.StartDate, loc)
	s.EndDate = AnchorIn(s.EndDate, loc)
	s.Time = AnchorIn(s.Time, loc)
	return s
}

// ReminderFrequency binds a recurrence to a contact method and caches its expansion.
type ReminderFrequency struct {
	Method      string         `json:"method"`
	Frequency   RecurrenceSpec `json:"frequency"`
	Occurrences []time.Time    `json:"occurrences"`
}

// UnmarshalJSON drops occurrence values that are not timestamps; occurrences are
// recomputed from the recurrence whenever a relation is written.
func (r *ReminderFrequency) UnmarshalJSON(data []byte) error {
	var raw struct {
		Method      string            `json:"method"`
		Frequency   RecurrenceSpec    `json:"frequency"`
		Occurrences []json.RawMessage `json:"occurrences"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Method = raw.Method
	r.Frequency = raw.Frequency
	r.Occurrences = nil
	for _, o := range raw.Occurrences {
		var s string
		if json.Unmarshal(o, &s) != nil {
			continue
		}
		if t, err := ParseFlexibleTime(s); err == nil && !t.IsZero() {
			r.Occurrences = append(r.Occurrences, t)
		}
	}
	return nil
}

// Occurrence is one concrete reminder instant.
type Occurrence struct {
	UserID     UserID
	RelationID RelationID
	Method     string
	At         time.Time
}

// Key identifies the occurrence within a user's job set.
func (o Occurrence) Key() string {
	return fmt.Sprintf("%s/%s/%s", o.RelationID, o.Method, o.At.UTC().Format(time.RFC3339))
}

// WallClock marks a timestamp that was written without a zone. It carries date and
// clock fields only; AnchorIn places it in a real location.
var WallClock = time.FixedZone("wallclock", 0)

var flexibleLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
}

// ParseFlexibleTime parses the timestamp formats produced by the web client and by
// the classifier agent. An empty string yields the zero time. Values without an
// offset come back in WallClock.
func ParseFlexibleTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, f := range flexibleLayouts {
		loc := WallClock
		if f.zoned {
			loc = time.UTC
		}
		if t, err := time.ParseInLocation(f.layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// AnchorIn reads a WallClock time as local time in loc. Any other time is an
// instant already and is only converted.
func AnchorIn(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() || loc == nil {
		return t
	}
	if t.Location() == WallClock {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return t.In(loc)
}
