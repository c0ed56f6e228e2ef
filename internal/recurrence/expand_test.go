package recurrence_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/recurrence"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clock(h, m int) time.Time {
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC)
}

func TestExpandCustomDailyIsInclusive(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 3, 1),
		EndDate:   day(2024, 3, 6),
		Frequency: domain.FrequencyCustom,
		Custom:    domain.CustomRecurrence{Num: 1, Unit: domain.UnitDay},
	}

	got := recurrence.Expand(spec)

	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, 24*time.Hour, got[i].Sub(got[i-1]))
	}
	assert.Equal(t, spec.StartDate, got[0])
	assert.Equal(t, spec.EndDate, got[5])
}

func TestExpandCustomMonthsUseCalendar(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 15),
		EndDate:   day(2024, 5, 15),
		Frequency: domain.FrequencyCustom,
		Custom:    domain.CustomRecurrence{Num: 2, Unit: domain.UnitMonth},
	}

	got := recurrence.Expand(spec)

	assert.Equal(t, []time.Time{day(2024, 1, 15), day(2024, 3, 15), day(2024, 5, 15)}, got)
}

func TestExpandCustomKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	spec := domain.RecurrenceSpec{
		StartDate: time.Date(2024, 3, 8, 9, 0, 0, 0, loc),
		EndDate:   time.Date(2024, 3, 12, 9, 0, 0, 0, loc),
		Frequency: domain.FrequencyCustom,
		Custom:    domain.CustomRecurrence{Num: 1, Unit: domain.UnitDay},
	}

	got := recurrence.Expand(spec)

	require.Len(t, got, 5)
	for _, at := range got {
		assert.Equal(t, 9, at.Hour())
	}
}

func TestExpandCustomRejectsNonPositiveStep(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 3, 1),
		EndDate:   day(2024, 3, 6),
		Frequency: domain.FrequencyCustom,
		Custom:    domain.CustomRecurrence{Num: 0, Unit: domain.UnitDay},
	}
	assert.Empty(t, recurrence.Expand(spec))
}

func TestExpandCustomIsCapped(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 1),
		EndDate:   day(2025, 1, 1),
		Frequency: domain.FrequencyCustom,
		Custom:    domain.CustomRecurrence{Num: 1, Unit: domain.UnitSecond},
	}
	assert.Len(t, recurrence.Expand(spec), recurrence.MaxOccurrences)
}

func TestExpandWeeklyWithEmptyMaskIsEmpty(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 1),
		EndDate:   day(2024, 2, 1),
		Frequency: domain.FrequencyWeekly,
		Time:      clock(9, 30),
	}
	assert.Empty(t, recurrence.Expand(spec))
}

func TestExpandWeeklyMaskStartsOnMonday(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 1), // a Monday
		EndDate:   day(2024, 1, 14),
		Frequency: domain.FrequencyWeekly,
		Weekdays:  domain.WeekdayMask{true, false, true},
		Time:      clock(9, 30),
	}

	got := recurrence.Expand(spec)

	require.Len(t, got, 4)
	wantDays := []time.Weekday{time.Monday, time.Wednesday, time.Monday, time.Wednesday}
	for i, at := range got {
		assert.Equal(t, wantDays[i], at.Weekday())
		assert.Equal(t, 9, at.Hour())
		assert.Equal(t, 30, at.Minute())
	}
}

func TestExpandMonthlyAndDaily(t *testing.T) {
	monthly := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 15),
		EndDate:   day(2024, 4, 15),
		Frequency: domain.FrequencyMonthly,
		Time:      clock(18, 0),
	}
	got := recurrence.Expand(monthly)
	require.Len(t, got, 4)
	assert.Equal(t, time.Date(2024, 4, 15, 18, 0, 0, 0, time.UTC), got[3])

	daily := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 1),
		EndDate:   day(2024, 1, 3),
		Frequency: domain.FrequencyDaily,
		Time:      clock(7, 5),
	}
	assert.Len(t, recurrence.Expand(daily), 3)
}

func TestExpandClampsStartAfterEnd(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 6, 10),
		EndDate:   day(2024, 6, 1),
		Frequency: domain.FrequencyDaily,
		Time:      clock(8, 0),
	}

	got := recurrence.Expand(spec)

	assert.Equal(t, []time.Time{time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}, got)
}

func TestExpandIsDeterministic(t *testing.T) {
	spec := domain.RecurrenceSpec{
		StartDate: day(2024, 1, 1),
		EndDate:   day(2024, 12, 31),
		Frequency: domain.FrequencyWeekly,
		Weekdays:  domain.WeekdayMask{false, false, false, false, true},
		Time:      clock(12, 0),
	}
	assert.Equal(t, recurrence.Expand(spec), recurrence.Expand(spec))
}

func TestExpandInMovesToLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	spec := domain.RecurrenceSpec{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, loc),
		EndDate:   time.Date(2024, 1, 1, 23, 0, 0, 0, loc),
		Frequency: domain.FrequencyDaily,
		Time:      time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), // 09:00 in loc
	}

	got := recurrence.ExpandIn(spec, loc)

	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Hour())
	assert.Equal(t, loc, got[0].Location())
}

func TestExpandInReadsZonelessValuesAsLocalWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	var spec domain.RecurrenceSpec
	require.NoError(t, json.Unmarshal([]byte(`{"startDate":"2030-03-11","endDate":"2030-03-11","frequency":"daily","time":"2030-03-11T09:00:00"}`), &spec))

	got := recurrence.ExpandIn(spec, loc)

	require.Len(t, got, 1)
	assert.True(t, time.Date(2030, 3, 11, 9, 0, 0, 0, loc).Equal(got[0]), "got %s", got[0])
}

func TestExpandInKeepsZonedInstants(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	var spec domain.RecurrenceSpec
	require.NoError(t, json.Unmarshal([]byte(`{"startDate":"2030-03-11T04:00:00Z","endDate":"2030-03-11T04:00:00Z","frequency":"daily","time":"2030-03-11T13:00:00Z"}`), &spec))

	got := recurrence.ExpandIn(spec, loc)

	require.Len(t, got, 1)
	assert.True(t, time.Date(2030, 3, 11, 9, 0, 0, 0, loc).Equal(got[0]), "got %s", got[0])
}

func TestExpandCustomHugeStepStaysOrdered(t *testing.T) {
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	for _, unit := range []domain.Unit{domain.UnitSecond, domain.UnitMinute, domain.UnitDay, domain.UnitWeek, domain.UnitMonth, domain.UnitYear} {
		t.Run(string(unit), func(t *testing.T) {
			spec := domain.RecurrenceSpec{
				StartDate: start,
				EndDate:   start.AddDate(0, 0, 1),
				Frequency: domain.FrequencyCustom,
				Custom:    domain.CustomRecurrence{Num: 10_000_000_000, Unit: unit},
			}

			assert.Equal(t, []time.Time{start}, recurrence.Expand(spec))
		})
	}
}

func TestExpandCustomIsAscendingWithinWindow(t *testing.T) {
	start := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	spec := domain.RecurrenceSpec{
		StartDate: start,
		EndDate:   start.Add(time.Hour),
		Frequency: domain.FrequencyCustom,
		Custom:    domain.CustomRecurrence{Num: 7, Unit: domain.UnitMinute},
	}

	got := recurrence.Expand(spec)

	require.Len(t, got, 9)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].After(got[i-1]))
		assert.False(t, got[i].After(spec.EndDate))
	}
}
