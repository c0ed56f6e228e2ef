package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/recurrence"
)

type expandOptions struct {
	start     string
	end       string
	frequency string
	weekdays  string
	clock     string
	every     int
	unit      string
	timezone  string
}

func newExpandCommand() *cobra.Command {
	opts := &expandOptions{}
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the occurrences of a recurrence",
		Long:  "Expand a reminder recurrence the same way the server does and print one instant per line",
		Example: `  amika-ctl expand --start 2024-06-03 --end 2024-06-30 --frequency weekly --weekdays mon,thu --time 18:30
  amika-ctl expand --start 2024-06-03 --end 2024-12-31 --frequency custom --every 2 --unit weeks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, loc, err := opts.spec()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			occ := recurrence.ExpandIn(spec, loc)
			for _, at := range occ {
				fmt.Fprintln(out, at.In(loc).Format(time.RFC3339))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d occurrences\n", len(occ))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "first day, YYYY-MM-DD or RFC 3339")
	f.StringVar(&opts.end, "end", "", "last day, YYYY-MM-DD or RFC 3339")
	f.StringVar(&opts.frequency, "frequency", "weekly", "daily, weekly, monthly, yearly or custom")
	f.StringVar(&opts.weekdays, "weekdays", "", "weekly only: comma separated days, e.g. mon,wed,fri")
	f.StringVar(&opts.clock, "time", "09:00", "wall clock time HH:MM")
	f.IntVar(&opts.every, "every", 1, "custom only: step count")
	f.StringVar(&opts.unit, "unit", "day", "custom only: second, minute, day, week, month or year")
	f.StringVar(&opts.timezone, "tz", "Local", "IANA time zone of the wall clock")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

var weekdayIndex = map[string]int{"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6}

func (o *expandOptions) spec() (domain.RecurrenceSpec, *time.Location, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return domain.RecurrenceSpec{}, nil, err
	}

	var spec domain.RecurrenceSpec
	if spec.StartDate, err = parseDay(o.start, loc); err != nil {
		return spec, nil, fmt.Errorf("--start: %w", err)
	}
	if spec.EndDate, err = parseDay(o.end, loc); err != nil {
		return spec, nil, fmt.Errorf("--end: %w", err)
	}
	if spec.Frequency, err = domain.ParseFrequency(o.frequency); err != nil {
		return spec, nil, err
	}

	clock, err := time.ParseInLocation("15:04", o.clock, loc)
	if err != nil {
		return spec, nil, fmt.Errorf("--time: %w", err)
	}
	spec.Time = time.Date(spec.StartDate.Year(), spec.StartDate.Month(), spec.StartDate.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)

	for _, d := range strings.Split(o.weekdays, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		i, ok := weekdayIndex[d[:min(3, len(d))]]
		if !ok {
			return spec, nil, fmt.Errorf("--weekdays: unknown day %q", d)
		}
		spec.Weekdays[i] = true
	}

	spec.Custom = domain.CustomRecurrence{Num: o.every}
	if err := spec.Custom.Unit.UnmarshalJSON([]byte(strconv.Quote(o.unit))); err != nil {
		return spec, nil, err
	}
	return spec, loc, nil
}

func parseDay(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, nil
	}
	return domain.ParseFlexibleTime(raw)
}
