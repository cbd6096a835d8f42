// Package calendar computes the instants of a weekly recurring event.
package calendar

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names must resolve in minimal images

	"github.com/robfig/cron/v3"
)

var ErrInvalidRule = errors.New("invalid occurrence rule")

//nolint:gochecknoglobals // parser is stateless
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Rule is a set of weekdays at a fixed time of day in a time zone,
// e.g. every Tuesday and Thursday at 17:00 Europe/Zurich.
// The zero Rule never occurs; build rules with NewRule or ParseRule.
type Rule struct {
	weekdays []time.Weekday
	hour     int
	minute   int
	loc      *time.Location

	schedule *cron.SpecSchedule
}

func NewRule(weekdays []time.Weekday, hour, minute int, loc *time.Location) (Rule, error) {
	if len(weekdays) == 0 {
		return Rule{}, fmt.Errorf("%w: no weekdays", ErrInvalidRule)
	}
	if hour < 0 || hour > 23 {
		return Rule{}, fmt.Errorf("%w: hour %d out of range", ErrInvalidRule, hour)
	}
	if minute < 0 || minute > 59 {
		return Rule{}, fmt.Errorf("%w: minute %d out of range", ErrInvalidRule, minute)
	}
	if loc == nil {
		return Rule{}, fmt.Errorf("%w: no location", ErrInvalidRule)
	}

	days := slices.Clone(weekdays)
	slices.Sort(days)
	days = slices.Compact(days)

	dow := make([]string, 0, len(days))
	for _, d := range days {
		if d < time.Sunday || d > time.Saturday {
			return Rule{}, fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, d)
		}
		dow = append(dow, strconv.Itoa(int(d)))
	}

	spec := fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(dow, ","))
	parsed, err := parser.Parse(spec)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: parse %q: %w", ErrInvalidRule, spec, err)
	}
	schedule, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return Rule{}, fmt.Errorf("%w: unexpected schedule %T", ErrInvalidRule, parsed)
	}
	schedule.Location = loc

	return Rule{
		weekdays: days,
		hour:     hour,
		minute:   minute,
		loc:      loc,
		schedule: schedule,
	}, nil
}

// ParseRule builds a Rule from its configuration form:
// weekdays "tue,thu" (short or full English names), time of day "17:00", IANA zone name.
func ParseRule(weekdays, timeOfDay, timezone string) (Rule, error) {
	var days []time.Weekday
	for _, name := range strings.Split(weekdays, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		d, ok := weekdayNames[name]
		if !ok {
			return Rule{}, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, name)
		}
		days = append(days, d)
	}

	at, err := time.Parse("15:04", strings.TrimSpace(timeOfDay))
	if err != nil {
		return Rule{}, fmt.Errorf("%w: time of day %q: %w", ErrInvalidRule, timeOfDay, err)
	}

	loc, err := time.LoadLocation(strings.TrimSpace(timezone))
	if err != nil {
		return Rule{}, fmt.Errorf("%w: time zone %q: %w", ErrInvalidRule, timezone, err)
	}

	return NewRule(days, at.Hour(), at.Minute(), loc)
}

// NextOccurrence returns the earliest instant strictly after now that matches rule.
// An instant equal to now counts as already past.
func NextOccurrence(now time.Time, rule Rule) time.Time {
	if rule.schedule == nil {
		return time.Time{}
	}
	return rule.schedule.Next(now).In(rule.loc)
}

func (r Rule) IsZero() bool {
	return r.schedule == nil
}

func (r Rule) Weekdays() []time.Weekday {
	return slices.Clone(r.weekdays)
}

func (r Rule) Location() *time.Location {
	return r.loc
}

func (r Rule) String() string {
	if r.IsZero() {
		return "never"
	}
	days := make([]string, 0, len(r.weekdays))
	for _, d := range r.weekdays {
		days = append(days, d.String()[:3])
	}
	return fmt.Sprintf("%s %02d:%02d %s", strings.Join(days, ","), r.hour, r.minute, r.loc)
}

//nolint:gochecknoglobals // lookup table
var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}
