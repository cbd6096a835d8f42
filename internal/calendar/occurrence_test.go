package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roma7-7-7/livestream-notifier/internal/calendar"
)

func mustRule(t *testing.T, weekdays, at, tz string) calendar.Rule {
	t.Helper()
	rule, err := calendar.ParseRule(weekdays, at, tz)
	require.NoError(t, err)
	return rule
}

func TestNextOccurrence(t *testing.T) {
	utcRule := mustRule(t, "tue,thu", "17:00", "UTC")
	zurichRule := mustRule(t, "tuesday, thursday", "17:00", "Europe/Zurich")
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	// 2025-11-17 is a Monday
	tests := []struct {
		name string
		rule calendar.Rule
		now  time.Time
		want time.Time
	}{
		{
			name: "monday_to_tuesday_same_week",
			rule: utcRule,
			now:  time.Date(2025, time.November, 17, 10, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.November, 18, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "exact_instant_is_past",
			rule: utcRule,
			now:  time.Date(2025, time.November, 18, 17, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.November, 20, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "after_last_slot_wraps_to_next_week",
			rule: utcRule,
			now:  time.Date(2025, time.November, 20, 18, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.November, 25, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "same_day_before_time",
			rule: utcRule,
			now:  time.Date(2025, time.November, 18, 16, 59, 59, 0, time.UTC),
			want: time.Date(2025, time.November, 18, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "sub_second_before_time",
			rule: utcRule,
			now:  time.Date(2025, time.November, 18, 16, 59, 59, 999_000_000, time.UTC),
			want: time.Date(2025, time.November, 18, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "sub_second_after_time",
			rule: utcRule,
			now:  time.Date(2025, time.November, 18, 17, 0, 0, 1, time.UTC),
			want: time.Date(2025, time.November, 20, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "today_matches_but_passed",
			rule: utcRule,
			now:  time.Date(2025, time.November, 18, 20, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.November, 20, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "winter_zone",
			rule: zurichRule,
			now:  time.Date(2025, time.November, 17, 10, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.November, 18, 16, 0, 0, 0, time.UTC),
		},
		{
			name: "summer_zone",
			rule: zurichRule,
			now:  time.Date(2025, time.June, 30, 10, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.July, 1, 15, 0, 0, 0, time.UTC),
		},
		{
			name: "across_dst_change",
			// clocks go back on Sunday 2025-10-26
			rule: zurichRule,
			now:  time.Date(2025, time.October, 23, 16, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.October, 28, 16, 0, 0, 0, time.UTC),
		},
		{
			name: "now_in_other_zone",
			rule: utcRule,
			// 18:30 CET is 17:30 UTC, past Tuesday's slot
			now:  time.Date(2025, time.November, 18, 18, 30, 0, 0, zurich),
			want: time.Date(2025, time.November, 20, 17, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.NextOccurrence(tt.now, tt.rule)
			assert.Truef(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.True(t, got.After(tt.now))
			assert.Equal(t, tt.rule.Location(), got.Location())
		})
	}
}

func TestNextOccurrence_ZeroRule(t *testing.T) {
	assert.True(t, calendar.NextOccurrence(time.Now(), calendar.Rule{}).IsZero())
}

func TestNextOccurrence_IsPure(t *testing.T) {
	rule := mustRule(t, "mon", "08:30", "UTC")
	now := time.Date(2025, time.November, 19, 12, 0, 0, 0, time.UTC)

	first := calendar.NextOccurrence(now, rule)
	second := calendar.NextOccurrence(now, rule)
	assert.True(t, first.Equal(second))
	assert.True(t, time.Date(2025, time.November, 24, 8, 30, 0, 0, time.UTC).Equal(first))
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		name     string
		weekdays string
		at       string
		tz       string
		want     string
		wantDays []time.Weekday
		wantErr  assert.ErrorAssertionFunc
	}{
		{
			name:     "short_names",
			weekdays: "tue,thu",
			at:       "17:00",
			tz:       "Europe/Zurich",
			want:     "Tue,Thu 17:00 Europe/Zurich",
			wantDays: []time.Weekday{time.Tuesday, time.Thursday},
			wantErr:  assert.NoError,
		},
		{
			name:     "full_names_unsorted_with_duplicates",
			weekdays: " Friday ,MONDAY,mon",
			at:       "07:05",
			tz:       "UTC",
			want:     "Mon,Fri 07:05 UTC",
			wantDays: []time.Weekday{time.Monday, time.Friday},
			wantErr:  assert.NoError,
		},
		{
			name:     "no_weekdays",
			weekdays: " , ",
			at:       "17:00",
			tz:       "UTC",
			wantErr:  errorIs(calendar.ErrInvalidRule),
		},
		{
			name:     "unknown_weekday",
			weekdays: "tue,funday",
			at:       "17:00",
			tz:       "UTC",
			wantErr:  errorIs(calendar.ErrInvalidRule),
		},
		{
			name:     "bad_time",
			weekdays: "tue",
			at:       "25:00",
			tz:       "UTC",
			wantErr:  errorIs(calendar.ErrInvalidRule),
		},
		{
			name:     "bad_zone",
			weekdays: "tue",
			at:       "17:00",
			tz:       "Mars/Olympus_Mons",
			wantErr:  errorIs(calendar.ErrInvalidRule),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calendar.ParseRule(tt.weekdays, tt.at, tt.tz)
			if !tt.wantErr(t, err) || err != nil {
				return
			}
			assert.Equal(t, tt.want, got.String())
			assert.Equal(t, tt.wantDays, got.Weekdays())
			assert.Equal(t, tt.tz, got.Location().String())
		})
	}
}

func TestNewRule(t *testing.T) {
	_, err := calendar.NewRule([]time.Weekday{time.Tuesday}, 24, 0, time.UTC)
	assert.ErrorIs(t, err, calendar.ErrInvalidRule)

	_, err = calendar.NewRule([]time.Weekday{time.Tuesday}, 10, 60, time.UTC)
	assert.ErrorIs(t, err, calendar.ErrInvalidRule)

	_, err = calendar.NewRule([]time.Weekday{time.Tuesday}, 10, 0, nil)
	assert.ErrorIs(t, err, calendar.ErrInvalidRule)

	_, err = calendar.NewRule([]time.Weekday{time.Weekday(7)}, 10, 0, time.UTC)
	assert.ErrorIs(t, err, calendar.ErrInvalidRule)

	weekdays := []time.Weekday{time.Thursday, time.Tuesday}
	rule, err := calendar.NewRule(weekdays, 17, 0, time.FixedZone("CET", 3600))
	require.NoError(t, err)
	weekdays[0] = time.Sunday
	assert.Equal(t, []time.Weekday{time.Tuesday, time.Thursday}, rule.Weekdays())

	now := time.Date(2025, time.November, 17, 10, 0, 0, 0, time.UTC)
	assert.True(t, time.Date(2025, time.November, 18, 16, 0, 0, 0, time.UTC).Equal(calendar.NextOccurrence(now, rule)))
}

func errorIs(target error) assert.ErrorAssertionFunc {
	return func(t assert.TestingT, err error, i ...interface{}) bool {
		return assert.ErrorIs(t, err, target, i...)
	}
}
