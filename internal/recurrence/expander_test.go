package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/models"
)

func template(frequency models.FrequencyType, frequence int, start, end time.Time, days ...models.Weekday) *models.RideTemplate {
	return &models.RideTemplate{
		FrequencyType: frequency,
		Frequence:     frequence,
		StartDate:     start,
		EndDate:       end,
		Occurrences:   days,
	}
}

func date(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestExpand_Hourly(t *testing.T) {
	// Every 6 hours across one day: 08:00, 14:00, 20:00.
	tpl := template(models.FrequencyHourly, 6, date(2026, 9, 1, 8), date(2026, 9, 1, 23))

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, date(2026, 9, 1, 8), out[0])
	assert.Equal(t, date(2026, 9, 1, 14), out[1])
	assert.Equal(t, date(2026, 9, 1, 20), out[2])
}

func TestExpand_DailyInclusiveBounds(t *testing.T) {
	tpl := template(models.FrequencyDaily, 1, date(2026, 9, 1, 8), date(2026, 9, 5, 8))

	out, err := Expand(tpl)

	require.NoError(t, err)
	assert.Len(t, out, 5, "both bounds are inclusive")
}

func TestExpand_DailyEveryOtherDay(t *testing.T) {
	tpl := template(models.FrequencyDaily, 2, date(2026, 9, 1, 8), date(2026, 9, 8, 8))

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, date(2026, 9, 7, 8), out[3])
}

func TestExpand_WeeklyTwoDaysShortRange(t *testing.T) {
	// 2026-09-02 is a Wednesday. Six days of range cover exactly one Monday
	// (the 7th) and no second Wednesday beyond the start itself.
	start := date(2026, 9, 2, 9) // Wednesday
	end := date(2026, 9, 8, 9)

	tpl := template(models.FrequencyWeekly, 1, start, end, models.Monday, models.Wednesday)

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, date(2026, 9, 2, 9), out[0]) // the starting Wednesday
	assert.Equal(t, date(2026, 9, 7, 9), out[1]) // the following Monday
}

func TestExpand_WeeklyKeepsTimeOfDayAndOrder(t *testing.T) {
	start := date(2026, 9, 1, 17) // Tuesday
	end := date(2026, 9, 15, 17)

	tpl := template(models.FrequencyWeekly, 1, start, end, models.Friday, models.Tuesday)

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, ts := range out {
		assert.Equal(t, 17, ts.Hour())
		if i > 0 {
			assert.True(t, out[i-1].Before(ts), "occurrences must be sorted")
		}
	}
}

func TestExpand_WeeklyEveryOtherWeek(t *testing.T) {
	start := date(2026, 9, 7, 8) // Monday
	end := date(2026, 10, 5, 8)

	tpl := template(models.FrequencyWeekly, 2, start, end, models.Monday)

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, date(2026, 9, 21, 8), out[1])
	assert.Equal(t, date(2026, 10, 5, 8), out[2])
}

func TestExpand_MonthlySkipsShortMonths(t *testing.T) {
	// The 31st does not exist in September or November.
	tpl := template(models.FrequencyMonthly, 1, date(2026, 8, 31, 10), date(2026, 12, 31, 10))

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, date(2026, 8, 31, 10), out[0])
	assert.Equal(t, date(2026, 10, 31, 10), out[1])
	assert.Equal(t, date(2026, 12, 31, 10), out[2])
}

func TestExpand_MonthlyEveryThirdMonth(t *testing.T) {
	tpl := template(models.FrequencyMonthly, 3, date(2026, 1, 15, 7), date(2026, 12, 31, 23))

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, date(2026, 10, 15, 7), out[3])
}

func TestExpand_Validation(t *testing.T) {
	tests := []struct {
		name string
		tpl  *models.RideTemplate
	}{
		{
			name: "end before start",
			tpl:  template(models.FrequencyDaily, 1, date(2026, 9, 5, 8), date(2026, 9, 1, 8)),
		},
		{
			name: "end equals start",
			tpl:  template(models.FrequencyDaily, 1, date(2026, 9, 1, 8), date(2026, 9, 1, 8)),
		},
		{
			name: "zero frequence",
			tpl:  template(models.FrequencyDaily, 0, date(2026, 9, 1, 8), date(2026, 9, 5, 8)),
		},
		{
			name: "unknown frequency type",
			tpl:  template("yearly", 1, date(2026, 9, 1, 8), date(2026, 9, 5, 8)),
		},
		{
			name: "weekly without weekdays",
			tpl:  template(models.FrequencyWeekly, 1, date(2026, 9, 1, 8), date(2026, 9, 30, 8)),
		},
		{
			name: "weekly with bad weekday code",
			tpl:  template(models.FrequencyWeekly, 1, date(2026, 9, 1, 8), date(2026, 9, 30, 8), models.Weekday("MONDAY")),
		},
		{
			name: "weekly range missing every listed day",
			tpl:  template(models.FrequencyWeekly, 1, date(2026, 9, 1, 8), date(2026, 9, 2, 8), models.Friday),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.tpl)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestExpand_RejectsOversizedSchedules(t *testing.T) {
	// Hourly over a full year is far beyond the occurrence cap.
	tpl := template(models.FrequencyHourly, 1, date(2026, 1, 1, 0), date(2026, 12, 31, 23))

	_, err := Expand(tpl)

	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestExpand_SingleOccurrence(t *testing.T) {
	// A range shorter than one step yields only the start itself.
	start := date(2026, 9, 1, 8)
	tpl := template(models.FrequencyDaily, 1, start, start.Add(time.Hour))

	out, err := Expand(tpl)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, start, out[0])
}
