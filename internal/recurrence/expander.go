package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/trawell/rides-service/pkg/common"
	"github.com/trawell/rides-service/pkg/models"
)

// maxOccurrences caps how many rides a single template may generate. An
// hourly template over a year would otherwise create thousands of rows in
// one request.
const maxOccurrences = 744

// Expand turns a template's schedule into the concrete departure timestamps
// inside [StartDate, EndDate], both bounds inclusive. It is a pure function;
// the caller decides what to do with the timestamps.
func Expand(tpl *models.RideTemplate) ([]time.Time, error) {
	if !tpl.EndDate.After(tpl.StartDate) {
		return nil, common.NewValidationError("end date must be after start date")
	}
	if tpl.Frequence < 1 {
		return nil, common.NewValidationError("frequence must be at least 1")
	}

	var (
		out []time.Time
		err error
	)

	switch tpl.FrequencyType {
	case models.FrequencyHourly:
		out = expandByStep(tpl.StartDate, tpl.EndDate, func(t time.Time) time.Time {
			return t.Add(time.Duration(tpl.Frequence) * time.Hour)
		})
	case models.FrequencyDaily:
		out = expandByStep(tpl.StartDate, tpl.EndDate, func(t time.Time) time.Time {
			return t.AddDate(0, 0, tpl.Frequence)
		})
	case models.FrequencyWeekly:
		out, err = expandWeekly(tpl)
		if err != nil {
			return nil, err
		}
	case models.FrequencyMonthly:
		out = expandMonthly(tpl)
	default:
		return nil, common.NewValidationError(fmt.Sprintf("unknown frequency type %q", tpl.FrequencyType))
	}

	if len(out) == 0 {
		return nil, common.NewValidationError("schedule produces no rides inside the date range")
	}
	if len(out) > maxOccurrences {
		return nil, common.NewValidationError(
			fmt.Sprintf("schedule produces %d rides, the maximum is %d", len(out), maxOccurrences))
	}

	return out, nil
}

func expandByStep(start, end time.Time, step func(time.Time) time.Time) []time.Time {
	var out []time.Time
	for t := start; !t.After(end); t = step(t) {
		out = append(out, t)
		if len(out) > maxOccurrences {
			break
		}
	}
	return out
}

// expandWeekly generates one series per weekday code, every Frequence weeks,
// then merges them in chronological order. Each occurrence keeps the
// time-of-day of the template's start date.
func expandWeekly(tpl *models.RideTemplate) ([]time.Time, error) {
	if len(tpl.Occurrences) == 0 {
		return nil, common.NewValidationError("weekly templates need at least one weekday")
	}

	seen := make(map[time.Time]struct{})
	var out []time.Time

	for _, code := range tpl.Occurrences {
		weekday, ok := code.ToTimeWeekday()
		if !ok {
			return nil, common.NewValidationError(fmt.Sprintf("unknown weekday code %q", code))
		}

		// First matching weekday at or after the start.
		first := tpl.StartDate
		offset := (int(weekday) - int(first.Weekday()) + 7) % 7
		first = first.AddDate(0, 0, offset)

		for t := first; !t.After(tpl.EndDate); t = t.AddDate(0, 0, 7*tpl.Frequence) {
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				out = append(out, t)
			}
			if len(out) > maxOccurrences {
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// expandMonthly repeats the start date's day-of-month every Frequence months.
// Months that do not have that day are skipped rather than clamped: a ride
// on the 31st simply does not run in February.
func expandMonthly(tpl *models.RideTemplate) []time.Time {
	start := tpl.StartDate
	day := start.Day()

	var out []time.Time
	for m := 0; ; m += tpl.Frequence {
		anchor := time.Date(start.Year(), start.Month(), 1,
			start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
		anchor = anchor.AddDate(0, m, 0)

		if anchor.After(tpl.EndDate) {
			break
		}

		candidate := anchor.AddDate(0, 0, day-1)
		if candidate.Month() != anchor.Month() {
			continue // the month is too short for this day
		}
		if candidate.Before(start) || candidate.After(tpl.EndDate) {
			continue
		}

		out = append(out, candidate)
		if len(out) > maxOccurrences {
			break
		}
	}

	return out
}
