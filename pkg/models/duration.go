package models

import (
	"fmt"
	"time"
)

// Duration is the persisted shape of a ride's travel time. It is stored and
// exchanged as whole hours plus leftover minutes rather than seconds so the
// API matches what drivers actually type in.
type Duration struct {
	Hours   int `json:"hours" db:"duration_hours"`
	Minutes int `json:"minutes" db:"duration_minutes"`
}

// Validate checks the hours/minutes shape: hours must be non-negative and
// minutes must fit in [0, 60). A malformed duration is a client error, never
// a crash.
func (d Duration) Validate() error {
	if d.Hours < 0 {
		return fmt.Errorf("duration hours must be non-negative, got %d", d.Hours)
	}
	if d.Minutes < 0 || d.Minutes >= 60 {
		return fmt.Errorf("duration minutes must be in [0, 60), got %d", d.Minutes)
	}
	return nil
}

// ToTimeDuration converts to a time.Duration for arithmetic.
func (d Duration) ToTimeDuration() time.Duration {
	return time.Duration(d.Hours)*time.Hour + time.Duration(d.Minutes)*time.Minute
}

// DurationFromTime converts a time.Duration back to the hours/minutes shape,
// truncating sub-minute precision.
func DurationFromTime(td time.Duration) Duration {
	total := int(td.Minutes())
	return Duration{
		Hours:   total / 60,
		Minutes: total % 60,
	}
}
