package models

import (
	"time"

	"github.com/google/uuid"
)

// FrequencyType says how often a recurring template repeats.
type FrequencyType string

const (
	FrequencyHourly  FrequencyType = "hourly"
	FrequencyDaily   FrequencyType = "daily"
	FrequencyWeekly  FrequencyType = "weekly"
	FrequencyMonthly FrequencyType = "monthly"
)

// Valid reports whether the frequency type is one of the supported values.
func (f FrequencyType) Valid() bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Weekday is a three-letter weekday code used by weekly templates.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

var weekdayToTime = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// ToTimeWeekday maps the code onto time.Weekday. The second return is false
// for unknown codes.
func (w Weekday) ToTimeWeekday() (time.Weekday, bool) {
	d, ok := weekdayToTime[w]
	return d, ok
}

// RideTemplate is a recurring-ride definition. It never carries passengers
// itself; the recurrence expander turns it into concrete Ride rows inside
// [StartDate, EndDate].
type RideTemplate struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	DriverID         uuid.UUID     `json:"driver_id" db:"driver_id"`
	VehicleID        *uuid.UUID    `json:"vehicle_id,omitempty" db:"vehicle_id"`
	CityFrom         string        `json:"city_from" db:"city_from"`
	CityTo           string        `json:"city_to" db:"city_to"`
	AreaFrom         string        `json:"area_from" db:"area_from"`
	AreaTo           string        `json:"area_to" db:"area_to"`
	StartDate        time.Time     `json:"start_date" db:"start_date"`
	EndDate          time.Time     `json:"end_date" db:"end_date"`
	FrequencyType    FrequencyType `json:"frequency_type" db:"frequency_type"`
	Frequence        int           `json:"frequence" db:"frequence"`
	Occurrences      []Weekday     `json:"occurrences,omitempty" db:"occurrences"`
	Duration         Duration      `json:"duration"`
	Price            float64       `json:"price" db:"price"`
	Seats            int           `json:"seats" db:"seats"`
	AutomaticConfirm bool          `json:"automatic_confirm" db:"automatic_confirm"`
	Description      string        `json:"description" db:"description"`
	IsCancelled      bool          `json:"is_cancelled" db:"is_cancelled"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateTemplateRequest is the payload for creating a recurring template.
type CreateTemplateRequest struct {
	VehicleID        *uuid.UUID `json:"vehicle_id,omitempty"`
	CityFrom         string     `json:"city_from" binding:"required"`
	CityTo           string     `json:"city_to" binding:"required"`
	AreaFrom         string     `json:"area_from,omitempty"`
	AreaTo           string     `json:"area_to,omitempty"`
	StartDate        time.Time  `json:"start_date" binding:"required"`
	EndDate          time.Time  `json:"end_date" binding:"required"`
	FrequencyType    string     `json:"frequency_type" binding:"required,frequency_type"`
	Frequence        int        `json:"frequence" binding:"required,min=1"`
	Occurrences      []Weekday  `json:"occurrences,omitempty" binding:"omitempty,dive,weekday_code"`
	Duration         Duration   `json:"duration"`
	Price            float64    `json:"price" binding:"min=0"`
	Seats            int        `json:"seats" binding:"required,min=1"`
	AutomaticConfirm bool       `json:"automatic_confirm,omitempty"`
	Description      string     `json:"description,omitempty"`
}

// UpdateTemplateRequest carries the template fields a driver may change after
// creation. Route, schedule, price and duration only apply while no
// occurrence has active participations; once passengers are booked only the
// safe fields cascade.
type UpdateTemplateRequest struct {
	VehicleID        *uuid.UUID `json:"vehicle_id,omitempty"`
	CityFrom         *string    `json:"city_from,omitempty"`
	CityTo           *string    `json:"city_to,omitempty"`
	AreaFrom         *string    `json:"area_from,omitempty"`
	AreaTo           *string    `json:"area_to,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	FrequencyType    *string    `json:"frequency_type,omitempty" binding:"omitempty,frequency_type"`
	Frequence        *int       `json:"frequence,omitempty" binding:"omitempty,min=1"`
	Occurrences      []Weekday  `json:"occurrences,omitempty" binding:"omitempty,dive,weekday_code"`
	Duration         *Duration  `json:"duration,omitempty"`
	Price            *float64   `json:"price,omitempty" binding:"omitempty,min=0"`
	Seats            *int       `json:"seats,omitempty"`
	AutomaticConfirm *bool      `json:"automatic_confirm,omitempty"`
	Description      *string    `json:"description,omitempty"`
}

// RequestsRegeneration reports whether the patch touches fields that can only
// change by discarding and regenerating the unbooked occurrences.
func (r *UpdateTemplateRequest) RequestsRegeneration() bool {
	return r.CityFrom != nil || r.CityTo != nil ||
		r.AreaFrom != nil || r.AreaTo != nil ||
		r.StartDate != nil || r.EndDate != nil ||
		r.FrequencyType != nil || r.Frequence != nil ||
		len(r.Occurrences) > 0 ||
		r.Duration != nil || r.Price != nil
}
