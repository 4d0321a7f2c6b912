package validation

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validate is the global validator instance.
var Validate *validator.Validate

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("weekday_code", validateWeekdayCode)
	_ = Validate.RegisterValidation("frequency_type", validateFrequencyType)
	_ = Validate.RegisterValidation("decision", validateDecision)
}

// RegisterBindings installs the custom validators on gin's binding engine so
// request structs can use them in binding tags.
func RegisterBindings() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("weekday_code", validateWeekdayCode)
		_ = v.RegisterValidation("frequency_type", validateFrequencyType)
		_ = v.RegisterValidation("decision", validateDecision)
	}
}

// Error aggregates field-level validation failures into one error.
type Error struct {
	Fields []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, "; "))
}

// ValidateStruct validates a struct and returns an *Error if it fails.
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()))
	}
	return &Error{Fields: fields}
}

// validateWeekdayCode accepts the three-letter weekday codes used by weekly
// templates.
func validateWeekdayCode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN":
		return true
	}
	return false
}

// validateFrequencyType accepts the supported recurrence frequencies.
func validateFrequencyType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "hourly", "daily", "weekly", "monthly":
		return true
	}
	return false
}

// validateDecision accepts the participation decision states.
func validateDecision(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "pending", "accepted", "declined", "cancelled":
		return true
	}
	return false
}
