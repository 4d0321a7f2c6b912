package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWeekdayCode(t *testing.T) {
	type payload struct {
		Day string `validate:"weekday_code"`
	}

	tests := []struct {
		name   string
		day    string
		expect bool
	}{
		{"monday", "MON", true},
		{"sunday", "SUN", true},
		{"lowercase rejected", "mon", false},
		{"full name rejected", "MONDAY", false},
		{"empty", "", false},
		{"garbage", "XYZ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&payload{Day: tt.day})
			if tt.expect {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateFrequencyType(t *testing.T) {
	type payload struct {
		Freq string `validate:"frequency_type"`
	}

	for _, valid := range []string{"hourly", "daily", "weekly", "monthly"} {
		assert.NoError(t, ValidateStruct(&payload{Freq: valid}), valid)
	}
	for _, invalid := range []string{"yearly", "WEEKLY", "", "biweekly"} {
		assert.Error(t, ValidateStruct(&payload{Freq: invalid}), invalid)
	}
}

func TestValidateStructAggregatesFields(t *testing.T) {
	type payload struct {
		Day  string `validate:"weekday_code"`
		Freq string `validate:"frequency_type"`
	}

	err := ValidateStruct(&payload{Day: "bad", Freq: "bad"})
	require.Error(t, err)

	verr, ok := err.(*Error)
	require.True(t, ok)
	assert.Len(t, verr.Fields, 2)
}
