package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-backend/internal/models"
)

type testRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Date   string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	models.SignalSet
}

func TestValidateStruct_Valid(t *testing.T) {
	req := testRequest{
		UserID:    "u1",
		Date:      "2024-03-01",
		SignalSet: models.SignalSet{HeartRate: models.Float(72), StressLevel: models.Float(4)},
	}

	assert.Nil(t, ValidateStruct(&req))
	assert.Nil(t, ValidateStruct(&testRequest{UserID: "u1"}))
}

func TestValidateStruct_MissingUserID(t *testing.T) {
	verr := ValidateStruct(&testRequest{})

	require.NotNil(t, verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "user_id", verr.Fields[0].Field)
	assert.Equal(t, "user_id is required", verr.Error())
}

func TestValidateStruct_OutOfRangeSignals(t *testing.T) {
	req := testRequest{
		UserID: "u1",
		SignalSet: models.SignalSet{
			HeartRate:   models.Float(20),
			StressLevel: models.Float(11),
		},
	}

	verr := ValidateStruct(&req)

	require.NotNil(t, verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "heart_rate must be greater than or equal to 40", verr.Fields[0].Message)
	assert.Equal(t, "stress_level must be less than or equal to 10", verr.Fields[1].Message)
}

func TestValidateStruct_BadDate(t *testing.T) {
	verr := ValidateStruct(&testRequest{UserID: "u1", Date: "01/03/2024"})

	require.NotNil(t, verr)
	assert.Equal(t, "date must be a date in YYYY-MM-DD format", verr.Error())
}
