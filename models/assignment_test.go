package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"date", `"2025-05-01"`, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"timestamp", `"2025-05-01T18:30:00Z"`, time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)},
		{"timestamp with millis", `"2025-05-01T18:30:00.000Z"`, time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
		{"empty", `""`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d DueDate
			require.NoError(t, d.UnmarshalJSON([]byte(tt.raw)))
			assert.True(t, tt.want.Equal(d.Time), "got %s", d.Time)
		})
	}

	var d DueDate
	assert.Error(t, d.UnmarshalJSON([]byte(`"next week"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`20250501`)))
}

func TestDueDate_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Assignment{ID: "A1", Title: "Essay", DueDate: DueDate{time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"A1","title":"Essay","dueDate":"2025-05-01"}`, string(b))

	b, err = json.Marshal(DueDate{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestAssignment_Deadline(t *testing.T) {
	day := DueDate{time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, time.Date(2025, 5, 1, 17, 30, 0, 0, time.UTC), Assignment{DueDate: day, DueTime: "17:30"}.Deadline())
	assert.Equal(t, time.Date(2025, 5, 1, 23, 59, 59, 0, time.UTC), Assignment{DueDate: day}.Deadline())
	assert.Equal(t, time.Date(2025, 5, 1, 23, 59, 59, 0, time.UTC), Assignment{DueDate: day, DueTime: "soon"}.Deadline())

	stamped := DueDate{time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	assert.Equal(t, stamped.Time, Assignment{DueDate: stamped}.Deadline())
	assert.True(t, Assignment{}.Deadline().IsZero())
}
