package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jpetree331/stateful-agent/internal/apperror"
)

func TestValidateCronSchedule(t *testing.T) {
	t.Parallel()

	runDate := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		runDate      *time.Time
		days         []int
		scheduleTime string
		wantErr      bool
	}{
		{name: "one-time with run_date and schedule_time", runDate: &runDate, scheduleTime: "7:00 PM", wantErr: false},
		{name: "recurring with days and schedule_time", days: []int{0, 2, 4}, scheduleTime: "9:00 AM", wantErr: false},
		{name: "missing schedule_time entirely", wantErr: true},
		{name: "recurring with no days and no run_date", scheduleTime: "9:00 AM", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCronSchedule(tt.runDate, tt.days, tt.scheduleTime)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
