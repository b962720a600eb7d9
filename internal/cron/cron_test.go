package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantHour   int
		wantMinute int
		wantOK     bool
	}{
		{name: "12-hour PM", raw: "7:00 PM", wantHour: 19, wantMinute: 0, wantOK: true},
		{name: "12-hour AM", raw: "7:00 AM", wantHour: 7, wantMinute: 0, wantOK: true},
		{name: "noon", raw: "12:00 PM", wantHour: 12, wantMinute: 0, wantOK: true},
		{name: "midnight", raw: "12:00 AM", wantHour: 0, wantMinute: 0, wantOK: true},
		{name: "24-hour", raw: "19:00", wantHour: 19, wantMinute: 0, wantOK: true},
		{name: "24-hour with minutes", raw: "09:45", wantHour: 9, wantMinute: 45, wantOK: true},
		{name: "hour only, no minutes", raw: "7", wantHour: 7, wantMinute: 0, wantOK: true},
		{name: "lowercase meridiem", raw: "7:00 pm", wantHour: 19, wantMinute: 0, wantOK: true},
		{name: "empty", raw: "", wantOK: false},
		{name: "out of range hour", raw: "25:00", wantOK: false},
		{name: "out of range minute", raw: "10:75", wantOK: false},
		{name: "garbage", raw: "not a time", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hour, minute, ok := parseTime(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantHour, hour)
				assert.Equal(t, tt.wantMinute, minute)
			}
		})
	}
}

func TestGoWeekdayToMonFirst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		weekday time.Weekday
		want    int
	}{
		{time.Monday, 0},
		{time.Tuesday, 1},
		{time.Wednesday, 2},
		{time.Thursday, 3},
		{time.Friday, 4},
		{time.Saturday, 5},
		{time.Sunday, 6},
	}

	for _, tt := range tests {
		t.Run(tt.weekday.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, goWeekdayToMonFirst(tt.weekday))
		})
	}
}

func TestContainsDay(t *testing.T) {
	t.Parallel()
	assert.True(t, containsDay([]int{0, 2, 4}, 2))
	assert.False(t, containsDay([]int{0, 2, 4}, 3))
	assert.False(t, containsDay(nil, 0))
}
