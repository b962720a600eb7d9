package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rowsAt(times ...time.Time) []Message {
	out := make([]Message, len(times))
	for i, ts := range times {
		out[i] = Message{Role: "user", Content: "m", CreatedAt: ts}
	}
	return out
}

func TestApplyWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	todayStart := base
	yesterday := base.Add(-2 * time.Hour)
	rows := rowsAt(
		yesterday,
		yesterday.Add(30*time.Minute),
		todayStart.Add(1*time.Hour),
		todayStart.Add(2*time.Hour),
		todayStart.Add(3*time.Hour),
	)

	tests := []struct {
		name string
		opts LoadOptions
		want int
	}{
		{name: "no window is a no-op", opts: LoadOptions{}, want: 5},
		{name: "since-only keeps today's rows", opts: LoadOptions{Since: todayStart}, want: 3},
		{name: "limit-only keeps last N", opts: LoadOptions{Limit: 2}, want: 2},
		{
			name: "today covers more than last N, keeps the union",
			opts: LoadOptions{Since: todayStart, Limit: 1},
			want: 3,
		},
		{
			name: "last N covers more than today, keeps the union",
			opts: LoadOptions{Since: todayStart, Limit: 4},
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyWindow(rows, tt.opts)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestApplyWindow_EmptyInput(t *testing.T) {
	t.Parallel()
	got := applyWindow(nil, LoadOptions{Limit: 5})
	assert.Empty(t, got)
}

func TestTrimToTokenLimit(t *testing.T) {
	t.Parallel()

	rows := []Message{
		{Role: "user", Content: "short"},
		{Role: "assistant", Content: "also short"},
		{Role: "user", Content: "this one is considerably longer than the rest of them"},
	}

	t.Run("keeps everything under budget", func(t *testing.T) {
		got := trimToTokenLimit(rows, 1000)
		assert.Len(t, got, 3)
	})

	t.Run("drops oldest first", func(t *testing.T) {
		got := trimToTokenLimit(rows, 1)
		assert.Len(t, got, 1)
		assert.Equal(t, rows[2].Content, got[0].Content)
	})

	t.Run("never returns empty even over budget", func(t *testing.T) {
		got := trimToTokenLimit(rows[:1], 0)
		assert.Len(t, got, 1)
	})
}
