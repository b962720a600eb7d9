package heartbeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInWakeWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		hour  int
		wake  int
		sleep int
		want  bool
	}{
		{name: "well within the standard 5-22 window", hour: 12, wake: 5, sleep: 22, want: true},
		{name: "at wake boundary is inside", hour: 5, wake: 5, sleep: 22, want: true},
		{name: "at sleep boundary is outside", hour: 22, wake: 5, sleep: 22, want: false},
		{name: "before wake is outside", hour: 4, wake: 5, sleep: 22, want: false},
		{name: "after sleep is outside", hour: 23, wake: 5, sleep: 22, want: false},
		{name: "nocturnal window wraps midnight, inside", hour: 23, wake: 22, sleep: 6, want: true},
		{name: "nocturnal window wraps midnight, just after midnight", hour: 2, wake: 22, sleep: 6, want: true},
		{name: "nocturnal window wraps midnight, outside", hour: 12, wake: 22, sleep: 6, want: false},
		{name: "equal wake and sleep never sleeps", hour: 3, wake: 9, sleep: 9, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inWakeWindow(tt.hour, tt.wake, tt.sleep))
		})
	}
}
