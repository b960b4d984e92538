package presence

import (
	"testing"
	"time"
)

func TestOf(t *testing.T) {
	t.Parallel()

	base := time.Unix(1000, 0)
	timeout := 90 * time.Second

	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"just reported", base, Online},
		{"well within timeout", base.Add(50 * time.Second), Online},
		{"one second before timeout", base.Add(89 * time.Second), Online},
		{"exactly at timeout", base.Add(90 * time.Second), Online},
		{"one second past timeout", base.Add(91 * time.Second), Offline},
		{"long gone", base.Add(200 * time.Second), Offline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Of(base, tt.now, timeout); got != tt.want {
				t.Errorf("Of(lastSeen=%v, now=%v) = %v, want %v", base, tt.now, got, tt.want)
			}
		})
	}
}

func TestOfFutureLastSeen(t *testing.T) {
	t.Parallel()

	// A device whose accepted timestamp is ahead of the server clock
	// (back-dated submission windows, coarse client clocks) is online.
	now := time.Unix(1000, 0)
	lastSeen := now.Add(5 * time.Second)
	if !IsOnline(lastSeen, now, 90*time.Second) {
		t.Error("future last_seen should classify as online")
	}
}
