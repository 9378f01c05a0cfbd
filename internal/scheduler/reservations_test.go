package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReservationState(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	window := 15 * time.Minute

	until := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	cases := []struct {
		name          string
		status        string
		reservedUntil *time.Time
		expected      string
	}{
		{name: "available table has no reservation state", status: "AVAILABLE", reservedUntil: nil, expected: ""},
		{name: "occupied table has no reservation state", status: "OCCUPIED", reservedUntil: until(time.Hour), expected: ""},
		{name: "reserved without window has no state", status: "RESERVED", reservedUntil: nil, expected: ""},
		{name: "well before the deadline", status: "RESERVED", reservedUntil: until(time.Hour), expected: StateActive},
		{name: "just outside the soon window", status: "RESERVED", reservedUntil: until(16 * time.Minute), expected: StateActive},
		{name: "inside the soon window", status: "RESERVED", reservedUntil: until(10 * time.Minute), expected: StateExpiringSoon},
		{name: "exactly at the soon boundary", status: "RESERVED", reservedUntil: until(15 * time.Minute), expected: StateExpiringSoon},
		{name: "deadline reached", status: "RESERVED", reservedUntil: until(0), expected: StateExpired},
		{name: "deadline passed", status: "RESERVED", reservedUntil: until(-time.Minute), expected: StateExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ReservationState(tc.status, tc.reservedUntil, now, window))
		})
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(nil, nil, nil, 0)
	assert.Equal(t, time.Minute, s.Interval)

	s = New(nil, nil, nil, 30*time.Second)
	assert.Equal(t, 30*time.Second, s.Interval)
}
