package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReservationWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		from    time.Time
		until   time.Time
		wantErr string
	}{
		{
			name:  "valid future window",
			from:  now.Add(time.Hour),
			until: now.Add(3 * time.Hour),
		},
		{
			name:  "window already started but not ended",
			from:  now.Add(-time.Hour),
			until: now.Add(time.Hour),
		},
		{
			name:    "missing bounds",
			wantErr: "reservedFrom and reservedUntil are required",
		},
		{
			name:    "inverted window",
			from:    now.Add(2 * time.Hour),
			until:   now.Add(time.Hour),
			wantErr: "reservedFrom must be before reservedUntil",
		},
		{
			name:    "zero length window",
			from:    now.Add(time.Hour),
			until:   now.Add(time.Hour),
			wantErr: "reservedFrom must be before reservedUntil",
		},
		{
			name:    "window entirely in the past",
			from:    now.Add(-3 * time.Hour),
			until:   now.Add(-time.Hour),
			wantErr: "reservedUntil must be in the future",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateReservationWindow(tc.from, tc.until, now)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantErr, err.Error())
		})
	}
}

func TestValidateReservationExtension(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	currentEnd := now.Add(30 * time.Minute)

	err := validateReservationExtension(currentEnd, now.Add(time.Hour), now)
	assert.NoError(t, err)

	err = validateReservationExtension(currentEnd, time.Time{}, now)
	require.Error(t, err)
	assert.Equal(t, "reservedUntil is required", err.Error())

	err = validateReservationExtension(currentEnd, now.Add(10*time.Minute), now)
	require.Error(t, err)
	assert.Equal(t, "New reservedUntil must be later than the current reservation end", err.Error())

	err = validateReservationExtension(now.Add(-time.Hour), now.Add(-30*time.Minute), now)
	require.Error(t, err)
	assert.Equal(t, "reservedUntil must be in the future", err.Error())
}

// The extension update must re-check the window it is extending, so a
// cancel or sweep racing the request-path validation cannot let a stale
// extension through.
func TestExtendReservationUpdateRevalidates(t *testing.T) {
	assert.Contains(t, extendReservationSQL, "status = 'RESERVED'")
	assert.Contains(t, extendReservationSQL, "reserved_until is not null")
	assert.Contains(t, extendReservationSQL, "$2 > reserved_until")
	assert.Contains(t, extendReservationSQL, "$2 > now()")
}
