package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"pending to preparing", "PENDING", "PREPARING", true},
		{"preparing to served", "PREPARING", "SERVED", true},
		{"served to paid", "SERVED", "PAID", true},
		{"pending cancel", "PENDING", "CANCELLED", true},
		{"preparing cancel", "PREPARING", "CANCELLED", true},
		{"served cancel", "SERVED", "CANCELLED", true},
		{"no skipping to served", "PENDING", "SERVED", false},
		{"no skipping to paid", "PENDING", "PAID", false},
		{"no paying unserved", "PREPARING", "PAID", false},
		{"no regression", "SERVED", "PREPARING", false},
		{"paid is terminal", "PAID", "CANCELLED", false},
		{"cancelled is terminal", "CANCELLED", "PENDING", false},
		{"no self transition", "PENDING", "PENDING", false},
		{"unknown source", "DRAFT", "PENDING", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transitionAllowed(tc.from, tc.to))
		})
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for status, nexts := range allowedTransitions {
		if isTerminalStatus(status) {
			assert.Empty(t, nexts, "terminal status %s must have no outgoing transitions", status)
		} else {
			assert.Contains(t, nexts, "CANCELLED", "non-terminal status %s must be cancellable", status)
		}
	}
}

func TestValidPaymentModes(t *testing.T) {
	assert.True(t, validPaymentModes["cash"])
	assert.True(t, validPaymentModes["card"])
	assert.True(t, validPaymentModes["upi"])
	assert.False(t, validPaymentModes["cheque"])
	assert.False(t, validPaymentModes["CASH"], "payment modes are matched lowercase")
}
