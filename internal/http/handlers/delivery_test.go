package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"restaurant-pos-services/internal/billing"
)

func TestDeliveryTransitionAllowed(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"pending to confirmed", "PENDING", "CONFIRMED", true},
		{"confirmed to preparing", "CONFIRMED", "PREPARING", true},
		{"preparing to ready", "PREPARING", "READY_FOR_PICKUP", true},
		{"ready to out for delivery", "READY_FOR_PICKUP", "OUT_FOR_DELIVERY", true},
		{"ready straight to delivered", "READY_FOR_PICKUP", "DELIVERED", true},
		{"out to delivered", "OUT_FOR_DELIVERY", "DELIVERED", true},
		{"cancel while pending", "PENDING", "CANCELLED", true},
		{"cancel while out", "OUT_FOR_DELIVERY", "CANCELLED", true},
		{"no skipping confirm", "PENDING", "PREPARING", false},
		{"no skipping to delivered", "CONFIRMED", "DELIVERED", false},
		{"delivered is terminal", "DELIVERED", "CANCELLED", false},
		{"cancelled is terminal", "CANCELLED", "PENDING", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deliveryTransitionAllowed(tc.from, tc.to))
		})
	}
}

func TestParsePlatform(t *testing.T) {
	for _, raw := range []string{"zomato", "ZOMATO", "  Zomato "} {
		platform, ok := parsePlatform(raw)
		assert.True(t, ok)
		assert.Equal(t, PlatformZomato, platform)
	}

	platform, ok := parsePlatform("takeaway")
	assert.True(t, ok)
	assert.Equal(t, PlatformTakeaway, platform)

	_, ok = parsePlatform("ubereats")
	assert.False(t, ok)
	_, ok = parsePlatform("")
	assert.False(t, ok)
}

func TestBillSourceFor(t *testing.T) {
	assert.Equal(t, billing.SourcePlatform, billSourceFor(PlatformZomato))
	assert.Equal(t, billing.SourcePlatform, billSourceFor(PlatformSwiggy))
	assert.Equal(t, billing.SourceDirect, billSourceFor(PlatformDirect))
	assert.Equal(t, billing.SourceDirect, billSourceFor(PlatformTakeaway))
}
