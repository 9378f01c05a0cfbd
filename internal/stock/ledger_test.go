package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogDeltaSigns(t *testing.T) {
	cases := []struct {
		name       string
		changeType string
		qty        float64
		expected   float64
	}{
		{name: "purchase is positive", changeType: ChangePurchase, qty: 300, expected: 300},
		{name: "wastage is negative", changeType: ChangeWastage, qty: 50, expected: -50},
		{name: "order usage is negative", changeType: ChangeOrderUsage, qty: 12.5, expected: -12.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, LogDelta(tc.changeType, tc.qty))
		})
	}
}

func TestNewLedgerThresholdFallback(t *testing.T) {
	assert.Equal(t, int32(10), NewLedger(nil, 0).Threshold)
	assert.Equal(t, int32(10), NewLedger(nil, -3).Threshold)
	assert.Equal(t, int32(25), NewLedger(nil, 25).Threshold)
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{Item: "Margherita Pizza", Available: 2, Requested: 5}
	assert.Contains(t, err.Error(), "Margherita Pizza")
	assert.Contains(t, err.Error(), "2 available")
	assert.Contains(t, err.Error(), "5 requested")
}

func TestIngredientInUseErrorListsDependents(t *testing.T) {
	err := &IngredientInUseError{Ingredient: "Milk", MenuItems: []string{"Cold Coffee", "Masala Chai"}}
	assert.Contains(t, err.Error(), "Milk")
	assert.Contains(t, err.Error(), "Cold Coffee")
	assert.Contains(t, err.Error(), "Masala Chai")
}

func TestNoInventoryRecordErrorMessage(t *testing.T) {
	err := &NoInventoryRecordError{Item: "Paneer Tikka"}
	assert.Contains(t, err.Error(), "Paneer Tikka")
}
