package billing

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTotal(t *testing.T) {
	cases := []struct {
		name     string
		line     Line
		expected float64
	}{
		{
			name:     "plain line",
			line:     Line{Price: 120, Quantity: 2},
			expected: 240,
		},
		{
			name: "positive modification",
			line: Line{Price: 100, Quantity: 2, Modifications: []Modification{
				{Name: "Extra cheese", Price: 20, Quantity: 1},
			}},
			expected: 240, // 200 + 20*1*2
		},
		{
			name: "negative modification discounts the line",
			line: Line{Price: 100, Quantity: 1, Modifications: []Modification{
				{Name: "Half portion", Price: -30, Quantity: 1},
			}},
			expected: 70,
		},
		{
			name: "modification quantity defaults to one",
			line: Line{Price: 50, Quantity: 1, Modifications: []Modification{
				{Name: "Extra dip", Price: 10, Quantity: 0},
			}},
			expected: 60,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, LineTotal(tc.line), 0.001)
		})
	}
}

func TestComputeTotalsAddUp(t *testing.T) {
	lines := []Line{
		{Price: 249.50, Quantity: 2},
		{Price: 99.99, Quantity: 1, Modifications: []Modification{
			{Name: "Extra cheese", Price: 25, Quantity: 2},
		}},
	}

	totals := Compute(lines, 0.05, Charges{DeliveryFee: 40, PackagingFee: 10})

	assert.InDelta(t, 648.99, totals.Subtotal, 0.001)
	assert.InDelta(t, Round2(totals.Subtotal*0.05), totals.Tax, 0.001)
	assert.InDelta(t, totals.Subtotal+totals.Tax+totals.DeliveryFee+totals.PackagingFee, totals.Total, 0.001)
}

func TestComputeDineInHasNoFees(t *testing.T) {
	totals := Compute([]Line{{Price: 100, Quantity: 1}}, 0.05, Charges{})

	assert.InDelta(t, 100, totals.Subtotal, 0.001)
	assert.InDelta(t, 5, totals.Tax, 0.001)
	assert.Zero(t, totals.DeliveryFee)
	assert.Zero(t, totals.PackagingFee)
	assert.InDelta(t, 105, totals.Total, 0.001)
}

func TestComputeEmptyOrder(t *testing.T) {
	totals := Compute(nil, 0.05, Charges{})
	assert.Zero(t, totals.Subtotal)
	assert.Zero(t, totals.Total)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, Round2(10.556))
	assert.Equal(t, 10.55, Round2(10.554))
	assert.Equal(t, 0.1, Round2(0.1))
	assert.Equal(t, -2.35, Round2(-2.346))
}

func TestNewBillNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 29, 18, 30, 0, 0, time.UTC)

	direct := NewBillNumber(SourceDirect, now)
	platform := NewBillNumber(SourcePlatform, now)

	require.Regexp(t, regexp.MustCompile(`^DR260829\d{4}$`), direct)
	require.Regexp(t, regexp.MustCompile(`^PT260829\d{4}$`), platform)
	assert.Len(t, direct, 12)
}
