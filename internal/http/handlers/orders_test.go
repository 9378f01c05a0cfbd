package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Reservation fields may only be set while a table is RESERVED. An order
// accepted inside the window converts the reservation into occupancy, so the
// occupation statement must drop the window along with the status flip.
func TestTableOccupationClearsReservationWindow(t *testing.T) {
	assert.Contains(t, occupyTableSQL, "status = 'OCCUPIED'")
	assert.Contains(t, occupyTableSQL, "reserved_from = null")
	assert.Contains(t, occupyTableSQL, "reserved_until = null")
}

func TestTableOccupationAccumulatesBill(t *testing.T) {
	assert.Contains(t, occupyTableSQL, "coalesce(current_bill, 0) + $2")
}
