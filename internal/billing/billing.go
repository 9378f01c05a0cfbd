package billing

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Source identifies where an order entered the system; it becomes the
// two-letter prefix of the human-facing bill number.
type Source string

const (
	SourceDirect   Source = "DR" // dine-in and direct takeaway
	SourcePlatform Source = "PT" // external platform intake (Zomato, Swiggy, ...)
)

type Modification struct {
	Name     string
	Price    float64 // signed, negative allowed (e.g. portion discount)
	Quantity int32
}

type Line struct {
	Price         float64
	Quantity      int32
	Modifications []Modification
}

// Charges are flat amounts added on top of subtotal + tax. They apply to
// delivery/takeaway orders only; dine-in passes the zero value.
type Charges struct {
	DeliveryFee  float64
	PackagingFee float64
}

type Totals struct {
	Subtotal     float64
	Tax          float64
	DeliveryFee  float64
	PackagingFee float64
	Total        float64
}

// LineTotal is price*qty plus every modification priced per line unit:
// mod.Price * mod.Quantity * line.Quantity.
func LineTotal(line Line) float64 {
	total := line.Price * float64(line.Quantity)
	for _, mod := range line.Modifications {
		qty := mod.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += mod.Price * float64(qty) * float64(line.Quantity)
	}
	return Round2(total)
}

// Compute derives the full bill. Pure: no I/O, no clock.
func Compute(lines []Line, taxRate float64, charges Charges) Totals {
	var subtotal float64
	for _, line := range lines {
		subtotal = Round2(subtotal + LineTotal(line))
	}

	totals := Totals{
		Subtotal:     subtotal,
		Tax:          Round2(subtotal * taxRate),
		DeliveryFee:  Round2(charges.DeliveryFee),
		PackagingFee: Round2(charges.PackagingFee),
	}
	totals.Total = Round2(totals.Subtotal + totals.Tax + totals.DeliveryFee + totals.PackagingFee)
	return totals
}

func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// NewBillNumber builds a candidate bill number: source prefix, YYMMDD and a
// 4-digit random suffix, e.g. DR2608294127. The suffix can collide; callers
// must insert under the unique constraint and retry with a fresh candidate.
func NewBillNumber(source Source, now time.Time) string {
	return fmt.Sprintf("%s%s%04d", source, now.Format("060102"), rand.Intn(10000))
}
