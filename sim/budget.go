package sim

import "math"

// budgetTolerance absorbs floating-point drift in length bookkeeping.
const budgetTolerance = 1e-6

// WireBudget is the shared pool of wire length.
//
// Invariant: the sum of all connection lengths plus Remaining equals Total.
// Remaining may drop below zero when a bend lengthens a wire past what is
// left; the affected wires then report OutOfBudget until length is freed.
type WireBudget struct {
	total     float64
	remaining float64
}

// NewWireBudget creates a budget with the given total length.
func NewWireBudget(total float64) *WireBudget {
	if total < 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		panic("NewWireBudget: total must be a finite non-negative number")
	}
	return &WireBudget{total: total, remaining: total}
}

func (b *WireBudget) Total() float64     { return b.total }
func (b *WireBudget) Remaining() float64 { return b.remaining }

// Used returns the length currently held by wires.
func (b *WireBudget) Used() float64 {
	return b.total - b.remaining
}

// Fits reports whether length can be drawn without going negative.
func (b *WireBudget) Fits(length float64) bool {
	return length <= b.remaining+budgetTolerance
}

// Overdrawn reports whether more length is in use than the pool holds.
func (b *WireBudget) Overdrawn() bool {
	return b.remaining < -budgetTolerance
}

// Consume draws length unconditionally.
func (b *WireBudget) Consume(length float64) {
	b.remaining -= length
}

// Refund returns length to the pool.
func (b *WireBudget) Refund(length float64) {
	b.remaining += length
}

// Reset restores the full pool.
func (b *WireBudget) Reset() {
	b.remaining = b.total
}
