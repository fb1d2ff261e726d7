// Package payout holds the money arithmetic behind a vendor payout: fee
// auto-deduction, tip allocation and per-pickup platform fees. All amounts are
// integer cents.
package payout

import (
	"github.com/shopspring/decimal"
)

// AutoDeductAmount returns how much of an outstanding fee balance may be
// withheld from a payout. It never exceeds the payout, so the vendor's base
// payout cannot go negative.
func AutoDeductAmount(payoutCents, balanceCents int64) int64 {
	if payoutCents <= 0 || balanceCents <= 0 {
		return 0
	}
	if balanceCents < payoutCents {
		return balanceCents
	}
	return payoutCents
}

// TipShare splits the vendor-eligible part of an order-level tip evenly across
// itemCount items. Remainder cents are dropped.
func TipShare(tipCents, tipOnPlatformFeeCents int64, itemCount int) int64 {
	if itemCount <= 0 {
		return 0
	}
	vendorTip := tipCents - tipOnPlatformFeeCents
	if vendorTip <= 0 {
		return 0
	}
	return vendorTip / int64(itemCount)
}

// PickupVendorPayout is the per-pickup base price minus the vertical's vendor
// fee percentage, rounded to the nearest cent in the platform's favor on ties.
func PickupVendorPayout(priceCents int64, feePercent decimal.Decimal) int64 {
	if priceCents <= 0 {
		return 0
	}
	fee := decimal.NewFromInt(priceCents).
		Mul(feePercent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	if fee < 0 {
		fee = 0
	}
	if fee > priceCents {
		return 0
	}
	return priceCents - fee
}

// Breakdown is the full composition of a single transfer.
type Breakdown struct {
	BaseCents      int64
	DeductionCents int64
	TipCents       int64
	TransferCents  int64
}

// Compute builds the breakdown for a payout of baseCents plus tipCents with
// an outstanding fee balance. The deduction only applies to the base.
func Compute(baseCents, balanceCents, tipCents int64) Breakdown {
	if baseCents < 0 {
		baseCents = 0
	}
	if tipCents < 0 {
		tipCents = 0
	}
	deduction := AutoDeductAmount(baseCents, balanceCents)
	return Breakdown{
		BaseCents:      baseCents,
		DeductionCents: deduction,
		TipCents:       tipCents,
		TransferCents:  baseCents - deduction + tipCents,
	}
}

// FormatCents renders cents as a dollar string, e.g. 1234 -> "12.34".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
