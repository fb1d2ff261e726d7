package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAutoDeductAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payout  int64
		balance int64
		want    int64
	}{
		{name: "balance_below_payout", payout: 1000, balance: 300, want: 300},
		{name: "balance_above_payout", payout: 1000, balance: 4500, want: 1000},
		{name: "equal", payout: 700, balance: 700, want: 700},
		{name: "no_balance", payout: 1000, balance: 0, want: 0},
		{name: "negative_balance", payout: 1000, balance: -50, want: 0},
		{name: "zero_payout", payout: 0, balance: 300, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AutoDeductAmount(tt.payout, tt.balance))
		})
	}
}

func TestAutoDeductNeverExceedsPayout(t *testing.T) {
	t.Parallel()

	for payout := int64(0); payout <= 2000; payout += 37 {
		for balance := int64(-100); balance <= 3000; balance += 53 {
			d := AutoDeductAmount(payout, balance)
			assert.LessOrEqual(t, d, payout)
			assert.GreaterOrEqual(t, d, int64(0))

			for _, tip := range []int64{0, 33, 250} {
				b := Compute(payout, balance, tip)
				assert.GreaterOrEqual(t, b.TransferCents, int64(0))
				assert.Equal(t, payout-d+tip, b.TransferCents)
			}
		}
	}
}

func TestTipShare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		tip         int64
		platformTip int64
		items       int
		want        int64
	}{
		{name: "dollar_over_three", tip: 100, platformTip: 0, items: 3, want: 33},
		{name: "platform_share_excluded", tip: 130, platformTip: 30, items: 3, want: 33},
		{name: "single_item", tip: 500, platformTip: 65, items: 1, want: 435},
		{name: "no_items", tip: 500, platformTip: 0, items: 0, want: 0},
		{name: "platform_takes_all", tip: 50, platformTip: 50, items: 2, want: 0},
		{name: "no_tip", tip: 0, platformTip: 0, items: 4, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TipShare(tt.tip, tt.platformTip, tt.items))
		})
	}
}

func TestPickupVendorPayout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(2337), PickupVendorPayout(2500, decimal.RequireFromString("6.5")))
	assert.Equal(t, int64(1000), PickupVendorPayout(1000, decimal.Zero))
	assert.Equal(t, int64(0), PickupVendorPayout(1000, decimal.NewFromInt(150)))
	assert.Equal(t, int64(0), PickupVendorPayout(0, decimal.NewFromInt(5)))
}

func TestComputeScenario(t *testing.T) {
	t.Parallel()

	b := Compute(1000, 300, 0)
	assert.Equal(t, Breakdown{BaseCents: 1000, DeductionCents: 300, TipCents: 0, TransferCents: 700}, b)

	b = Compute(1000, 300, 33)
	assert.Equal(t, int64(733), b.TransferCents)
}

func TestFormatCents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12.34", FormatCents(1234))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "700.00", FormatCents(70000))
}
