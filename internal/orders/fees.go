package orders

import "github.com/shopspring/decimal"

// FeePolicy charges a flat delivery fee below a subtotal threshold and
// nothing at or above it.
type FeePolicy struct {
	Fee       decimal.Decimal
	Threshold decimal.Decimal
}

func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		Fee:       decimal.NewFromInt(10),
		Threshold: decimal.NewFromInt(250),
	}
}

func (p FeePolicy) DeliveryFee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(p.Threshold) {
		return p.Fee
	}
	return decimal.Zero
}
