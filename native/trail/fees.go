package trail

import "math/big"

// CalculateFee returns the platform fee owed on a sale at the given price:
// price*percent/100 with truncating integer division, floored at minimum.
// The truncation is load-bearing; both the creation-time freeze and the buy
// path floor check rely on it.
func CalculateFee(price *big.Int, percent uint64, minimum *big.Int) *big.Int {
	fee := new(big.Int)
	if price != nil {
		fee.Mul(price, new(big.Int).SetUint64(percent))
		fee.Div(fee, big.NewInt(100))
	}
	if minimum != nil && fee.Cmp(minimum) < 0 {
		return new(big.Int).Set(minimum)
	}
	return fee
}

// PriceAndFee resolves the effective sale price and platform fee for a
// series. When the listed price exceeds the frozen fee the buyer pays the
// price and the creator receives the remainder. At or below the fee the fee
// itself becomes the price and the whole payment goes to the treasury, so
// the platform never nets less than its minimum even on near-zero listings.
func PriceAndFee(series *Series) (*big.Int, *big.Int) {
	price := big.NewInt(0)
	if series != nil && series.Price != nil {
		price.Set(series.Price)
	}
	fee := big.NewInt(0)
	if series != nil && series.Fee != nil {
		fee.Set(series.Fee)
	}
	if price.Cmp(fee) > 0 {
		return price, fee
	}
	return new(big.Int).Set(fee), fee
}
