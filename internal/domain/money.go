package domain

import "github.com/shopspring/decimal"

// TaxRate is the IGV rate baked into every sale total. Totals are
// tax-inclusive: subtotal = total / (1 + TaxRate).
const TaxRate = 0.18

var taxDivisor = decimal.NewFromFloat(1 + TaxRate)

// SplitTax decomposes a tax-inclusive total into subtotal and tax, both
// rounded to two decimals. subtotal + tax always equals the total.
func SplitTax(total float64) (subtotal, tax float64) {
	t := decimal.NewFromFloat(total)
	sub := t.Div(taxDivisor).Round(2)
	subtotal, _ = sub.Float64()
	tax, _ = t.Sub(sub).Round(2).Float64()
	return subtotal, tax
}

// LineTotal multiplies a unit price by a quantity, rounded to two decimals.
func LineTotal(price float64, quantity int) float64 {
	v, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity))).Round(2).Float64()
	return v
}

// CashChange computes the change due on a cash payment. The result is
// negative when the amount received does not cover the total.
func CashChange(received, total float64) float64 {
	v, _ := decimal.NewFromFloat(received).Sub(decimal.NewFromFloat(total)).Round(2).Float64()
	return v
}

// Round2 rounds a money amount to two decimals.
func Round2(v float64) float64 {
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}
