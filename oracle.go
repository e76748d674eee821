package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceAdapter quotes one unit of a market's collateral asset in loan-asset
// terms. A failing adapter is fatal for any operation that needs it; the
// engine never synthesizes a fallback price.
type PriceAdapter interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}

// FixedPriceAdapter serves a single settable price. Markets under test and
// manually administered markets use it directly.
type FixedPriceAdapter struct {
	price decimal.Decimal
}

func NewFixedPriceAdapter(price decimal.Decimal) *FixedPriceAdapter {
	return &FixedPriceAdapter{price: price}
}

func (a *FixedPriceAdapter) Price(ctx context.Context) (decimal.Decimal, error) {
	if !a.price.IsPositive() {
		return decimal.Zero, InvalidPrice
	}
	return a.price, nil
}

func (a *FixedPriceAdapter) SetPrice(price decimal.Decimal) {
	a.price = price
}
