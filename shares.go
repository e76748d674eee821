package core

import (
	"github.com/shopspring/decimal"
)

// Conversion helpers between pooled asset amounts and proportional shares.
// Quantities are integral base units; every call site picks its rounding
// direction explicitly, never implicitly.

func MulDivDown(a, b, c decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Div(c).Floor()
}

func MulDivUp(a, b, c decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Div(c).Ceil()
}

func ToSharesDown(assets, totalAssets, totalShares decimal.Decimal) decimal.Decimal {
	return MulDivDown(assets, totalShares.Add(VIRTUAL_SHARES), totalAssets.Add(VIRTUAL_ASSETS))
}

func ToSharesUp(assets, totalAssets, totalShares decimal.Decimal) decimal.Decimal {
	return MulDivUp(assets, totalShares.Add(VIRTUAL_SHARES), totalAssets.Add(VIRTUAL_ASSETS))
}

func ToAssetsDown(shares, totalAssets, totalShares decimal.Decimal) decimal.Decimal {
	return MulDivDown(shares, totalAssets.Add(VIRTUAL_ASSETS), totalShares.Add(VIRTUAL_SHARES))
}

func ToAssetsUp(shares, totalAssets, totalShares decimal.Decimal) decimal.Decimal {
	return MulDivUp(shares, totalAssets.Add(VIRTUAL_ASSETS), totalShares.Add(VIRTUAL_SHARES))
}

// ZeroFloorSub returns a-b clamped at zero.
func ZeroFloorSub(a, b decimal.Decimal) decimal.Decimal {
	if b.GreaterThanOrEqual(a) {
		return decimal.Zero
	}
	return a.Sub(b)
}

// CalcInterestForPeriod computes simple linear interest on the borrowed
// total, rounded down.
func CalcInterestForPeriod(totalBorrowAssets, ratePerSecond decimal.Decimal, elapsed int64) decimal.Decimal {
	if elapsed <= 0 {
		return decimal.Zero
	}
	return totalBorrowAssets.Mul(ratePerSecond).Mul(decimal.NewFromInt(elapsed)).Floor()
}
