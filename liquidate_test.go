package core

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liquidateCallbackFunc func(ctx context.Context, repaidAssets decimal.Decimal, data []byte) error

func (f liquidateCallbackFunc) OnLiquidate(ctx context.Context, repaidAssets decimal.Decimal, data []byte) error {
	return f(ctx, repaidAssets, data)
}

func TestLiquidationIncentiveFactor(t *testing.T) {
	tests := []struct {
		name string
		lltv decimal.Decimal
		want decimal.Decimal
	}{
		{
			name: "full lltv pays no premium",
			lltv: ONE,
			want: ONE,
		},
		{
			name: "lltv 0.8",
			lltv: decimal.NewFromFloat(0.8),
			want: ONE.Div(decimal.NewFromFloat(0.94)),
		},
		{
			name: "low lltv capped at ceiling",
			lltv: decimal.NewFromFloat(0.5),
			want: MAX_LIQUIDATION_INCENTIVE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LiquidationIncentiveFactor(tt.lltv)
			assert.True(t, got.Equal(tt.want), "expected %s, got %s", tt.want, got)
		})
	}
}

// setupUnhealthyBorrower books a 16000 debt against 10 collateral, then
// drops the oracle price so the position breaches its LLTV.
func setupUnhealthyBorrower(t *testing.T, env *testEnv, crashPrice int64) {
	t.Helper()
	env.mint("usd-coin", env.supplier, 20000)
	env.mint("bitcoin", env.borrower, 10)
	env.supply(t, env.supplier, 20000)
	env.supplyCollateral(t, env.borrower, 10)
	_, _, err := env.engine.Borrow(env.ctx, env.borrower, env.params, decimal.NewFromInt(16000), decimal.Zero, env.borrower, env.borrower)
	require.NoError(t, err)

	env.oracle.SetPrice(decimal.NewFromInt(crashPrice))
}

func TestLiquidateHealthyPositionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.mint("usd-coin", env.supplier, 20000)
	env.mint("bitcoin", env.borrower, 10)
	env.supply(t, env.supplier, 20000)
	env.supplyCollateral(t, env.borrower, 10)
	_, _, err := env.engine.Borrow(env.ctx, env.borrower, env.params, decimal.NewFromInt(16000), decimal.Zero, env.borrower, env.borrower)
	require.NoError(t, err)

	// Exactly at the LLTV bound the position is still healthy.
	liquidator := env.supplier
	_, err = env.engine.Liquidate(env.ctx, liquidator, env.params, env.borrower, decimal.NewFromInt(1), decimal.Zero, nil, nil)
	assert.Equal(t, HealthyPosition, err)
}

func TestLiquidatePartial(t *testing.T) {
	env := newTestEnv(t)
	setupUnhealthyBorrower(t, env, 1500)

	liquidator := env.supplier
	env.mint("usd-coin", liquidator, 8000)

	// Retire half the debt by shares.
	halfShares := decimal.NewFromInt(8000).Mul(VIRTUAL_SHARES)
	result, err := env.engine.Liquidate(env.ctx, liquidator, env.params, env.borrower, decimal.Zero, halfShares, nil, nil)
	require.NoError(t, err)

	assert.True(t, result.RepaidShares.Equal(halfShares))
	assert.True(t, result.RepaidAssets.Equal(decimal.NewFromInt(8000)))
	// floor(8000 * (1/0.94) / 1500) = 5 units of collateral.
	assert.True(t, result.SeizedAssets.Equal(decimal.NewFromInt(5)))
	assert.True(t, result.BadDebtAssets.IsZero())
	assert.True(t, result.BadDebtShares.IsZero())

	position := env.position(t, env.borrower)
	assert.True(t, position.BorrowShares.Equal(halfShares))
	assert.True(t, position.Collateral.Equal(decimal.NewFromInt(5)))

	market := env.market(t)
	assert.True(t, market.TotalBorrowAssets.Equal(decimal.NewFromInt(8000)))
	assert.True(t, market.TotalSupplyAssets.Equal(decimal.NewFromInt(20000)), "no bad debt, suppliers untouched")

	assert.True(t, env.transfer.BalanceOf("bitcoin", liquidator).Equal(decimal.NewFromInt(5)))
	assert.True(t, env.transfer.BalanceOf("usd-coin", liquidator).IsZero())
}

func TestLiquidateSeizedDriving(t *testing.T) {
	env := newTestEnv(t)
	setupUnhealthyBorrower(t, env, 1500)

	liquidator := env.supplier
	env.mint("usd-coin", liquidator, 10000)

	result, err := env.engine.Liquidate(env.ctx, liquidator, env.params, env.borrower, decimal.NewFromInt(4), decimal.Zero, nil, nil)
	require.NoError(t, err)

	assert.True(t, result.SeizedAssets.Equal(decimal.NewFromInt(4)))
	// ceil(4 * 1500 / (1/0.94)) = ceil(5640) = 5640 repaid.
	assert.True(t, result.RepaidAssets.Equal(decimal.NewFromInt(5640)))
	assert.True(t, result.BadDebtAssets.IsZero())

	assert.True(t, env.position(t, env.borrower).Collateral.Equal(decimal.NewFromInt(6)))
	assert.True(t, env.transfer.BalanceOf("usd-coin", liquidator).Equal(decimal.NewFromInt(4360)))
}

func TestLiquidateSocializesBadDebt(t *testing.T) {
	env := newTestEnv(t)
	setupUnhealthyBorrower(t, env, 100)

	liquidator := env.supplier
	env.mint("usd-coin", liquidator, 1000)

	sharesBefore := env.market(t).TotalSupplyShares

	// Seizing all 10 collateral at price 100 repays ceil(1000/(1/0.94)) =
	// 940; the rest of the 16000 debt is unrecoverable.
	result, err := env.engine.Liquidate(env.ctx, liquidator, env.params, env.borrower, decimal.NewFromInt(10), decimal.Zero, nil, nil)
	require.NoError(t, err)

	assert.True(t, result.SeizedAssets.Equal(decimal.NewFromInt(10)))
	assert.True(t, result.RepaidAssets.Equal(decimal.NewFromInt(940)))
	assert.True(t, result.BadDebtAssets.Equal(decimal.NewFromInt(15060)))
	assert.True(t, result.BadDebtShares.Equal(decimal.NewFromInt(15060).Mul(VIRTUAL_SHARES)))

	position := env.position(t, env.borrower)
	assert.True(t, position.Collateral.IsZero())
	assert.True(t, position.BorrowShares.IsZero(), "written-off debt leaves no residual shares")

	market := env.market(t)
	assert.True(t, market.TotalBorrowAssets.IsZero())
	assert.True(t, market.TotalBorrowShares.IsZero())
	// The write-off comes out of supply assets while share count stays
	// fixed, diluting every supplier pro-rata.
	assert.True(t, market.TotalSupplyAssets.Equal(decimal.NewFromInt(4940)))
	assert.True(t, market.TotalSupplyShares.Equal(sharesBefore))

	assert.True(t, env.transfer.BalanceOf("bitcoin", liquidator).Equal(decimal.NewFromInt(10)))
}

func TestLiquidateCallbackSourcesFunds(t *testing.T) {
	env := newTestEnv(t)
	setupUnhealthyBorrower(t, env, 1500)

	funder := env.owner
	env.mint("usd-coin", funder, 10000)

	liquidator := env.supplier
	require.True(t, env.transfer.BalanceOf("usd-coin", liquidator).IsZero())

	cb := liquidateCallbackFunc(func(ctx context.Context, repaidAssets decimal.Decimal, data []byte) error {
		return env.transfer.TransferFrom(ctx, "usd-coin", funder, liquidator, repaidAssets)
	})

	halfShares := decimal.NewFromInt(8000).Mul(VIRTUAL_SHARES)
	result, err := env.engine.Liquidate(env.ctx, liquidator, env.params, env.borrower, decimal.Zero, halfShares, nil, cb)
	require.NoError(t, err)
	assert.True(t, result.RepaidAssets.Equal(decimal.NewFromInt(8000)))
	assert.True(t, env.transfer.BalanceOf("usd-coin", liquidator).IsZero())
}

func TestLiquidateInputValidation(t *testing.T) {
	env := newTestEnv(t)
	setupUnhealthyBorrower(t, env, 100)

	_, err := env.engine.Liquidate(env.ctx, env.supplier, env.params, env.borrower, decimal.Zero, decimal.Zero, nil, nil)
	assert.Equal(t, InconsistentInput, err)

	_, err = env.engine.Liquidate(env.ctx, env.supplier, env.params, env.borrower, decimal.NewFromInt(1), decimal.NewFromInt(1), nil, nil)
	assert.Equal(t, InconsistentInput, err)

	stranger := env.owner
	_, err = env.engine.Liquidate(env.ctx, env.supplier, env.params, stranger, decimal.NewFromInt(1), decimal.Zero, nil, nil)
	assert.Equal(t, InsufficientBalance, err, "no position to liquidate")
}
