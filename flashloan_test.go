package core

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IsoLiquid/core/utils"
)

type flashLoanCallbackFunc func(ctx context.Context, assets decimal.Decimal, data []byte) error

func (f flashLoanCallbackFunc) OnFlashLoan(ctx context.Context, assets decimal.Decimal, data []byte) error {
	return f(ctx, assets, data)
}

func TestFlashLoanRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.mint("usd-coin", env.engine.Vault(), 10000)

	borrower := env.borrower
	var seen decimal.Decimal
	cb := flashLoanCallbackFunc(func(ctx context.Context, assets decimal.Decimal, data []byte) error {
		seen = env.transfer.BalanceOf("usd-coin", borrower)
		return nil
	})

	err := env.engine.FlashLoan(env.ctx, borrower, "usd-coin", decimal.NewFromInt(10000), nil, cb)
	require.NoError(t, err)

	assert.True(t, seen.Equal(decimal.NewFromInt(10000)), "full amount available inside the callback")
	assert.True(t, env.transfer.BalanceOf("usd-coin", borrower).IsZero())
	assert.True(t, env.transfer.BalanceOf("usd-coin", env.engine.Vault()).Equal(decimal.NewFromInt(10000)))
}

func TestFlashLoanUnrepaid(t *testing.T) {
	env := newTestEnv(t)
	env.mint("usd-coin", env.engine.Vault(), 10000)

	sink := uuid.Must(uuid.FromString(utils.GenUuidFromStrings("test", "sink")))
	borrower := env.borrower
	cb := flashLoanCallbackFunc(func(ctx context.Context, assets decimal.Decimal, data []byte) error {
		// Spend the borrowed funds so the pull-back cannot cover itself.
		return env.transfer.TransferFrom(ctx, "usd-coin", borrower, sink, assets)
	})

	err := env.engine.FlashLoan(env.ctx, borrower, "usd-coin", decimal.NewFromInt(10000), nil, cb)
	assert.Equal(t, UnrepaidFlashLoan, err)
}

func TestFlashLoanCallbackError(t *testing.T) {
	env := newTestEnv(t)
	env.mint("usd-coin", env.engine.Vault(), 10000)

	boom := assert.AnError
	cb := flashLoanCallbackFunc(func(ctx context.Context, assets decimal.Decimal, data []byte) error {
		return boom
	})

	err := env.engine.FlashLoan(env.ctx, env.borrower, "usd-coin", decimal.NewFromInt(100), nil, cb)
	assert.Equal(t, boom, err)
}

func TestFlashLoanInputValidation(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.FlashLoan(env.ctx, env.borrower, "usd-coin", decimal.Zero, nil, nil)
	assert.Equal(t, ZeroAmount, err)

	err = env.engine.FlashLoan(env.ctx, env.borrower, "usd-coin", decimal.NewFromInt(-1), nil, nil)
	assert.Equal(t, NegativeAmount, err)

	err = env.engine.FlashLoan(env.ctx, env.borrower, "usd-coin", decimal.NewFromInt(1), nil, nil)
	assert.Error(t, err, "empty vault cannot fund the loan")
}
