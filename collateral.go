package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SupplyCollateral books raw collateral units for onBehalf. Collateral does
// not earn interest, so no accrual is needed on the way in.
func (e *Engine) SupplyCollateral(ctx context.Context, caller uuid.UUID, params MarketParams, amount decimal.Decimal, onBehalf uuid.UUID, data []byte, cb SupplyCollateralCallback) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()

	if amount.IsNegative() {
		return NegativeAmount
	}
	if amount.IsZero() {
		return ZeroAmount
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return err
	}

	position, err := FindOrCreatePosition(ctx, e.clk, e.EngineStore, market.Id, onBehalf)
	if err != nil {
		return err
	}
	if err := position.ChangeCollateral(amount); err != nil {
		return err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, onBehalf, ATSupplyCollateral, EventDetail{
		Collateral:   amount,
		Counterparty: caller,
	})); err != nil {
		return err
	}

	if cb != nil {
		if err := cb.OnSupplyCollateral(ctx, amount, data); err != nil {
			return err
		}
	}
	if err := e.transfer.TransferFrom(ctx, params.CollateralAssetId, caller, e.vault, amount); err != nil {
		return errors.Wrap(err, "pull collateral")
	}

	return nil
}

// WithdrawCollateral releases collateral to receiver. Interest accrues
// first since the moved rate may have changed borrow value, and solvency is
// re-checked after the decrement.
func (e *Engine) WithdrawCollateral(ctx context.Context, caller uuid.UUID, params MarketParams, amount decimal.Decimal, onBehalf, receiver uuid.UUID) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()

	if amount.IsNegative() {
		return NegativeAmount
	}
	if amount.IsZero() {
		return ZeroAmount
	}
	if err := e.checkSenderAuthorized(ctx, caller, onBehalf); err != nil {
		return err
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return err
	}

	position, err := e.findPosition(ctx, acc, market.Id, onBehalf)
	if err != nil {
		return err
	}
	if err := position.ChangeCollateral(amount.Neg()); err != nil {
		return err
	}

	price, err := e.collateralPrice(ctx, market)
	if err != nil {
		return err
	}
	if !isHealthy(market, position, price) {
		return InsufficientCollateral
	}

	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, onBehalf, ATWithdrawCollateral, EventDetail{
		Collateral:   amount,
		Counterparty: receiver,
	})); err != nil {
		return err
	}

	if err := e.transfer.Transfer(ctx, params.CollateralAssetId, receiver, amount); err != nil {
		return errors.Wrap(err, "push collateral")
	}

	return nil
}
