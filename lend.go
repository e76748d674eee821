package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Supply deposits loan assets for onBehalf. Exactly one of assets and
// shares drives the operation; the other is derived. Shares round down when
// assets drive so existing suppliers' per-share value never decreases from
// a deposit. The asset is pulled from the caller after the state update.
func (e *Engine) Supply(ctx context.Context, caller uuid.UUID, params MarketParams, assets, shares decimal.Decimal, onBehalf uuid.UUID, data []byte, cb SupplyCallback) (decimal.Decimal, decimal.Decimal, error) {
	if err := e.lock(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer e.unlock()

	if err := checkExactlyOne(assets, shares); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if assets.IsPositive() {
		shares = market.SupplySharesDown(assets)
	} else {
		assets = market.SupplyAssetsUp(shares)
	}
	if assets.IsZero() || shares.IsZero() {
		return decimal.Zero, decimal.Zero, ZeroAmount
	}

	position, err := e.findOrCreatePosition(ctx, acc, market.Id, onBehalf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := position.ChangeSupplyShares(shares); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	market.TotalSupplyShares = market.TotalSupplyShares.Add(shares)
	market.TotalSupplyAssets = market.TotalSupplyAssets.Add(assets)

	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, onBehalf, ATSupply, EventDetail{
		Assets:       assets,
		Shares:       shares,
		Counterparty: caller,
	})); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if cb != nil {
		if err := cb.OnSupply(ctx, assets, data); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	if err := e.transfer.TransferFrom(ctx, params.LoanAssetId, caller, e.vault, assets); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "pull supply assets")
	}

	return assets, shares, nil
}

// Withdraw redeems supply shares for onBehalf and pushes the assets to
// receiver. Shares round up when assets drive, protecting remaining
// suppliers. Liquidity currently lent out cannot be withdrawn.
func (e *Engine) Withdraw(ctx context.Context, caller uuid.UUID, params MarketParams, assets, shares decimal.Decimal, onBehalf, receiver uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	if err := e.lock(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer e.unlock()

	if err := checkExactlyOne(assets, shares); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.checkSenderAuthorized(ctx, caller, onBehalf); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if assets.IsPositive() {
		shares = market.SupplySharesUp(assets)
	} else {
		assets = market.SupplyAssetsDown(shares)
	}
	if assets.IsZero() || shares.IsZero() {
		return decimal.Zero, decimal.Zero, ZeroAmount
	}

	position, err := e.findPosition(ctx, acc, market.Id, onBehalf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := position.ChangeSupplyShares(shares.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	market.TotalSupplyShares = market.TotalSupplyShares.Sub(shares)
	market.TotalSupplyAssets = market.TotalSupplyAssets.Sub(assets)

	if err := market.CheckLiquidity(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, onBehalf, ATWithdraw, EventDetail{
		Assets:       assets,
		Shares:       shares,
		Counterparty: receiver,
	})); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if err := e.transfer.Transfer(ctx, params.LoanAssetId, receiver, assets); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "push withdrawn assets")
	}

	return assets, shares, nil
}

// Borrow draws loan assets against onBehalf's collateral and pushes them to
// receiver. Shares round up when assets drive, protecting the pool. The
// liquidity check runs before the solvency check.
func (e *Engine) Borrow(ctx context.Context, caller uuid.UUID, params MarketParams, assets, shares decimal.Decimal, onBehalf, receiver uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	if err := e.lock(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer e.unlock()

	if err := checkExactlyOne(assets, shares); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.checkSenderAuthorized(ctx, caller, onBehalf); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if assets.IsPositive() {
		shares = market.BorrowSharesUp(assets)
	} else {
		assets = market.BorrowAssetsDown(shares)
	}
	if assets.IsZero() || shares.IsZero() {
		return decimal.Zero, decimal.Zero, ZeroAmount
	}

	position, err := e.findOrCreatePosition(ctx, acc, market.Id, onBehalf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := position.ChangeBorrowShares(shares); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	market.TotalBorrowShares = market.TotalBorrowShares.Add(shares)
	market.TotalBorrowAssets = market.TotalBorrowAssets.Add(assets)

	if err := market.CheckLiquidity(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	price, err := e.collateralPrice(ctx, market)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !isHealthy(market, position, price) {
		return decimal.Zero, decimal.Zero, InsufficientCollateral
	}

	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, onBehalf, ATBorrow, EventDetail{
		Assets:       assets,
		Shares:       shares,
		Counterparty: receiver,
	})); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if err := e.transfer.Transfer(ctx, params.LoanAssetId, receiver, assets); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "push borrowed assets")
	}

	return assets, shares, nil
}

// Repay pays down onBehalf's debt. Shares round down when assets drive,
// protecting the pool from under-collection. Payment is pulled from the
// caller after the state update.
func (e *Engine) Repay(ctx context.Context, caller uuid.UUID, params MarketParams, assets, shares decimal.Decimal, onBehalf uuid.UUID, data []byte, cb RepayCallback) (decimal.Decimal, decimal.Decimal, error) {
	if err := e.lock(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer e.unlock()

	if err := checkExactlyOne(assets, shares); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if assets.IsPositive() {
		shares = market.BorrowSharesDown(assets)
	} else {
		assets = market.BorrowAssetsUp(shares)
	}
	if assets.IsZero() || shares.IsZero() {
		return decimal.Zero, decimal.Zero, ZeroAmount
	}

	position, err := e.findPosition(ctx, acc, market.Id, onBehalf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := position.ChangeBorrowShares(shares.Neg()); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	market.TotalBorrowShares = market.TotalBorrowShares.Sub(shares)
	market.TotalBorrowAssets = ZeroFloorSub(market.TotalBorrowAssets, assets)

	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, onBehalf, ATRepay, EventDetail{
		Assets:       assets,
		Shares:       shares,
		Counterparty: caller,
	})); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	if cb != nil {
		if err := cb.OnRepay(ctx, assets, data); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}
	if err := e.transfer.TransferFrom(ctx, params.LoanAssetId, caller, e.vault, assets); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "pull repayment")
	}

	return assets, shares, nil
}

func (e *Engine) findPosition(ctx context.Context, acc *accrual, marketId, accountId uuid.UUID) (*Position, error) {
	if position := acc.positionFor(marketId, accountId); position != nil {
		return position, nil
	}
	position, err := e.FindPosition(ctx, marketId, accountId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, InsufficientBalance
		}
		return nil, err
	}
	return position, nil
}
