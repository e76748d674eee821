package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// LiquidateResult records the outcome of one liquidation, including any
// bad-debt write-off socialized across suppliers.
type LiquidateResult struct {
	MarketId   uuid.UUID `json:"marketId"`
	Borrower   uuid.UUID `json:"borrower"`
	Liquidator uuid.UUID `json:"liquidator"`

	SeizedAssets decimal.Decimal `json:"seizedAssets"`
	RepaidAssets decimal.Decimal `json:"repaidAssets"`
	RepaidShares decimal.Decimal `json:"repaidShares"`

	BadDebtAssets decimal.Decimal `json:"badDebtAssets"`
	BadDebtShares decimal.Decimal `json:"badDebtShares"`
}

// LiquidationIncentiveFactor grows as LLTV falls: markets that liquidate
// earlier pay liquidators more, capped at a fixed ceiling.
func LiquidationIncentiveFactor(lltv decimal.Decimal) decimal.Decimal {
	factor := ONE.Div(ONE.Sub(LIQUIDATION_CURSOR.Mul(ONE.Sub(lltv))))
	return decimal.Min(MAX_LIQUIDATION_INCENTIVE, factor)
}

// Liquidate seizes collateral from an unhealthy borrower in exchange for
// repaying debt. Exactly one of seizedAssets and repaidShares drives the
// exchange; the other is derived through the oracle price and the incentive
// factor. If the seizure empties the borrower's collateral while debt
// remains, the remainder is written off against the supply side.
func (e *Engine) Liquidate(ctx context.Context, caller uuid.UUID, params MarketParams, borrower uuid.UUID, seizedAssets, repaidShares decimal.Decimal, data []byte, cb LiquidateCallback) (*LiquidateResult, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.unlock()

	if err := checkExactlyOne(seizedAssets, repaidShares); err != nil {
		return nil, err
	}

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return nil, err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return nil, err
	}

	position, err := e.findPosition(ctx, acc, market.Id, borrower)
	if err != nil {
		return nil, err
	}

	price, err := e.collateralPrice(ctx, market)
	if err != nil {
		return nil, err
	}
	if isHealthy(market, position, price) {
		return nil, HealthyPosition
	}

	incentive := LiquidationIncentiveFactor(market.Lltv)

	if seizedAssets.IsPositive() {
		seizedQuoted := seizedAssets.Mul(price)
		repaidAssetsDriving := seizedQuoted.Div(incentive).Ceil()
		repaidShares = market.BorrowSharesUp(repaidAssetsDriving)
	} else {
		seizedAssets = market.BorrowAssetsDown(repaidShares).Mul(incentive).Div(price).Floor()
	}
	repaidAssets := market.BorrowAssetsUp(repaidShares)

	if seizedAssets.IsZero() || repaidShares.IsZero() {
		return nil, ZeroAmount
	}

	if err := position.ChangeBorrowShares(repaidShares.Neg()); err != nil {
		return nil, err
	}
	market.TotalBorrowShares = market.TotalBorrowShares.Sub(repaidShares)
	market.TotalBorrowAssets = ZeroFloorSub(market.TotalBorrowAssets, repaidAssets)

	if err := position.ChangeCollateral(seizedAssets.Neg()); err != nil {
		return nil, err
	}

	result := &LiquidateResult{
		MarketId:      market.Id,
		Borrower:      borrower,
		Liquidator:    caller,
		SeizedAssets:  seizedAssets,
		RepaidAssets:  repaidAssets,
		RepaidShares:  repaidShares,
		BadDebtAssets: decimal.Zero,
		BadDebtShares: decimal.Zero,
	}

	// Bad-debt rule: an emptied position with debt left cannot be
	// recovered from; the residual is taken out of suppliers pro-rata via
	// the unchanged share count.
	if position.Collateral.IsZero() && position.BorrowShares.IsPositive() {
		badDebtShares := position.BorrowShares
		badDebtAssets := decimal.Min(market.TotalBorrowAssets, market.BorrowAssetsUp(badDebtShares))

		market.TotalBorrowAssets = market.TotalBorrowAssets.Sub(badDebtAssets)
		market.TotalBorrowShares = market.TotalBorrowShares.Sub(badDebtShares)
		market.SocializeLoss(badDebtAssets)
		position.BorrowShares = decimal.Zero

		result.BadDebtAssets = badDebtAssets
		result.BadDebtShares = badDebtShares

		e.log.Warn().
			Str("marketId", market.Id.String()).
			Str("borrower", borrower.String()).
			Str("badDebtAssets", badDebtAssets.String()).
			Msg("bad debt socialized")
	}

	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return nil, err
	}
	if err := e.UpsertPosition(ctx, position); err != nil {
		return nil, err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return nil, err
	}
	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, borrower, ATLiquidate, EventDetail{
		Assets:        repaidAssets,
		Shares:        repaidShares,
		Collateral:    seizedAssets,
		Counterparty:  caller,
		BadDebtAssets: result.BadDebtAssets,
		BadDebtShares: result.BadDebtShares,
	})); err != nil {
		return nil, err
	}

	// The liquidator receives the seized collateral first, may source
	// funds in the callback, and pays the repaid amount last.
	if err := e.transfer.Transfer(ctx, params.CollateralAssetId, caller, seizedAssets); err != nil {
		return nil, errors.Wrap(err, "push seized collateral")
	}
	if cb != nil {
		if err := cb.OnLiquidate(ctx, repaidAssets, data); err != nil {
			return nil, err
		}
	}
	if err := e.transfer.TransferFrom(ctx, params.LoanAssetId, caller, e.vault, repaidAssets); err != nil {
		return nil, errors.Wrap(err, "pull liquidation repayment")
	}

	return result, nil
}
