package core

import (
	"context"

	"github.com/IsoLiquid/core/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	MarketStore interface {
		CreateMarket(ctx context.Context, market *Market) error
		UpsertMarket(ctx context.Context, market *Market) error
		GetMarketById(ctx context.Context, marketId uuid.UUID) (*Market, error)
		ListMarkets(ctx context.Context) ([]*Market, error)
	}

	// MarketParams is a market's immutable identity. Two calls with
	// identical params always address the same market.
	MarketParams struct {
		LoanAssetId       string          `json:"loanAssetId"`
		CollateralAssetId string          `json:"collateralAssetId"`
		OracleId          string          `json:"oracleId"`
		RateModelId       string          `json:"rateModelId"`
		Lltv              decimal.Decimal `json:"lltv"`
	}

	Market struct {
		Id uuid.UUID `json:"id"`

		MarketParams `json:"marketParams"`

		TotalSupplyAssets decimal.Decimal `json:"totalSupplyAssets"`
		TotalSupplyShares decimal.Decimal `json:"totalSupplyShares"`
		TotalBorrowAssets decimal.Decimal `json:"totalBorrowAssets"`
		TotalBorrowShares decimal.Decimal `json:"totalBorrowShares"`

		// Fraction of accrued interest minted to the fee recipient.
		Fee decimal.Decimal `json:"fee"`

		CreatedAt  int64 `json:"createdAt"`
		LastUpdate int64 `json:"lastUpdate"`
	}
)

// Id derives the market identifier from the five identity fields, in order.
func (p MarketParams) Id() uuid.UUID {
	return uuid.Must(uuid.FromString(utils.GenUuidFromStrings(
		p.LoanAssetId,
		p.CollateralAssetId,
		p.OracleId,
		p.RateModelId,
		p.Lltv.String(),
	)))
}

func (p MarketParams) Validate() error {
	if p.LoanAssetId == "" || p.CollateralAssetId == "" {
		return UnknownAsset
	}
	if !p.Lltv.IsPositive() || p.Lltv.GreaterThanOrEqual(ONE) {
		return LltvTooHigh
	}
	return nil
}

func NewMarket(clk clock.Clock, params MarketParams) *Market {
	return &Market{
		Id:                params.Id(),
		MarketParams:      params,
		TotalSupplyAssets: decimal.Zero,
		TotalSupplyShares: decimal.Zero,
		TotalBorrowAssets: decimal.Zero,
		TotalBorrowShares: decimal.Zero,
		Fee:               decimal.Zero,
		CreatedAt:         clk.Now().Unix(),
		LastUpdate:        clk.Now().Unix(),
	}
}

func (m *Market) Clone() *Market {
	clone := *m
	return &clone
}

func (m *Market) Utilization() decimal.Decimal {
	if m.TotalSupplyAssets.IsZero() {
		return decimal.Zero
	}
	return m.TotalBorrowAssets.Div(m.TotalSupplyAssets)
}

// CheckLiquidity enforces that the ledger never lends out more than is
// deposited.
func (m *Market) CheckLiquidity() error {
	if m.TotalBorrowAssets.GreaterThan(m.TotalSupplyAssets) {
		return InsufficientLiquidity
	}
	return nil
}

// Supply-side conversions. The rounding direction is part of the name so
// call sites state their choice.

func (m *Market) SupplySharesDown(assets decimal.Decimal) decimal.Decimal {
	return ToSharesDown(assets, m.TotalSupplyAssets, m.TotalSupplyShares)
}

func (m *Market) SupplySharesUp(assets decimal.Decimal) decimal.Decimal {
	return ToSharesUp(assets, m.TotalSupplyAssets, m.TotalSupplyShares)
}

func (m *Market) SupplyAssetsDown(shares decimal.Decimal) decimal.Decimal {
	return ToAssetsDown(shares, m.TotalSupplyAssets, m.TotalSupplyShares)
}

func (m *Market) SupplyAssetsUp(shares decimal.Decimal) decimal.Decimal {
	return ToAssetsUp(shares, m.TotalSupplyAssets, m.TotalSupplyShares)
}

func (m *Market) BorrowSharesDown(assets decimal.Decimal) decimal.Decimal {
	return ToSharesDown(assets, m.TotalBorrowAssets, m.TotalBorrowShares)
}

func (m *Market) BorrowSharesUp(assets decimal.Decimal) decimal.Decimal {
	return ToSharesUp(assets, m.TotalBorrowAssets, m.TotalBorrowShares)
}

func (m *Market) BorrowAssetsDown(shares decimal.Decimal) decimal.Decimal {
	return ToAssetsDown(shares, m.TotalBorrowAssets, m.TotalBorrowShares)
}

func (m *Market) BorrowAssetsUp(shares decimal.Decimal) decimal.Decimal {
	return ToAssetsUp(shares, m.TotalBorrowAssets, m.TotalBorrowShares)
}

// SocializeLoss spreads a bad-debt write-off across all suppliers pro-rata
// by reducing the asset total while leaving the share count unchanged.
func (m *Market) SocializeLoss(lossAssets decimal.Decimal) {
	m.TotalSupplyAssets = ZeroFloorSub(m.TotalSupplyAssets, lossAssets)
}
