package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	PositionStore interface {
		FindPosition(ctx context.Context, marketId, accountId uuid.UUID) (*Position, error)
		UpsertPosition(ctx context.Context, position *Position) error
		ListPositions(ctx context.Context, marketId uuid.UUID) ([]*Position, error)
	}

	Position struct {
		MarketId  uuid.UUID `json:"marketId"`
		AccountId uuid.UUID `json:"accountId"`

		SupplyShares decimal.Decimal `json:"supplyShares"`
		BorrowShares decimal.Decimal `json:"borrowShares"`
		// Collateral is kept in raw units of the collateral asset, not
		// share-denominated.
		Collateral decimal.Decimal `json:"collateral"`

		LastUpdate int64 `json:"lastUpdate"`
	}
)

func NewPosition(clk clock.Clock, marketId, accountId uuid.UUID) *Position {
	return &Position{
		MarketId:     marketId,
		AccountId:    accountId,
		SupplyShares: decimal.Zero,
		BorrowShares: decimal.Zero,
		Collateral:   decimal.Zero,
		LastUpdate:   clk.Now().Unix(),
	}
}

// FindOrCreatePosition loads the position for (marketId, accountId),
// creating an empty one in memory on first interaction. The caller
// persists it once the operation goes through.
func FindOrCreatePosition(ctx context.Context, clk clock.Clock, store PositionStore, marketId, accountId uuid.UUID) (*Position, error) {
	position, err := store.FindPosition(ctx, marketId, accountId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return NewPosition(clk, marketId, accountId), nil
		}
		return nil, err
	}
	return position, nil
}

func (p *Position) Clone() *Position {
	clone := *p
	return &clone
}

// ChangeSupplyShares applies a share delta, rejecting any change that would
// leave the balance negative.
func (p *Position) ChangeSupplyShares(delta decimal.Decimal) error {
	supplyShares := p.SupplyShares.Add(delta)
	if supplyShares.IsNegative() {
		return InsufficientBalance
	}
	p.SupplyShares = supplyShares
	return nil
}

func (p *Position) ChangeBorrowShares(delta decimal.Decimal) error {
	borrowShares := p.BorrowShares.Add(delta)
	if borrowShares.IsNegative() {
		return InsufficientBalance
	}
	p.BorrowShares = borrowShares
	return nil
}

func (p *Position) ChangeCollateral(delta decimal.Decimal) error {
	collateral := p.Collateral.Add(delta)
	if collateral.IsNegative() {
		return InsufficientBalance
	}
	p.Collateral = collateral
	return nil
}
