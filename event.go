package core

import (
	"context"
	"database/sql/driver"
	"encoding/json"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type (
	EventStore interface {
		CreateEvent(ctx context.Context, event *Event) error
		ListEvents(ctx context.Context, marketId uuid.UUID, limit int64) ([]*Event, error)
	}

	// Event is the state-change record emitted by every ledger operation.
	Event struct {
		Id        uuid.UUID   `json:"id"`
		MarketId  uuid.UUID   `json:"marketId"`
		AccountId uuid.UUID   `json:"accountId"`
		Action    ActionType  `json:"action"`
		Detail    EventDetail `json:"detail"`
		CreatedAt int64       `json:"createdAt"`
	}

	EventDetail struct {
		Assets       decimal.Decimal `json:"assets,omitempty"`
		Shares       decimal.Decimal `json:"shares,omitempty"`
		Collateral   decimal.Decimal `json:"collateral,omitempty"`
		Counterparty uuid.UUID       `json:"counterparty,omitempty"`

		Interest  decimal.Decimal `json:"interest,omitempty"`
		FeeShares decimal.Decimal `json:"feeShares,omitempty"`

		BadDebtAssets decimal.Decimal `json:"badDebtAssets,omitempty"`
		BadDebtShares decimal.Decimal `json:"badDebtShares,omitempty"`
	}
)

func NewEvent(clk clock.Clock, marketId, accountId uuid.UUID, action ActionType, detail EventDetail) *Event {
	return &Event{
		Id:        uuid.Must(uuid.NewV4()),
		MarketId:  marketId,
		AccountId: accountId,
		Action:    action,
		Detail:    detail,
		CreatedAt: clk.Now().Unix(),
	}
}

func (j EventDetail) Value() (driver.Value, error) {
	valueString, err := json.Marshal(j)
	return string(valueString), err
}

func (j *EventDetail) Scan(value any) error {
	if err := json.Unmarshal(value.([]byte), &j); err != nil {
		return err
	}
	return nil
}

type ActionType uint8

const (
	ATCreateMarket ActionType = iota + 1
	ATAccrueInterest
	ATSupply
	ATWithdraw
	ATBorrow
	ATRepay
	ATSupplyCollateral
	ATWithdrawCollateral
	ATLiquidate
	ATFlashLoan
	ATSetAuthorization
	ATSetFee
)

func (a ActionType) String() string {
	switch a {
	case ATCreateMarket:
		return "CreateMarket"
	case ATAccrueInterest:
		return "AccrueInterest"
	case ATSupply:
		return "Supply"
	case ATWithdraw:
		return "Withdraw"
	case ATBorrow:
		return "Borrow"
	case ATRepay:
		return "Repay"
	case ATSupplyCollateral:
		return "SupplyCollateral"
	case ATWithdrawCollateral:
		return "WithdrawCollateral"
	case ATLiquidate:
		return "Liquidate"
	case ATFlashLoan:
		return "FlashLoan"
	case ATSetAuthorization:
		return "SetAuthorization"
	case ATSetFee:
		return "SetFee"
	default:
		return "Unknown"
	}
}
