package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// AssetTransfer moves the underlying asset between accounts. Both methods
// either fully succeed or fail atomically; the engine treats a failed
// transfer as fatal and unwinds the operation.
type AssetTransfer interface {
	Transfer(ctx context.Context, assetId string, to uuid.UUID, amount decimal.Decimal) error
	TransferFrom(ctx context.Context, assetId string, from, to uuid.UUID, amount decimal.Decimal) error
}

// Callbacks are invoked after the corresponding state mutation and before
// the asset is pulled from the caller, so the caller can source funds inside
// the same atomic call.

type SupplyCallback interface {
	OnSupply(ctx context.Context, assets decimal.Decimal, data []byte) error
}

type RepayCallback interface {
	OnRepay(ctx context.Context, assets decimal.Decimal, data []byte) error
}

type SupplyCollateralCallback interface {
	OnSupplyCollateral(ctx context.Context, assets decimal.Decimal, data []byte) error
}

type LiquidateCallback interface {
	OnLiquidate(ctx context.Context, repaidAssets decimal.Decimal, data []byte) error
}

type FlashLoanCallback interface {
	OnFlashLoan(ctx context.Context, assets decimal.Decimal, data []byte) error
}
