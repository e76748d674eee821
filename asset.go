package core

import (
	"context"

	"github.com/fox-one/mixin-sdk-go/v2"
	"github.com/shopspring/decimal"
)

type (
	AssetStore interface {
		GetAsset(ctx context.Context, assetId string) (*Asset, error)
		ListAllAssets(ctx context.Context) ([]*Asset, error)
		UpsertAsset(ctx context.Context, asset *Asset) error
	}

	// Asset is a catalog entry for a fungible asset the ledger may lend or
	// take as collateral.
	Asset struct {
		AssetId   string          `json:"assetId,omitempty"`
		ChainId   string          `json:"chainId,omitempty"`
		Symbol    string          `json:"symbol,omitempty"`
		Name      string          `json:"name,omitempty"`
		Precision int32           `json:"precision,omitempty"`
		Dust      decimal.Decimal `json:"dust,omitempty"`
	}
)

func NewAssetFromMixin(asset *mixin.SafeAsset) *Asset {
	return &Asset{
		AssetId:   asset.AssetID,
		ChainId:   asset.ChainID,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		Precision: asset.Precision,
		Dust:      asset.Dust,
	}
}
