package core

import (
	"testing"

	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testMarketParams() MarketParams {
	return MarketParams{
		LoanAssetId:       "usd-coin",
		CollateralAssetId: "bitcoin",
		OracleId:          "fixed-oracle",
		RateModelId:       "adaptive-v1",
		Lltv:              decimal.NewFromFloat(0.8),
	}
}

func TestMarketIdDeterministic(t *testing.T) {
	params := testMarketParams()
	assert.Equal(t, params.Id(), testMarketParams().Id())

	swapped := testMarketParams()
	swapped.LoanAssetId, swapped.CollateralAssetId = swapped.CollateralAssetId, swapped.LoanAssetId
	assert.NotEqual(t, params.Id(), swapped.Id(), "swapping asset legs must address a different market")

	otherLltv := testMarketParams()
	otherLltv.Lltv = decimal.NewFromFloat(0.6)
	assert.NotEqual(t, params.Id(), otherLltv.Id())

	otherModel := testMarketParams()
	otherModel.RateModelId = "adaptive-v2"
	assert.NotEqual(t, params.Id(), otherModel.Id())
}

func TestMarketParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *MarketParams)
		wantErr error
	}{
		{name: "valid", mutate: func(p *MarketParams) {}, wantErr: nil},
		{name: "lltv one", mutate: func(p *MarketParams) { p.Lltv = ONE }, wantErr: LltvTooHigh},
		{name: "lltv zero", mutate: func(p *MarketParams) { p.Lltv = decimal.Zero }, wantErr: LltvTooHigh},
		{name: "missing loan asset", mutate: func(p *MarketParams) { p.LoanAssetId = "" }, wantErr: UnknownAsset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testMarketParams()
			tt.mutate(&params)
			err := params.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestMarketUtilization(t *testing.T) {
	market := NewMarket(clock.NewMock(), testMarketParams())
	assert.True(t, market.Utilization().IsZero())

	market.TotalSupplyAssets = decimal.NewFromInt(1000)
	market.TotalBorrowAssets = decimal.NewFromInt(800)
	assert.True(t, market.Utilization().Equal(decimal.NewFromFloat(0.8)))
}

func TestMarketCheckLiquidity(t *testing.T) {
	market := NewMarket(clock.NewMock(), testMarketParams())
	market.TotalSupplyAssets = decimal.NewFromInt(1000)
	market.TotalBorrowAssets = decimal.NewFromInt(1000)
	assert.NoError(t, market.CheckLiquidity())

	market.TotalBorrowAssets = decimal.NewFromInt(1001)
	assert.ErrorIs(t, market.CheckLiquidity(), InsufficientLiquidity)
}

func TestSocializeLoss(t *testing.T) {
	market := NewMarket(clock.NewMock(), testMarketParams())
	market.TotalSupplyAssets = decimal.NewFromInt(1000)
	market.TotalSupplyShares = decimal.NewFromInt(1_000_000_000)

	market.SocializeLoss(decimal.NewFromInt(250))
	assert.True(t, market.TotalSupplyAssets.Equal(decimal.NewFromInt(750)))
	// The share count stays unchanged: the loss spreads pro-rata.
	assert.True(t, market.TotalSupplyShares.Equal(decimal.NewFromInt(1_000_000_000)))

	// Writing off more than exists floors at zero.
	market.SocializeLoss(decimal.NewFromInt(10_000))
	assert.True(t, market.TotalSupplyAssets.IsZero())
}
