package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type (
	// RateModel prices borrowing per market. BorrowRate advances the
	// model's adaptive state in memory and returns it for the caller to
	// persist atomically with the market update; it never writes itself.
	// BorrowRateView is pure.
	RateModel interface {
		BorrowRate(ctx context.Context, params MarketParams, market *Market) (decimal.Decimal, *RateState, error)
		BorrowRateView(ctx context.Context, marketId uuid.UUID, utilization decimal.Decimal) (decimal.Decimal, error)
	}

	RateStateStore interface {
		FindRateState(ctx context.Context, marketId uuid.UUID) (*RateState, error)
		UpsertRateState(ctx context.Context, state *RateState) error
	}

	// RateState is the adaptive model's single scalar per market: the
	// per-second borrow rate at target utilization.
	RateState struct {
		MarketId     uuid.UUID       `json:"marketId"`
		RateAtTarget decimal.Decimal `json:"rateAtTarget"`
		LastUpdate   int64           `json:"lastUpdate"`
	}
)

// AdaptiveCurveModel keeps rates gentle under normal utilization and
// punitive near saturation. The rate at target utilization drifts toward
// equilibrium over time based on how far utilization sits from target.
type AdaptiveCurveModel struct {
	store RateStateStore
	clk   clock.Clock
	log   Log
}

func NewAdaptiveCurveModel(store RateStateStore, clk clock.Clock, log Log) *AdaptiveCurveModel {
	return &AdaptiveCurveModel{
		store: store,
		clk:   clk,
		log:   log,
	}
}

// BorrowRate returns the current per-second rate plus, when the adaptive
// state moved (lazy init or drift), the updated state. The caller persists
// it together with the accrued market so a rejected operation leaves the
// drift window untouched.
func (m *AdaptiveCurveModel) BorrowRate(ctx context.Context, params MarketParams, market *Market) (decimal.Decimal, *RateState, error) {
	var pending *RateState

	state, err := m.store.FindRateState(ctx, market.Id)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return decimal.Zero, nil, err
		}
		state = &RateState{
			MarketId:     market.Id,
			RateAtTarget: INITIAL_RATE_AT_TARGET,
			LastUpdate:   m.clk.Now().Unix(),
		}
		pending = state
	}

	utilization := market.Utilization()
	now := m.clk.Now().Unix()
	elapsed := now - state.LastUpdate

	if elapsed > 0 {
		state.RateAtTarget = driftRateAtTarget(state.RateAtTarget, utilization, elapsed)
		state.LastUpdate = now
		pending = state
	}

	rate := curveRate(state.RateAtTarget, utilization)

	m.log.Debug().
		Str("marketId", market.Id.String()).
		Str("utilization", utilization.String()).
		Str("rateAtTarget", state.RateAtTarget.String()).
		Str("borrowRate", rate.String()).
		Msg("borrow rate")

	return rate, pending, nil
}

// BorrowRateView reports the instantaneous rate for off-chain inspection
// without touching the stored state.
func (m *AdaptiveCurveModel) BorrowRateView(ctx context.Context, marketId uuid.UUID, utilization decimal.Decimal) (decimal.Decimal, error) {
	state, err := m.store.FindRateState(ctx, marketId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return curveRate(INITIAL_RATE_AT_TARGET, utilization), nil
		}
		return decimal.Zero, err
	}
	return curveRate(state.RateAtTarget, utilization), nil
}

// utilizationDeviation maps utilization to [-1, 1]: -1 at zero utilization,
// 0 at target, +1 at full utilization.
func utilizationDeviation(utilization decimal.Decimal) decimal.Decimal {
	if utilization.LessThanOrEqual(TARGET_UTILIZATION) {
		return utilization.Sub(TARGET_UTILIZATION).Div(TARGET_UTILIZATION)
	}
	deviation := utilization.Sub(TARGET_UTILIZATION).Div(ONE.Sub(TARGET_UTILIZATION))
	return decimal.Min(deviation, ONE)
}

func driftRateAtTarget(rateAtTarget, utilization decimal.Decimal, elapsed int64) decimal.Decimal {
	deviation := utilizationDeviation(utilization)
	drift := deviation.Mul(ADJUSTMENT_SPEED).Mul(decimal.NewFromInt(elapsed))
	return clampRateAtTarget(rateAtTarget.Mul(ONE.Add(drift)))
}

func clampRateAtTarget(rate decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(rate, MIN_RATE_AT_TARGET), MAX_RATE_AT_TARGET)
}

// curveRate shapes the instantaneous rate: linear from zero up to the
// target, then a quadratic climb toward steepness times the target rate at
// full utilization.
func curveRate(rateAtTarget, utilization decimal.Decimal) decimal.Decimal {
	if utilization.LessThanOrEqual(TARGET_UTILIZATION) {
		return rateAtTarget.Mul(utilization).Div(TARGET_UTILIZATION)
	}

	excess := decimal.Min(utilization.Sub(TARGET_UTILIZATION).Div(ONE.Sub(TARGET_UTILIZATION)), ONE)
	multiplier := ONE.Add(CURVE_STEEPNESS.Sub(ONE).Mul(excess).Mul(excess))
	return rateAtTarget.Mul(multiplier)
}
