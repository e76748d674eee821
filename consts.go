package core

import (
	"github.com/shopspring/decimal"
)

const (
	SECONDS_PER_YEAR = 31_536_000
)

var (
	ONE = decimal.NewFromInt(1)

	// Virtual offsets applied in every assets<->shares conversion. They pin
	// the empty-market exchange rate and blunt first-depositor share
	// inflation.
	VIRTUAL_SHARES = decimal.NewFromInt(1_000_000)
	VIRTUAL_ASSETS = decimal.NewFromInt(1)

	// Hard cap on the fraction of accrued interest routed to the fee
	// recipient.
	MAX_FEE = decimal.NewFromFloat(0.25)

	// Liquidation incentive: factor = 1 / (1 - cursor*(1 - lltv)), capped.
	LIQUIDATION_CURSOR        = decimal.NewFromFloat(0.3)
	MAX_LIQUIDATION_INCENTIVE = decimal.NewFromFloat(1.15)
)

var (
	secondsPerYear = decimal.NewFromInt(SECONDS_PER_YEAR)

	TARGET_UTILIZATION = decimal.NewFromFloat(0.9)
	CURVE_STEEPNESS    = decimal.NewFromInt(4)

	// Annual figures converted to per-second rates.
	INITIAL_RATE_AT_TARGET = decimal.NewFromFloat(0.04).Div(secondsPerYear)
	MIN_RATE_AT_TARGET     = decimal.NewFromFloat(0.001).Div(secondsPerYear)
	MAX_RATE_AT_TARGET     = decimal.NewFromInt(2).Div(secondsPerYear)

	// Speed at which rateAtTarget drifts toward equilibrium, per second of
	// elapsed time at full deviation.
	ADJUSTMENT_SPEED = decimal.NewFromInt(50).Div(secondsPerYear)
)
