package core

import (
	"github.com/pkg/errors"
)

// Configuration errors.
var (
	UnknownMarket        = errors.New("unknown market")
	MarketAlreadyExists  = errors.New("market already exists")
	UnsupportedRateModel = errors.New("rate model not enabled")
	UnsupportedLLTV      = errors.New("lltv not enabled")
	UnknownAsset         = errors.New("asset not found in catalog")
	UnknownOracle        = errors.New("oracle not registered")
	LltvTooHigh          = errors.New("lltv must be below one")
	MaxFeeExceeded       = errors.New("fee above hard cap")
)

// Authorization errors.
var (
	Unauthorized = errors.New("caller is not owner or authorized delegate")
	NotOwner     = errors.New("caller is not the ledger owner")
)

// Invariant errors. These are the economic safety rails and are never
// downgraded or retried.
var (
	InsufficientLiquidity  = errors.New("insufficient liquidity")
	InsufficientCollateral = errors.New("insufficient collateral")
	HealthyPosition        = errors.New("position is healthy")
	ZeroAmount             = errors.New("zero amount")
	InconsistentInput      = errors.New("exactly one of assets and shares must be set")
	NegativeAmount         = errors.New("negative amount")
	InsufficientBalance    = errors.New("balance too small")
	InvalidPrice           = errors.New("oracle price is not positive")
)

// Transfer and call-guard errors.
var (
	UnrepaidFlashLoan = errors.New("flash loan not repaid")
	ReentrantCall     = errors.New("reentrant call into protected operation")
)
