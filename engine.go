package core

import (
	"context"
	"sync/atomic"

	"github.com/IsoLiquid/core/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EngineStore bundles the per-aggregate stores the engine works against.
type EngineStore struct {
	MarketStore
	PositionStore
	AuthorizationStore
	RateStateStore
	EventStore
	AssetStore
}

// Engine is the singleton ledger: it owns all market and position state,
// orchestrates interest accrual, enforces solvency, and executes
// liquidation and flash issuance. Execution is single-threaded and atomic
// per external call; a call-guard rejects nested calls into protected
// operations.
type Engine struct {
	EngineStore

	transfer AssetTransfer
	clk      clock.Clock
	log      Log

	// vault is the engine's own account on the transfer collaborator.
	vault        uuid.UUID
	owner        uuid.UUID
	feeRecipient uuid.UUID

	rateModels   map[string]RateModel
	oracles      map[string]PriceAdapter
	enabledLltvs map[string]bool

	busy atomic.Bool
}

type EngineOption func(e *Engine)

func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clk = clk
	}
}

func WithLog(log Log) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

func WithFeeRecipient(feeRecipient uuid.UUID) EngineOption {
	return func(e *Engine) {
		e.feeRecipient = feeRecipient
	}
}

func NewEngine(store EngineStore, transfer AssetTransfer, owner uuid.UUID, opts ...EngineOption) *Engine {
	logger := NewLogger("engine")
	e := &Engine{
		EngineStore:  store,
		transfer:     transfer,
		clk:          clock.New(),
		log:          &logger,
		vault:        uuid.Must(uuid.FromString(utils.GenUuidFromStrings("vault", owner.String()))),
		owner:        owner,
		feeRecipient: owner,
		rateModels:   make(map[string]RateModel),
		oracles:      make(map[string]PriceAdapter),
		enabledLltvs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Vault returns the engine's transfer account.
func (e *Engine) Vault() uuid.UUID {
	return e.vault
}

func (e *Engine) lock() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ReentrantCall
	}
	return nil
}

func (e *Engine) unlock() {
	e.busy.Store(false)
}

// ------------ owner-gated configuration

func (e *Engine) RegisterRateModel(caller uuid.UUID, id string, model RateModel) error {
	if caller != e.owner {
		return NotOwner
	}
	e.rateModels[id] = model
	return nil
}

func (e *Engine) RegisterOracle(caller uuid.UUID, id string, adapter PriceAdapter) error {
	if caller != e.owner {
		return NotOwner
	}
	e.oracles[id] = adapter
	return nil
}

func (e *Engine) EnableLltv(caller uuid.UUID, lltv decimal.Decimal) error {
	if caller != e.owner {
		return NotOwner
	}
	if !lltv.IsPositive() || lltv.GreaterThanOrEqual(ONE) {
		return LltvTooHigh
	}
	e.enabledLltvs[lltv.String()] = true
	return nil
}

func (e *Engine) SetOwner(caller, newOwner uuid.UUID) error {
	if caller != e.owner {
		return NotOwner
	}
	e.owner = newOwner
	return nil
}

func (e *Engine) SetFeeRecipient(caller, feeRecipient uuid.UUID) error {
	if caller != e.owner {
		return NotOwner
	}
	e.feeRecipient = feeRecipient
	return nil
}

// SetFee accrues with the old fee before switching to the new one.
func (e *Engine) SetFee(ctx context.Context, caller uuid.UUID, params MarketParams, fee decimal.Decimal) error {
	if caller != e.owner {
		return NotOwner
	}
	if fee.IsNegative() || fee.GreaterThan(MAX_FEE) {
		return MaxFeeExceeded
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return err
	}
	market.Fee = fee
	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return err
	}
	if err := e.UpsertMarket(ctx, market); err != nil {
		return err
	}

	return e.CreateEvent(ctx, NewEvent(e.clk, market.Id, caller, ATSetFee, EventDetail{}))
}

// ------------ delegation

// SetAuthorization lets the caller enable or revoke a delegate for its own
// positions. No confirmation from the delegate is required.
func (e *Engine) SetAuthorization(ctx context.Context, caller, delegate uuid.UUID, enabled bool) error {
	if err := e.UpsertAuthorization(ctx, NewAuthorization(e.clk, caller, delegate, enabled)); err != nil {
		return err
	}
	return e.CreateEvent(ctx, NewEvent(e.clk, uuid.Nil, caller, ATSetAuthorization, EventDetail{
		Counterparty: delegate,
	}))
}

func (e *Engine) checkSenderAuthorized(ctx context.Context, caller, onBehalf uuid.UUID) error {
	if caller == onBehalf {
		return nil
	}
	ok, err := e.IsAuthorized(ctx, onBehalf, caller)
	if err != nil {
		return err
	}
	if !ok {
		return Unauthorized
	}
	return nil
}

// ------------ market creation

// CreateMarket stores zeroed state for the given params. The rate model and
// LLTV must be on the owner-maintained allow-lists and both asset legs must
// exist in the catalog.
func (e *Engine) CreateMarket(ctx context.Context, params MarketParams) (*Market, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.unlock()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, ok := e.rateModels[params.RateModelId]; !ok {
		return nil, UnsupportedRateModel
	}
	if _, ok := e.oracles[params.OracleId]; !ok {
		return nil, UnknownOracle
	}
	if !e.enabledLltvs[params.Lltv.String()] {
		return nil, UnsupportedLLTV
	}
	if _, err := e.GetAsset(ctx, params.LoanAssetId); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, UnknownAsset
		}
		return nil, err
	}
	if _, err := e.GetAsset(ctx, params.CollateralAssetId); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, UnknownAsset
		}
		return nil, err
	}

	if _, err := e.GetMarketById(ctx, params.Id()); err == nil {
		return nil, MarketAlreadyExists
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	market := NewMarket(e.clk, params)
	if err := e.EngineStore.CreateMarket(ctx, market); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("marketId", market.Id.String()).
		Str("loanAsset", params.LoanAssetId).
		Str("collateralAsset", params.CollateralAssetId).
		Str("lltv", params.Lltv.String()).
		Msg("market created")

	if err := e.CreateEvent(ctx, NewEvent(e.clk, market.Id, uuid.Nil, ATCreateMarket, EventDetail{})); err != nil {
		return nil, err
	}
	return market, nil
}

func (e *Engine) loadMarket(ctx context.Context, params MarketParams) (*Market, error) {
	market, err := e.GetMarketById(ctx, params.Id())
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, UnknownMarket
		}
		return nil, err
	}
	return market, nil
}

// ------------ interest accrual

// AccrueInterest settles pending interest for a market without any other
// state change.
func (e *Engine) AccrueInterest(ctx context.Context, params MarketParams) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()

	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return err
	}
	acc, err := e.accrueInterest(ctx, market)
	if err != nil {
		return err
	}
	if err := e.commitAccrual(ctx, market, acc); err != nil {
		return err
	}
	return e.UpsertMarket(ctx, market)
}

// accrual carries the writes a pending interest accrual still owes the
// store. Nothing is persisted until the surrounding operation has passed
// every check: a rejected operation stores nothing and the next attempt
// accrues the same period again.
type accrual struct {
	interest    decimal.Decimal
	feeShares   decimal.Decimal
	feePosition *Position
	rateState   *RateState
}

// positionFor hands back the in-memory fee position when the operation
// touches the same row, so a single clone carries both mutations.
func (a *accrual) positionFor(marketId, accountId uuid.UUID) *Position {
	if a == nil || a.feePosition == nil {
		return nil
	}
	if a.feePosition.MarketId == marketId && a.feePosition.AccountId == accountId {
		return a.feePosition
	}
	return nil
}

// accrueInterest pulls the current rate and applies simple linear interest
// for the elapsed period, mutating the market in memory only. Interest is
// paid by borrowers and earned by suppliers; a fee cut is minted to the fee
// recipient as new supply shares at the pre-mint exchange rate. The caller
// commits the returned accrual and persists the market once its own checks
// pass.
func (e *Engine) accrueInterest(ctx context.Context, market *Market) (*accrual, error) {
	acc := &accrual{
		interest:  decimal.Zero,
		feeShares: decimal.Zero,
	}

	now := e.clk.Now().Unix()
	elapsed := now - market.LastUpdate
	if elapsed <= 0 {
		return acc, nil
	}
	market.LastUpdate = now

	if market.TotalBorrowAssets.IsZero() {
		return acc, nil
	}

	model, ok := e.rateModels[market.RateModelId]
	if !ok {
		return nil, UnsupportedRateModel
	}
	rate, rateState, err := model.BorrowRate(ctx, market.MarketParams, market)
	if err != nil {
		return nil, err
	}
	acc.rateState = rateState

	interest := CalcInterestForPeriod(market.TotalBorrowAssets, rate, elapsed)
	if interest.IsZero() {
		return acc, nil
	}
	acc.interest = interest

	market.TotalBorrowAssets = market.TotalBorrowAssets.Add(interest)
	market.TotalSupplyAssets = market.TotalSupplyAssets.Add(interest)

	if market.Fee.IsPositive() {
		feeAmount := interest.Mul(market.Fee).Floor()
		// Price the fee shares as if the fee had not been credited yet,
		// so the mint does not dilute itself.
		feeShares := ToSharesDown(feeAmount, market.TotalSupplyAssets.Sub(feeAmount), market.TotalSupplyShares)
		if feeShares.IsPositive() {
			position, err := e.FindPosition(ctx, market.Id, e.feeRecipient)
			if err != nil {
				if err != gorm.ErrRecordNotFound {
					return nil, err
				}
				position = NewPosition(e.clk, market.Id, e.feeRecipient)
			}
			if err := position.ChangeSupplyShares(feeShares); err != nil {
				return nil, err
			}
			market.TotalSupplyShares = market.TotalSupplyShares.Add(feeShares)
			acc.feeShares = feeShares
			acc.feePosition = position
		}
	}

	e.log.Debug().
		Str("marketId", market.Id.String()).
		Int64("elapsed", elapsed).
		Str("interest", interest.String()).
		Str("feeShares", acc.feeShares.String()).
		Msg("interest accrued")

	return acc, nil
}

// commitAccrual persists the accrual's write set. Called only after the
// operation's invariant checks have all passed, alongside the market
// upsert.
func (e *Engine) commitAccrual(ctx context.Context, market *Market, acc *accrual) error {
	if acc == nil {
		return nil
	}
	if acc.rateState != nil {
		if err := e.UpsertRateState(ctx, acc.rateState); err != nil {
			return err
		}
	}
	if acc.feePosition != nil {
		if err := e.UpsertPosition(ctx, acc.feePosition); err != nil {
			return err
		}
	}
	if acc.interest.IsPositive() {
		return e.CreateEvent(ctx, NewEvent(e.clk, market.Id, e.feeRecipient, ATAccrueInterest, EventDetail{
			Interest:  acc.interest,
			FeeShares: acc.feeShares,
		}))
	}
	return nil
}

func (e *Engine) findOrCreatePosition(ctx context.Context, acc *accrual, marketId, accountId uuid.UUID) (*Position, error) {
	if position := acc.positionFor(marketId, accountId); position != nil {
		return position, nil
	}
	return FindOrCreatePosition(ctx, e.clk, e.EngineStore, marketId, accountId)
}

// ------------ solvency

func (e *Engine) collateralPrice(ctx context.Context, market *Market) (decimal.Decimal, error) {
	adapter, ok := e.oracles[market.OracleId]
	if !ok {
		return decimal.Zero, UnknownOracle
	}
	price, err := adapter.Price(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, InvalidPrice
	}
	return price, nil
}

// isHealthy reports whether the position's borrowed value stays within its
// collateral value scaled by the market's LLTV. Borrowed value rounds up,
// collateral value rounds down.
func isHealthy(market *Market, position *Position, price decimal.Decimal) bool {
	if position.BorrowShares.IsZero() {
		return true
	}
	borrowed := market.BorrowAssetsUp(position.BorrowShares)
	maxBorrow := position.Collateral.Mul(price).Mul(market.Lltv).Floor()
	return maxBorrow.GreaterThanOrEqual(borrowed)
}

// HealthFactor returns collateral-capacity / borrowed-value for inspection;
// positions at or above 1 are healthy. Positions with no debt report a zero
// value and true.
func (e *Engine) HealthFactor(ctx context.Context, params MarketParams, accountId uuid.UUID) (decimal.Decimal, bool, error) {
	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return decimal.Zero, false, err
	}
	position, err := e.FindPosition(ctx, market.Id, accountId)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, true, nil
		}
		return decimal.Zero, false, err
	}
	if position.BorrowShares.IsZero() {
		return decimal.Zero, true, nil
	}
	price, err := e.collateralPrice(ctx, market)
	if err != nil {
		return decimal.Zero, false, err
	}
	borrowed := market.BorrowAssetsUp(position.BorrowShares)
	maxBorrow := position.Collateral.Mul(price).Mul(market.Lltv).Floor()
	return maxBorrow.Div(borrowed), isHealthy(market, position, price), nil
}

// ExpectedMarketBalances previews totals after accrual without mutating
// state.
func (e *Engine) ExpectedMarketBalances(ctx context.Context, params MarketParams) (*Market, error) {
	market, err := e.loadMarket(ctx, params)
	if err != nil {
		return nil, err
	}
	preview := market.Clone()

	now := e.clk.Now().Unix()
	elapsed := now - preview.LastUpdate
	if elapsed <= 0 || preview.TotalBorrowAssets.IsZero() {
		return preview, nil
	}
	model, ok := e.rateModels[preview.RateModelId]
	if !ok {
		return nil, UnsupportedRateModel
	}
	rate, err := model.BorrowRateView(ctx, preview.Id, preview.Utilization())
	if err != nil {
		return nil, err
	}
	interest := CalcInterestForPeriod(preview.TotalBorrowAssets, rate, elapsed)
	preview.TotalBorrowAssets = preview.TotalBorrowAssets.Add(interest)
	preview.TotalSupplyAssets = preview.TotalSupplyAssets.Add(interest)
	preview.LastUpdate = now
	return preview, nil
}

// checkExactlyOne enforces that exactly one of assets and shares drives the
// operation.
func checkExactlyOne(assets, shares decimal.Decimal) error {
	if assets.IsNegative() || shares.IsNegative() {
		return NegativeAmount
	}
	if assets.IsZero() == shares.IsZero() {
		return InconsistentInput
	}
	return nil
}
