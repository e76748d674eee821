package core

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemoryStore is an in-memory implementation of every engine store: the
// arena-like repository holding all shared ledger state, so multiple
// independent engine instances can be built and tested side by side.
type MemoryStore struct {
	mu sync.RWMutex

	markets    map[uuid.UUID]*Market
	positions  map[uuid.UUID]map[uuid.UUID]*Position
	auths      map[uuid.UUID]map[uuid.UUID]bool
	rateStates map[uuid.UUID]*RateState
	events     []*Event
	assets     map[string]*Asset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:    make(map[uuid.UUID]*Market),
		positions:  make(map[uuid.UUID]map[uuid.UUID]*Position),
		auths:      make(map[uuid.UUID]map[uuid.UUID]bool),
		rateStates: make(map[uuid.UUID]*RateState),
		assets:     make(map[string]*Asset),
	}
}

// NewMemoryEngineStore bundles one MemoryStore as a full EngineStore.
func NewMemoryEngineStore() (EngineStore, *MemoryStore) {
	store := NewMemoryStore()
	return EngineStore{
		MarketStore:        store,
		PositionStore:      store,
		AuthorizationStore: store,
		RateStateStore:     store,
		EventStore:         store,
		AssetStore:         store,
	}, store
}

// ------------ MarketStore

func (s *MemoryStore) CreateMarket(ctx context.Context, market *Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markets[market.Id] = market.Clone()
	return nil
}

func (s *MemoryStore) UpsertMarket(ctx context.Context, market *Market) error {
	return s.CreateMarket(ctx, market)
}

func (s *MemoryStore) GetMarketById(ctx context.Context, marketId uuid.UUID) (*Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	market, ok := s.markets[marketId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return market.Clone(), nil
}

func (s *MemoryStore) ListMarkets(ctx context.Context) ([]*Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	markets := make([]*Market, 0, len(s.markets))
	for _, market := range s.markets {
		markets = append(markets, market.Clone())
	}
	return markets, nil
}

// ------------ PositionStore

func (s *MemoryStore) FindPosition(ctx context.Context, marketId, accountId uuid.UUID) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	position, ok := s.positions[marketId][accountId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return position.Clone(), nil
}

func (s *MemoryStore) UpsertPosition(ctx context.Context, position *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byAccount, ok := s.positions[position.MarketId]
	if !ok {
		byAccount = make(map[uuid.UUID]*Position)
		s.positions[position.MarketId] = byAccount
	}
	byAccount[position.AccountId] = position.Clone()
	return nil
}

func (s *MemoryStore) ListPositions(ctx context.Context, marketId uuid.UUID) ([]*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	positions := make([]*Position, 0, len(s.positions[marketId]))
	for _, position := range s.positions[marketId] {
		positions = append(positions, position.Clone())
	}
	return positions, nil
}

// ------------ AuthorizationStore

func (s *MemoryStore) UpsertAuthorization(ctx context.Context, auth *Authorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDelegate, ok := s.auths[auth.Owner]
	if !ok {
		byDelegate = make(map[uuid.UUID]bool)
		s.auths[auth.Owner] = byDelegate
	}
	byDelegate[auth.Delegate] = auth.Enabled
	return nil
}

func (s *MemoryStore) IsAuthorized(ctx context.Context, owner, delegate uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auths[owner][delegate], nil
}

// ------------ RateStateStore

func (s *MemoryStore) FindRateState(ctx context.Context, marketId uuid.UUID) (*RateState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.rateStates[marketId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *state
	return &clone, nil
}

func (s *MemoryStore) UpsertRateState(ctx context.Context, state *RateState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *state
	s.rateStates[state.MarketId] = &clone
	return nil
}

// ------------ EventStore

func (s *MemoryStore) CreateEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, marketId uuid.UUID, limit int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]*Event, 0, limit)
	for i := len(s.events) - 1; i >= 0; i-- {
		if marketId != uuid.Nil && s.events[i].MarketId != marketId {
			continue
		}
		events = append(events, s.events[i])
		if limit > 0 && int64(len(events)) >= limit {
			break
		}
	}
	return events, nil
}

// ------------ AssetStore

func (s *MemoryStore) GetAsset(ctx context.Context, assetId string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[assetId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *asset
	return &clone, nil
}

func (s *MemoryStore) ListAllAssets(ctx context.Context) ([]*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := make([]*Asset, 0, len(s.assets))
	for _, asset := range s.assets {
		clone := *asset
		assets = append(assets, &clone)
	}
	return assets, nil
}

func (s *MemoryStore) UpsertAsset(ctx context.Context, asset *Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *asset
	s.assets[asset.AssetId] = &clone
	return nil
}

// MemoryTransfer is an in-memory fungible-token ledger implementing the
// AssetTransfer collaborator. Transfers fail atomically when the source
// balance is short. Plain transfers draw on the vault account.
type MemoryTransfer struct {
	mu       sync.Mutex
	vault    uuid.UUID
	balances map[string]map[uuid.UUID]decimal.Decimal
}

func NewMemoryTransfer(vault uuid.UUID) *MemoryTransfer {
	return &MemoryTransfer{
		vault:    vault,
		balances: make(map[string]map[uuid.UUID]decimal.Decimal),
	}
}

func (t *MemoryTransfer) Mint(assetId string, to uuid.UUID, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(assetId, to, amount)
}

func (t *MemoryTransfer) BalanceOf(assetId string, account uuid.UUID) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, ok := t.balances[assetId][account]
	if !ok {
		return decimal.Zero
	}
	return balance
}

func (t *MemoryTransfer) Transfer(ctx context.Context, assetId string, to uuid.UUID, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balances[assetId][t.vault]
	if balance.LessThan(amount) {
		return InsufficientBalance
	}
	t.balances[assetId][t.vault] = balance.Sub(amount)
	t.credit(assetId, to, amount)
	return nil
}

func (t *MemoryTransfer) TransferFrom(ctx context.Context, assetId string, from, to uuid.UUID, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balances[assetId][from]
	if balance.LessThan(amount) {
		return InsufficientBalance
	}
	t.balances[assetId][from] = balance.Sub(amount)
	t.credit(assetId, to, amount)
	return nil
}

func (t *MemoryTransfer) credit(assetId string, to uuid.UUID, amount decimal.Decimal) {
	byAccount, ok := t.balances[assetId]
	if !ok {
		byAccount = make(map[uuid.UUID]decimal.Decimal)
		t.balances[assetId] = byAccount
	}
	byAccount[to] = byAccount[to].Add(amount)
}
