package store

import (
	"context"
	"strings"
	"sync"

	"github.com/tradequest/engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*model.Account
	assets    map[string]*model.Asset // keyed by upper-cased symbol
	ledger    []model.Transaction
	positions map[string]*model.Position // keyed by userID+"/"+assetID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*model.Account),
		assets:    make(map[string]*model.Asset),
		positions: make(map[string]*model.Position),
	}
}

func posKey(userID, assetID string) string { return userID + "/" + assetID }

func (s *MemoryStore) CreateAccount(_ context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.UserID]; ok {
		return model.ErrAccountExists
	}
	cp := *account
	s.accounts[account.UserID] = &cp
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, userID string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) UpdateAccountProgress(_ context.Context, userID string, xp int64, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return model.ErrAccountNotFound
	}
	a.XP = xp
	a.Level = level
	return nil
}

func (s *MemoryStore) CreateAsset(_ context.Context, asset *model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToUpper(asset.Symbol)
	if _, ok := s.assets[key]; ok {
		return model.ErrAssetExists
	}
	cp := *asset
	s.assets[key] = &cp
	return nil
}

func (s *MemoryStore) GetAssetBySymbol(_ context.Context, symbol string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[strings.ToUpper(symbol)]
	if !ok {
		return nil, model.ErrUnknownAsset
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]model.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		assets = append(assets, *a)
	}
	return assets, nil
}

func (s *MemoryStore) GetTransactionsByUserAsset(_ context.Context, userID, assetID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Ledger slice order is insertion order, which is the FIFO tie-break.
	var result []model.Transaction
	for _, tx := range s.ledger {
		if tx.UserID == userID && tx.AssetID == assetID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetRecentTransactions(_ context.Context, userID string, limit int) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Transaction
	for i := len(s.ledger) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		if s.ledger[i].UserID == userID {
			result = append(result, s.ledger[i])
		}
	}
	return result, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, assetID string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[posKey(userID, assetID)]
	if !ok {
		return nil, model.ErrPositionNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetUserPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

// CommitTrade applies the account update, ledger append and position
// upsert/delete under a single lock, so no partial state is observable.
func (s *MemoryStore) CommitTrade(_ context.Context, commit *TradeCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[commit.Account.UserID]
	if !ok {
		return model.ErrAccountNotFound
	}
	a.CashBalance = commit.Account.CashBalance
	a.RealizedPL = commit.Account.RealizedPL
	a.TradeCount = commit.Account.TradeCount

	s.ledger = append(s.ledger, commit.Entry)

	key := posKey(commit.Entry.UserID, commit.Entry.AssetID)
	if commit.RemovePosition {
		delete(s.positions, key)
	} else {
		cp := commit.Position
		s.positions[key] = &cp
	}
	return nil
}
