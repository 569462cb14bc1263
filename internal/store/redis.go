package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradequest/engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Only the hot read paths
// (asset resolution, accounts, per-user positions) are cached — ledger
// queries feed FIFO matching and must always see the source of truth.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func accountKey(userID string) string   { return fmt.Sprintf("account:%s", userID) }
func assetKey(symbol string) string     { return fmt.Sprintf("asset:%s", symbol) }
func positionsKey(userID string) string { return fmt.Sprintf("positions:%s", userID) }

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := s.primary.CreateAccount(ctx, account); err != nil {
		return err
	}
	s.cacheJSON(ctx, accountKey(account.UserID), account)
	return nil
}

func (s *CachedStore) UpdateAccountProgress(ctx context.Context, userID string, xp int64, level int) error {
	if err := s.primary.UpdateAccountProgress(ctx, userID, xp, level); err != nil {
		return err
	}
	s.rdb.Del(ctx, accountKey(userID))
	return nil
}

func (s *CachedStore) CreateAsset(ctx context.Context, asset *model.Asset) error {
	if err := s.primary.CreateAsset(ctx, asset); err != nil {
		return err
	}
	s.cacheJSON(ctx, assetKey(asset.Symbol), asset)
	return nil
}

func (s *CachedStore) CommitTrade(ctx context.Context, commit *TradeCommit) error {
	if err := s.primary.CommitTrade(ctx, commit); err != nil {
		return err
	}
	// Invalidate; next read re-populates from the primary.
	s.rdb.Del(ctx,
		accountKey(commit.Account.UserID),
		positionsKey(commit.Entry.UserID),
	)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(userID)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, accountKey(userID), a)
	return a, nil
}

func (s *CachedStore) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	data, err := s.rdb.Get(ctx, assetKey(symbol)).Bytes()
	if err == nil {
		var a model.Asset
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, assetKey(symbol), a)
	return a, nil
}

func (s *CachedStore) GetUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, positionsKey(userID)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	positions, err := s.primary.GetUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(userID), data, s.ttl)
	}
	return positions, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.primary.ListAssets(ctx)
}

func (s *CachedStore) GetTransactionsByUserAsset(ctx context.Context, userID, assetID string) ([]model.Transaction, error) {
	return s.primary.GetTransactionsByUserAsset(ctx, userID, assetID)
}

func (s *CachedStore) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.primary.GetRecentTransactions(ctx, userID, limit)
}

func (s *CachedStore) GetPosition(ctx context.Context, userID, assetID string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, userID, assetID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}
