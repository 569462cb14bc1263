// Package store defines the persistence interface for the trading engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
package store

import (
	"context"

	"github.com/tradequest/engine/internal/model"
)

// TradeCommit is the single atomic unit of a buy or sell: the updated
// account row, the immutable ledger entry, and the position upsert/delete.
// Implementations apply all three or none.
type TradeCommit struct {
	// Account carries the post-trade balance, realized P&L and trade count.
	Account model.Account

	// Entry is appended to the ledger, never modified afterwards.
	Entry model.Transaction

	// Position is the post-trade position; ignored when RemovePosition is
	// set, which deletes the (user, asset) row instead.
	Position       model.Position
	RemovePosition bool
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer on top of it.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account; model.ErrAccountExists on dup.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount retrieves one account; model.ErrAccountNotFound if absent.
	GetAccount(ctx context.Context, userID string) (*model.Account, error)

	// UpdateAccountProgress sets XP and level. Gamification metadata only;
	// deliberately outside the trade commit.
	UpdateAccountProgress(ctx context.Context, userID string, xp int64, level int) error

	// --- Asset catalog ---

	// CreateAsset persists a new asset; model.ErrAssetExists on dup symbol.
	CreateAsset(ctx context.Context, asset *model.Asset) error

	// GetAssetBySymbol resolves a symbol; model.ErrUnknownAsset if absent.
	GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error)

	// ListAssets returns the whole catalog.
	ListAssets(ctx context.Context) ([]model.Asset, error)

	// --- Immutable ledger ---

	// GetTransactionsByUserAsset returns the full buy/sell history for one
	// (user, asset) in ledger insertion order, oldest first. FIFO matching
	// depends on this ordering being stable.
	GetTransactionsByUserAsset(ctx context.Context, userID, assetID string) ([]model.Transaction, error)

	// GetRecentTransactions returns the user's latest entries, newest first.
	GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error)

	// --- Positions (derived cache, rebuildable from the ledger) ---

	// GetPosition returns one open position; model.ErrPositionNotFound if
	// the user holds none of the asset.
	GetPosition(ctx context.Context, userID, assetID string) (*model.Position, error)

	// GetUserPositions returns all open positions for a user.
	GetUserPositions(ctx context.Context, userID string) ([]model.Position, error)

	// --- Atomic trade commit ---

	// CommitTrade applies a TradeCommit atomically: if any step fails the
	// whole commit rolls back and no partial state is visible.
	CommitTrade(ctx context.Context, commit *TradeCommit) error
}
