// Package model defines the core domain types shared across the trading
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side distinguishes the two directions of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Account holds one user's play-money state. CashBalance and RealizedPL are
// denominated in the home currency; XP and Level are gamification progress.
// CashBalance never goes negative after a committed operation.
type Account struct {
	UserID      string          `json:"user_id" db:"user_id"`
	CashBalance decimal.Decimal `json:"cash_balance" db:"cash_balance"`
	RealizedPL  decimal.Decimal `json:"realized_pl" db:"realized_pl"`
	TradeCount  int64           `json:"trade_count" db:"trade_count"`
	XP          int64           `json:"xp" db:"xp"`
	Level       int             `json:"level" db:"level"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Asset is a tradable instrument. ReferencePrice is the seeded fallback used
// when no live quote is available; Currency is the quote currency the asset
// trades in (distinct from the account's home currency).
type Asset struct {
	ID             string          `json:"id" db:"id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Name           string          `json:"name" db:"name"`
	Class          string          `json:"class" db:"class"` // e.g. "equity", "crypto", "demo"
	ReferencePrice decimal.Decimal `json:"reference_price" db:"reference_price"`
	Currency       string          `json:"currency" db:"currency"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Transaction is an immutable ledger record of one executed buy or sell.
// Once committed these are never modified or deleted; positions are a
// derived cache rebuildable from them.
type Transaction struct {
	ID         string          `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	AssetID    string          `json:"asset_id" db:"asset_id"`
	Symbol     string          `json:"symbol" db:"symbol"`
	Side       Side            `json:"side" db:"side"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`     // always positive
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"` // quote currency
	ExecutedAt time.Time       `json:"executed_at" db:"executed_at"`
}

// Position is the current holding of one asset for one user. Quantity always
// equals Σ(buys) − Σ(sells) from the ledger; rows drained to zero are
// deleted. AverageCost is the quantity-weighted buy price, informational for
// unrealized valuation only — realized P&L comes from FIFO lot matching.
type Position struct {
	UserID      string          `json:"user_id" db:"user_id"`
	AssetID     string          `json:"asset_id" db:"asset_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"` // quote currency
}

// Price source labels reported in portfolio valuations.
const (
	PriceSourceLive      = "live"
	PriceSourceReference = "reference"
	PriceSourceAvgCost   = "average_cost"
)

// PositionValue is a Position marked to market for the portfolio read path.
type PositionValue struct {
	Position
	CurrentPrice  decimal.Decimal `json:"current_price"`
	PriceSource   string          `json:"price_source"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPct decimal.Decimal `json:"unrealized_pct"`
}

// Portfolio aggregates a user's valued positions with cash and totals.
type Portfolio struct {
	UserID      string          `json:"user_id"`
	Positions   []PositionValue `json:"positions"`
	TotalValue  decimal.Decimal `json:"total_value"` // quote currency
	CashBalance decimal.Decimal `json:"cash_balance"`
}

// TradeResult is returned from a committed buy or sell.
type TradeResult struct {
	Transaction Transaction `json:"transaction"`

	// GrossQuote is the cost (buy) or proceeds (sell) in the quote currency;
	// GrossHome is its home-currency equivalent at the fixed rate.
	GrossQuote decimal.Decimal `json:"gross_quote"`
	GrossHome  decimal.Decimal `json:"gross_home"`

	// Realized P&L, sells only; zero on buys.
	RealizedPLQuote decimal.Decimal `json:"realized_pl_quote"`
	RealizedPLHome  decimal.Decimal `json:"realized_pl_home"`

	NewBalance decimal.Decimal `json:"new_balance"`
	XPAwarded  int64           `json:"xp_awarded"`
	Level      int             `json:"level"`
	Message    string          `json:"message"`
}
