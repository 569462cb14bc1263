// Package trade implements the trade executor and the portfolio read path:
// validating and committing buys and sells, FIFO realized P&L, the XP side
// effect, and mark-to-market valuation.
//
// All monetary values use shopspring/decimal — never float64 for money.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/catalog"
	"github.com/tradequest/engine/internal/config"
	"github.com/tradequest/engine/internal/fifo"
	"github.com/tradequest/engine/internal/metrics"
	"github.com/tradequest/engine/internal/model"
	"github.com/tradequest/engine/internal/oracle"
	"github.com/tradequest/engine/internal/store"
	"github.com/tradequest/engine/internal/xp"
)

// Service orchestrates trade execution. All mutations for one account are
// serialized by a keyed mutex for the whole check-then-commit window: the
// cash balance is per user, so buys of different assets still contend for
// it. The postgres store additionally locks the account row inside the
// commit transaction.
type Service struct {
	store   store.Store
	catalog *catalog.Catalog
	oracle  oracle.Oracle
	xp      *xp.Engine

	rate            decimal.Decimal // quote → home
	homeCurrency    string
	quoteCurrency   string
	startingBalance decimal.Decimal
	oracleTimeout   time.Duration

	locks *keyedMutex
	wsHub *WSHub // optional; nil disables broadcasting
}

// NewService creates a trade service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(
	st store.Store,
	cat *catalog.Catalog,
	orc oracle.Oracle,
	xpe *xp.Engine,
	cfg *config.Config,
	hub *WSHub,
) *Service {
	return &Service{
		store:           st,
		catalog:         cat,
		oracle:          orc,
		xp:              xpe,
		rate:            cfg.ExchangeRate(),
		homeCurrency:    cfg.Exchange.HomeCurrency,
		quoteCurrency:   cfg.Exchange.QuoteCurrency,
		startingBalance: cfg.StartingBalance(),
		oracleTimeout:   cfg.OracleTimeout(),
		locks:           newKeyedMutex(),
		wsHub:           hub,
	}
}

// OpenAccount creates an account funded with the configured starting balance.
func (s *Service) OpenAccount(ctx context.Context, userID string) (*model.Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", model.ErrInvalidInput)
	}

	account := &model.Account{
		UserID:      userID,
		CashBalance: s.startingBalance,
		RealizedPL:  decimal.Zero,
		Level:       s.xp.LevelFor(0),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	slog.Info("account opened", "user", userID, "balance", account.CashBalance.String())
	return account, nil
}

// Account returns the account for a user.
func (s *Service) Account(ctx context.Context, userID string) (*model.Account, error) {
	return s.store.GetAccount(ctx, userID)
}

// RecentTransactions returns the user's latest ledger entries, newest first.
func (s *Service) RecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.store.GetRecentTransactions(ctx, userID, limit)
}

func validateOrder(quantity, unitPrice decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", model.ErrInvalidInput)
	}
	if !unitPrice.IsPositive() {
		return fmt.Errorf("%w: price must be positive", model.ErrInvalidInput)
	}
	return nil
}

// Buy executes a purchase of quantity units at unitPrice (quote currency).
// The cost is converted to the home currency at the fixed rate and debited;
// no partial fills. Returns the committed transaction and confirmation.
func (s *Service) Buy(ctx context.Context, userID, symbol string, quantity, unitPrice decimal.Decimal) (*model.TradeResult, error) {
	start := time.Now()

	if err := validateOrder(quantity, unitPrice); err != nil {
		metrics.TradeRejections.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	asset, err := s.catalog.Resolve(ctx, symbol)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("unknown_asset").Inc()
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	costQuote := quantity.Mul(unitPrice)
	costHome := costQuote.Mul(s.rate)

	if account.CashBalance.LessThan(costHome) {
		metrics.TradeRejections.WithLabelValues("insufficient_balance").Inc()
		return nil, fmt.Errorf("%w: need %s %s, have %s",
			model.ErrInsufficientBalance, costHome, s.homeCurrency, account.CashBalance)
	}

	position, err := s.store.GetPosition(ctx, userID, asset.ID)
	switch {
	case errors.Is(err, model.ErrPositionNotFound):
		position = &model.Position{
			UserID:      userID,
			AssetID:     asset.ID,
			Symbol:      asset.Symbol,
			Quantity:    quantity,
			AverageCost: unitPrice,
		}
	case err != nil:
		return nil, err
	default:
		// Quantity-weighted mean of the old holding and the new lot.
		oldQty := position.Quantity
		newQty := oldQty.Add(quantity)
		position.AverageCost = oldQty.Mul(position.AverageCost).
			Add(quantity.Mul(unitPrice)).
			Div(newQty)
		position.Quantity = newQty
	}

	account.CashBalance = account.CashBalance.Sub(costHome)
	account.TradeCount++

	entry := model.Transaction{
		ID:         uuid.New().String(),
		UserID:     userID,
		AssetID:    asset.ID,
		Symbol:     asset.Symbol,
		Side:       model.SideBuy,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		ExecutedAt: time.Now().UTC(),
	}

	if err := s.store.CommitTrade(ctx, &store.TradeCommit{
		Account:  *account,
		Entry:    entry,
		Position: *position,
	}); err != nil {
		return nil, err
	}

	awarded, level := s.awardXP(ctx, userID, "buy", quantity)

	metrics.TradesTotal.WithLabelValues(string(model.SideBuy)).Inc()
	metrics.TradeLatency.WithLabelValues(string(model.SideBuy)).Observe(time.Since(start).Seconds())

	slog.Info("buy committed",
		"user", userID,
		"symbol", asset.Symbol,
		"qty", quantity.String(),
		"price", unitPrice.String(),
		"cost_home", costHome.String(),
		"balance", account.CashBalance.String(),
	)

	s.broadcast(entry, decimal.Zero)

	return &model.TradeResult{
		Transaction: entry,
		GrossQuote:  costQuote,
		GrossHome:   costHome,
		NewBalance:  account.CashBalance,
		XPAwarded:   awarded,
		Level:       level,
		Message: fmt.Sprintf("Bought %s %s at %s %s: cost %s %s (%s %s)",
			quantity, asset.Symbol, unitPrice, s.quoteCurrency,
			costQuote, s.quoteCurrency, costHome, s.homeCurrency),
	}, nil
}

// Sell executes a sale of quantity units at unitPrice (quote currency).
// Realized P&L is computed by FIFO matching against the remaining buy lots
// reconstructed from the ledger; proceeds and P&L convert to the home
// currency at the fixed rate. No short selling, no partial fills.
func (s *Service) Sell(ctx context.Context, userID, symbol string, quantity, unitPrice decimal.Decimal) (*model.TradeResult, error) {
	start := time.Now()

	if err := validateOrder(quantity, unitPrice); err != nil {
		metrics.TradeRejections.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	asset, err := s.catalog.Resolve(ctx, symbol)
	if err != nil {
		metrics.TradeRejections.WithLabelValues("unknown_asset").Inc()
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetTransactionsByUserAsset(ctx, userID, asset.ID)
	if err != nil {
		return nil, err
	}

	held := fifo.NetQuantity(history)
	if held.LessThan(quantity) {
		metrics.TradeRejections.WithLabelValues("insufficient_holdings").Inc()
		return nil, fmt.Errorf("%w: selling %s, holding %s %s",
			model.ErrInsufficientHoldings, quantity, held, asset.Symbol)
	}

	match, err := fifo.MatchSale(history, quantity)
	if err != nil {
		if errors.Is(err, model.ErrCostBasisInconsistency) {
			s.logInconsistency(userID, asset, quantity, held, history)
			metrics.TradeRejections.WithLabelValues("cost_basis_inconsistency").Inc()
		}
		return nil, err
	}

	proceedsQuote := quantity.Mul(unitPrice)
	proceedsHome := proceedsQuote.Mul(s.rate)
	plQuote := proceedsQuote.Sub(match.MatchedCost)
	plHome := plQuote.Mul(s.rate)

	account.CashBalance = account.CashBalance.Add(proceedsHome)
	account.RealizedPL = account.RealizedPL.Add(plHome)
	account.TradeCount++

	// The ledger is authoritative for the remaining quantity; average cost
	// is carried over untouched — it is not an output of the FIFO match.
	// If the position row is missing the average is rebuilt from the lots.
	remaining := held.Sub(quantity)
	var averageCost decimal.Decimal
	position, err := s.store.GetPosition(ctx, userID, asset.ID)
	switch {
	case err == nil:
		averageCost = position.AverageCost
	case errors.Is(err, model.ErrPositionNotFound):
		if lots, lotErr := fifo.RemainingLots(history); lotErr == nil {
			totalQty, totalCost := decimal.Zero, decimal.Zero
			for _, lot := range lots {
				totalQty = totalQty.Add(lot.Remaining)
				totalCost = totalCost.Add(lot.Remaining.Mul(lot.UnitPrice))
			}
			if totalQty.IsPositive() {
				averageCost = totalCost.Div(totalQty)
			}
		}
	default:
		return nil, err
	}

	entry := model.Transaction{
		ID:         uuid.New().String(),
		UserID:     userID,
		AssetID:    asset.ID,
		Symbol:     asset.Symbol,
		Side:       model.SideSell,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		ExecutedAt: time.Now().UTC(),
	}

	if err := s.store.CommitTrade(ctx, &store.TradeCommit{
		Account: *account,
		Entry:   entry,
		Position: model.Position{
			UserID:      userID,
			AssetID:     asset.ID,
			Symbol:      asset.Symbol,
			Quantity:    remaining,
			AverageCost: averageCost,
		},
		RemovePosition: remaining.IsZero(),
	}); err != nil {
		return nil, err
	}

	awarded, level := s.awardXP(ctx, userID, "sell", quantity)

	metrics.TradesTotal.WithLabelValues(string(model.SideSell)).Inc()
	metrics.TradeLatency.WithLabelValues(string(model.SideSell)).Observe(time.Since(start).Seconds())

	slog.Info("sell committed",
		"user", userID,
		"symbol", asset.Symbol,
		"qty", quantity.String(),
		"price", unitPrice.String(),
		"realized_pl_home", plHome.String(),
		"balance", account.CashBalance.String(),
	)

	s.broadcast(entry, plHome)

	return &model.TradeResult{
		Transaction:     entry,
		GrossQuote:      proceedsQuote,
		GrossHome:       proceedsHome,
		RealizedPLQuote: plQuote,
		RealizedPLHome:  plHome,
		NewBalance:      account.CashBalance,
		XPAwarded:       awarded,
		Level:           level,
		Message: fmt.Sprintf("Sold %s %s at %s %s: proceeds %s %s (%s %s), P&L %s %s (%s %s)",
			quantity, asset.Symbol, unitPrice, s.quoteCurrency,
			proceedsQuote, s.quoteCurrency, proceedsHome, s.homeCurrency,
			plQuote, s.quoteCurrency, plHome, s.homeCurrency),
	}, nil
}

// awardXP runs the post-commit XP side effect. A failure here is logged and
// swallowed: the trade is already committed and XP is gamification metadata,
// not financial state.
func (s *Service) awardXP(ctx context.Context, userID, action string, quantity decimal.Decimal) (int64, int) {
	awarded, level, err := s.xp.Award(ctx, userID, action, quantity)
	if err != nil {
		slog.Warn("xp award failed", "user", userID, "action", action, "err", err)
		return 0, 0
	}
	metrics.XPAwarded.Add(float64(awarded))
	return awarded, level
}

// logInconsistency dumps full lot detail for offline investigation: the
// ledger and position views have diverged, which is a bug, not a user error.
func (s *Service) logInconsistency(userID string, asset *model.Asset, quantity, held decimal.Decimal, history []model.Transaction) {
	lots, lotErr := fifo.RemainingLots(history)
	attrs := []any{
		"user", userID,
		"symbol", asset.Symbol,
		"sale_qty", quantity.String(),
		"net_held", held.String(),
		"history_len", len(history),
	}
	if lotErr != nil {
		attrs = append(attrs, "lot_replay_err", lotErr.Error())
	}
	for i, lot := range lots {
		attrs = append(attrs,
			fmt.Sprintf("lot_%d", i),
			fmt.Sprintf("tx=%s remaining=%s price=%s", lot.TransactionID, lot.Remaining, lot.UnitPrice))
	}
	slog.Error("cost basis inconsistency", attrs...)
}

func (s *Service) broadcast(entry model.Transaction, realizedPL decimal.Decimal) {
	if s.wsHub == nil {
		return
	}
	msg := WSMessage{
		Type:      "trade_executed",
		UserID:    entry.UserID,
		Symbol:    entry.Symbol,
		Side:      string(entry.Side),
		Quantity:  entry.Quantity.String(),
		UnitPrice: entry.UnitPrice.String(),
	}
	if entry.Side == model.SideSell {
		msg.RealizedPL = realizedPL.String()
	}
	s.wsHub.Broadcast(msg)
}
