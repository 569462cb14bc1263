package trade

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/metrics"
	"github.com/tradequest/engine/internal/model"
	"github.com/tradequest/engine/internal/oracle"
)

var hundred = decimal.NewFromInt(100)

// Portfolio marks every open position to market and totals the result.
// Price resolution per position: live quote → asset reference price →
// position average cost (last resort, logged as a data-quality condition).
// This path performs no writes and takes no trade locks; concurrent trades
// may make the numbers momentarily stale, which is acceptable — valuation
// is advisory, not authoritative.
func (s *Service) Portfolio(ctx context.Context, userID string) (*model.Portfolio, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions, err := s.store.GetUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	valued := make([]model.PositionValue, 0, len(positions))
	total := decimal.Zero

	for _, p := range positions {
		price, source := s.currentPrice(ctx, p)

		pv := model.PositionValue{
			Position:     p,
			CurrentPrice: price,
			PriceSource:  source,
			MarketValue:  p.Quantity.Mul(price),
		}
		// Guard division by zero on a degenerate cost basis.
		if p.AverageCost.IsPositive() {
			pv.UnrealizedPct = price.Sub(p.AverageCost).Div(p.AverageCost).Mul(hundred).Round(2)
		}

		total = total.Add(pv.MarketValue)
		valued = append(valued, pv)
	}

	return &model.Portfolio{
		UserID:      userID,
		Positions:   valued,
		TotalValue:  total,
		CashBalance: account.CashBalance,
	}, nil
}

// currentPrice resolves the valuation price for a position, walking the
// fallback chain. Each oracle call is bounded by the configured timeout.
func (s *Service) currentPrice(ctx context.Context, p model.Position) (decimal.Decimal, string) {
	qctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	price, err := s.oracle.Quote(qctx, p.Symbol)
	if err == nil && price.IsPositive() {
		return price, model.PriceSourceLive
	}

	if asset, aerr := s.catalog.Resolve(ctx, p.Symbol); aerr == nil && asset.ReferencePrice.IsPositive() {
		metrics.PriceFallbacks.WithLabelValues(model.PriceSourceReference).Inc()
		return asset.ReferencePrice, model.PriceSourceReference
	}

	metrics.PriceFallbacks.WithLabelValues(model.PriceSourceAvgCost).Inc()
	slog.Warn("no quote or reference price, valuing at average cost",
		"symbol", p.Symbol, "user", p.UserID, "err", err)
	return p.AverageCost, model.PriceSourceAvgCost
}

// QuotePrice resolves a display price for a symbol with the same fallback
// chain valuation uses, minus the average-cost step (no position context).
func (s *Service) QuotePrice(ctx context.Context, symbol string) (decimal.Decimal, string, error) {
	asset, err := s.catalog.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, "", err
	}

	qctx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	defer cancel()

	price, qerr := s.oracle.Quote(qctx, asset.Symbol)
	if qerr == nil && price.IsPositive() {
		return price, model.PriceSourceLive, nil
	}
	if !errors.Is(qerr, oracle.ErrUnavailable) {
		slog.Warn("quote lookup failed", "symbol", asset.Symbol, "err", qerr)
	}

	metrics.PriceFallbacks.WithLabelValues(model.PriceSourceReference).Inc()
	return asset.ReferencePrice, model.PriceSourceReference, nil
}
