// Package fifo implements first-in-first-out cost-basis matching over an
// immutable trade ledger.
//
// The ledger is the source of truth: the remaining (unconsumed) buy lots for
// a user+asset are reconstructed on every sale by replaying the full history
// in insertion order, consuming earlier sells against the oldest lots first.
// Replaying per sale is deliberate — at simulator volumes it is cheap, and it
// keeps positions rebuildable from transactions alone.
//
// All quantities and prices use shopspring/decimal — never float64 for money.
package fifo

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/model"
)

// Lot is an unconsumed slice of a past buy transaction.
type Lot struct {
	TransactionID string
	Remaining     decimal.Decimal
	UnitPrice     decimal.Decimal // quote currency
}

// Match is the result of matching one sale against the remaining lots.
type Match struct {
	// MatchedCost is Σ(consumed × lot price) in the quote currency.
	MatchedCost decimal.Decimal

	// Consumed lists the lots drawn from, oldest first, with the quantity
	// taken from each. Kept for inconsistency diagnostics.
	Consumed []Lot
}

// NetQuantity returns Σ(buy quantities) − Σ(sell quantities) for a history.
func NetQuantity(history []model.Transaction) decimal.Decimal {
	net := decimal.Zero
	for _, tx := range history {
		switch tx.Side {
		case model.SideBuy:
			net = net.Add(tx.Quantity)
		case model.SideSell:
			net = net.Sub(tx.Quantity)
		}
	}
	return net
}

// RemainingLots replays history in ledger insertion order and returns the buy
// lots not yet consumed by earlier sells, oldest first. Two lots with equal
// timestamps keep their insertion order, so repeated runs over the same
// ledger are deterministic.
//
// A sell that over-consumes the lots existing before it means the ledger
// itself does not reconcile; that surfaces as ErrCostBasisInconsistency.
func RemainingLots(history []model.Transaction) ([]Lot, error) {
	var lots []Lot
	for _, tx := range history {
		switch tx.Side {
		case model.SideBuy:
			lots = append(lots, Lot{
				TransactionID: tx.ID,
				Remaining:     tx.Quantity,
				UnitPrice:     tx.UnitPrice,
			})
		case model.SideSell:
			needed := tx.Quantity
			for needed.IsPositive() && len(lots) > 0 {
				take := decimal.Min(lots[0].Remaining, needed)
				lots[0].Remaining = lots[0].Remaining.Sub(take)
				needed = needed.Sub(take)
				if lots[0].Remaining.IsZero() {
					lots = lots[1:]
				}
			}
			if needed.IsPositive() {
				return nil, fmt.Errorf("%w: sell %s consumed %s more than available lots",
					model.ErrCostBasisInconsistency, tx.ID, needed)
			}
		}
	}
	return lots, nil
}

// MatchSale matches a sale of quantity against the remaining lots of history,
// oldest first, and returns the matched cost. The caller is expected to have
// already verified quantity <= NetQuantity(history); if the lots still do not
// cover the sale the ledger and position views have diverged and
// ErrCostBasisInconsistency is returned. No state is mutated either way.
func MatchSale(history []model.Transaction, quantity decimal.Decimal) (Match, error) {
	if !quantity.IsPositive() {
		return Match{}, fmt.Errorf("%w: sale quantity must be positive", model.ErrInvalidInput)
	}

	lots, err := RemainingLots(history)
	if err != nil {
		return Match{}, err
	}

	m := Match{MatchedCost: decimal.Zero}
	needed := quantity
	for _, lot := range lots {
		if !needed.IsPositive() {
			break
		}
		take := decimal.Min(lot.Remaining, needed)
		m.MatchedCost = m.MatchedCost.Add(take.Mul(lot.UnitPrice))
		m.Consumed = append(m.Consumed, Lot{
			TransactionID: lot.TransactionID,
			Remaining:     take,
			UnitPrice:     lot.UnitPrice,
		})
		needed = needed.Sub(take)
	}

	if needed.IsPositive() {
		return Match{}, fmt.Errorf("%w: lots short by %s for sale of %s",
			model.ErrCostBasisInconsistency, needed, quantity)
	}
	return m, nil
}
