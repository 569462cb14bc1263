package fifo_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradequest/engine/internal/fifo"
	"github.com/tradequest/engine/internal/model"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func tx(id string, side model.Side, qty, price float64) model.Transaction {
	return model.Transaction{
		ID:         id,
		UserID:     "u1",
		AssetID:    "a1",
		Side:       side,
		Quantity:   d(qty),
		UnitPrice:  d(price),
		ExecutedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNetQuantity(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 10, 100),
		tx("t2", model.SideSell, 4, 120),
		tx("t3", model.SideBuy, 2, 110),
	}
	assert.True(t, fifo.NetQuantity(history).Equal(d(8)))
	assert.True(t, fifo.NetQuantity(nil).IsZero())
}

func TestRemainingLots_PriorSellsConsumeOldestFirst(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 10, 100),
		tx("t2", model.SideBuy, 5, 110),
		tx("t3", model.SideSell, 12, 130), // drains t1, takes 2 from t2
	}

	lots, err := fifo.RemainingLots(history)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "t2", lots[0].TransactionID)
	assert.True(t, lots[0].Remaining.Equal(d(3)))
	assert.True(t, lots[0].UnitPrice.Equal(d(110)))
}

func TestRemainingLots_PartialLotSurvives(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 10, 100),
		tx("t2", model.SideSell, 4, 120),
	}

	lots, err := fifo.RemainingLots(history)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Remaining.Equal(d(6)))
}

func TestRemainingLots_InconsistentHistory(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 5, 100),
		tx("t2", model.SideSell, 8, 120), // sells more than ever bought
	}

	_, err := fifo.RemainingLots(history)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCostBasisInconsistency))
}

func TestMatchSale_SingleLot(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 10, 100),
	}

	m, err := fifo.MatchSale(history, d(4))
	require.NoError(t, err)
	assert.True(t, m.MatchedCost.Equal(d(400)))
	require.Len(t, m.Consumed, 1)
	assert.True(t, m.Consumed[0].Remaining.Equal(d(4)))
}

func TestMatchSale_SpansLots(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 3, 100),
		tx("t2", model.SideBuy, 5, 200),
	}

	// 3×100 + 2×200 = 700
	m, err := fifo.MatchSale(history, d(5))
	require.NoError(t, err)
	assert.True(t, m.MatchedCost.Equal(d(700)), "got %s", m.MatchedCost)
	require.Len(t, m.Consumed, 2)
	assert.Equal(t, "t1", m.Consumed[0].TransactionID)
	assert.Equal(t, "t2", m.Consumed[1].TransactionID)
}

func TestMatchSale_RespectsPriorSells(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 10, 100),
		tx("t2", model.SideSell, 10, 150), // fully consumes t1
		tx("t3", model.SideBuy, 10, 300),
	}

	// Only the 300-lot remains; matched cost must ignore the drained lot.
	m, err := fifo.MatchSale(history, d(2))
	require.NoError(t, err)
	assert.True(t, m.MatchedCost.Equal(d(600)))
}

func TestMatchSale_Deterministic(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 4, 100), // identical timestamps on purpose:
		tx("t2", model.SideBuy, 4, 200), // insertion order breaks the tie
		tx("t3", model.SideSell, 2, 150),
	}

	first, err := fifo.MatchSale(history, d(4))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := fifo.MatchSale(history, d(4))
		require.NoError(t, err)
		assert.True(t, first.MatchedCost.Equal(again.MatchedCost))
	}
	// 2 from t1 @100 + 2 from t2 @200 = 600
	assert.True(t, first.MatchedCost.Equal(d(600)))
}

func TestMatchSale_LotsShort(t *testing.T) {
	history := []model.Transaction{
		tx("t1", model.SideBuy, 3, 100),
	}

	_, err := fifo.MatchSale(history, d(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCostBasisInconsistency))
}

func TestMatchSale_NonPositiveQuantity(t *testing.T) {
	_, err := fifo.MatchSale(nil, decimal.Zero)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}
