package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/model"
)

func newAccount(userID string, balance float64) *model.Account {
	return &model.Account{
		UserID:      userID,
		CashBalance: decimal.NewFromFloat(balance),
		Level:       1,
	}
}

func TestMemoryStore_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.CreateAccount(ctx, newAccount("u1", 10000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateAccount(ctx, newAccount("u1", 10000)); !errors.Is(err, model.ErrAccountExists) {
		t.Errorf("expected ErrAccountExists, got %v", err)
	}
	if _, err := s.GetAccount(ctx, "missing"); !errors.Is(err, model.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	a, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// Returned copies must not alias the stored row.
	a.CashBalance = decimal.Zero
	again, _ := s.GetAccount(ctx, "u1")
	if !again.CashBalance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("mutating a returned account leaked into the store")
	}
}

func TestMemoryStore_AssetSymbolCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.CreateAsset(ctx, &model.Asset{ID: "a1", Symbol: "BTC", ReferencePrice: decimal.NewFromInt(100)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.GetAssetBySymbol(ctx, "btc"); err != nil {
		t.Errorf("lowercase lookup failed: %v", err)
	}
	err = s.CreateAsset(ctx, &model.Asset{ID: "a2", Symbol: "btc"})
	if !errors.Is(err, model.ErrAssetExists) {
		t.Errorf("expected ErrAssetExists for case-colliding symbol, got %v", err)
	}
}

func TestMemoryStore_CommitTradeUpsertsAndDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.CreateAccount(ctx, newAccount("u1", 10000))

	commit := &TradeCommit{
		Account: model.Account{UserID: "u1", CashBalance: decimal.NewFromInt(9080), TradeCount: 1},
		Entry: model.Transaction{
			ID: "t1", UserID: "u1", AssetID: "a1", Symbol: "X",
			Side: model.SideBuy, Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100),
		},
		Position: model.Position{
			UserID: "u1", AssetID: "a1", Symbol: "X",
			Quantity: decimal.NewFromInt(10), AverageCost: decimal.NewFromInt(100),
		},
	}
	if err := s.CommitTrade(ctx, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}

	a, _ := s.GetAccount(ctx, "u1")
	if !a.CashBalance.Equal(decimal.NewFromInt(9080)) || a.TradeCount != 1 {
		t.Errorf("account not updated: balance=%s count=%d", a.CashBalance, a.TradeCount)
	}
	p, err := s.GetPosition(ctx, "u1", "a1")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !p.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("position qty=%s", p.Quantity)
	}

	// Closing commit removes the position row.
	commit2 := &TradeCommit{
		Account: model.Account{UserID: "u1", CashBalance: decimal.NewFromInt(10000), TradeCount: 2},
		Entry: model.Transaction{
			ID: "t2", UserID: "u1", AssetID: "a1", Symbol: "X",
			Side: model.SideSell, Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100),
		},
		RemovePosition: true,
	}
	if err := s.CommitTrade(ctx, commit2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := s.GetPosition(ctx, "u1", "a1"); !errors.Is(err, model.ErrPositionNotFound) {
		t.Errorf("expected position removed, got %v", err)
	}

	history, _ := s.GetTransactionsByUserAsset(ctx, "u1", "a1")
	if len(history) != 2 || history[0].ID != "t1" || history[1].ID != "t2" {
		t.Errorf("ledger not in insertion order: %+v", history)
	}
}

func TestMemoryStore_CommitTradeUnknownAccount(t *testing.T) {
	s := NewMemoryStore()
	err := s.CommitTrade(context.Background(), &TradeCommit{
		Account: model.Account{UserID: "ghost"},
		Entry:   model.Transaction{ID: "t1", UserID: "ghost", AssetID: "a1"},
	})
	if !errors.Is(err, model.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if history, _ := s.GetTransactionsByUserAsset(context.Background(), "ghost", "a1"); len(history) != 0 {
		t.Errorf("failed commit left a ledger entry")
	}
}

func TestMemoryStore_RecentTransactionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.CreateAccount(ctx, newAccount("u1", 10000))

	for _, id := range []string{"t1", "t2", "t3"} {
		s.CommitTrade(ctx, &TradeCommit{
			Account:  model.Account{UserID: "u1"},
			Entry:    model.Transaction{ID: id, UserID: "u1", AssetID: "a1"},
			Position: model.Position{UserID: "u1", AssetID: "a1"},
		})
	}

	recent, _ := s.GetRecentTransactions(ctx, "u1", 2)
	if len(recent) != 2 || recent[0].ID != "t3" || recent[1].ID != "t2" {
		t.Errorf("expected [t3 t2], got %+v", recent)
	}
}
