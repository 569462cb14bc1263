// Package xp awards experience for trade volume and derives account level
// from a monotonic threshold table.
package xp

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/model"
)

// Threshold maps a level to the minimum XP required to hold it.
type Threshold struct {
	Level int   `yaml:"level"`
	XP    int64 `yaml:"xp"`
}

// ProgressStore is the slice of the persistence layer the engine needs.
type ProgressStore interface {
	GetAccount(ctx context.Context, userID string) (*model.Account, error)
	UpdateAccountProgress(ctx context.Context, userID string, xp int64, level int) error
}

// Engine computes and persists XP awards. Award is not idempotent — the
// caller must invoke it exactly once per committed transaction.
type Engine struct {
	store  ProgressStore
	rates  map[string]decimal.Decimal // action → XP per unit traded
	levels []Threshold                // ascending by XP
}

// NewEngine builds an engine from per-action rates and a level table.
// The table is sorted by XP; it must be strictly monotonic in both columns.
func NewEngine(store ProgressStore, rates map[string]decimal.Decimal, levels []Threshold) (*Engine, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("xp: level table is empty")
	}
	sorted := make([]Threshold, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].XP < sorted[j].XP })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Level <= sorted[i-1].Level || sorted[i].XP == sorted[i-1].XP {
			return nil, fmt.Errorf("xp: level table not monotonic at entry %d", i)
		}
	}
	return &Engine{store: store, rates: rates, levels: sorted}, nil
}

// LevelFor returns the highest level whose threshold is <= xp, or 0 if no
// threshold is met. Pure function of current XP regardless of history.
func (e *Engine) LevelFor(xp int64) int {
	level := 0
	for _, th := range e.levels {
		if th.XP > xp {
			break
		}
		level = th.Level
	}
	return level
}

// Award adds rate(action) × quantity XP to the account, recomputes the level
// and persists both. Returns the XP granted and the resulting level.
// Unknown actions award nothing.
func (e *Engine) Award(ctx context.Context, userID, action string, quantity decimal.Decimal) (int64, int, error) {
	account, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("xp: load account: %w", err)
	}

	rate, ok := e.rates[action]
	if !ok || !quantity.IsPositive() {
		return 0, account.Level, nil
	}

	awarded := rate.Mul(quantity).IntPart()
	if awarded <= 0 {
		return 0, account.Level, nil
	}

	total := account.XP + awarded
	level := e.LevelFor(total)
	if err := e.store.UpdateAccountProgress(ctx, userID, total, level); err != nil {
		return 0, 0, fmt.Errorf("xp: persist progress: %w", err)
	}
	return awarded, level, nil
}
