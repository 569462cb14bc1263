// Package catalog resolves ticker symbols to assets and seeds the asset
// table at startup. It is the only path from a user-facing symbol to an
// internal asset identity.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradequest/engine/internal/model"
	"github.com/tradequest/engine/internal/store"
)

// Catalog is a thin, read-mostly layer over the asset store.
type Catalog struct {
	store store.Store
}

// New creates a catalog backed by the given store.
func New(st store.Store) *Catalog {
	return &Catalog{store: st}
}

// Resolve maps a symbol to its asset. Symbols are case-insensitive;
// model.ErrUnknownAsset is returned for anything not in the catalog.
func (c *Catalog) Resolve(ctx context.Context, symbol string) (*model.Asset, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", model.ErrInvalidInput)
	}
	return c.store.GetAssetBySymbol(ctx, symbol)
}

// Add registers a new asset, assigning its ID. The reference price must be
// positive — it is the last-line valuation fallback.
func (c *Catalog) Add(ctx context.Context, asset model.Asset) (*model.Asset, error) {
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	if asset.Symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", model.ErrInvalidInput)
	}
	if !asset.ReferencePrice.IsPositive() {
		return nil, fmt.Errorf("%w: reference price must be positive", model.ErrInvalidInput)
	}
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	if err := c.store.CreateAsset(ctx, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// List returns the full catalog.
func (c *Catalog) List(ctx context.Context) ([]model.Asset, error) {
	return c.store.ListAssets(ctx)
}

// Seed installs the configured assets, skipping any already present, so
// restarts are idempotent.
func (c *Catalog) Seed(ctx context.Context, assets []model.Asset) error {
	for _, a := range assets {
		if _, err := c.Add(ctx, a); err != nil {
			if errors.Is(err, model.ErrAssetExists) {
				continue
			}
			return fmt.Errorf("seed asset %s: %w", a.Symbol, err)
		}
		slog.Info("asset seeded", "symbol", strings.ToUpper(a.Symbol), "class", a.Class)
	}
	return nil
}
