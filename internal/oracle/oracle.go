// Package oracle supplies live prices for symbols. The trade path never uses
// it — trades execute at the caller-supplied price — only the portfolio
// valuation read path does, and every call must resolve quickly or fail so
// the deterministic fallback chain (reference price, then average cost) can
// take over.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"
)

// ErrUnavailable signals that no live quote could be obtained and the caller
// should fall back to a reference price.
var ErrUnavailable = errors.New("oracle: quote unavailable")

// Oracle is the price lookup consumed by the portfolio valuator.
type Oracle interface {
	// Quote returns the current price for a symbol in its quote currency,
	// or an error wrapping ErrUnavailable.
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// --- HTTP client ---

type quoteResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type quoteError struct {
	Error string `json:"error"`
}

// Client fetches quotes from an external quote service over HTTP.
type Client struct {
	c *resty.Client
}

// NewClient builds a quote client for the given base URL. The timeout bounds
// every Quote call; a slow provider degrades to the fallback chain instead
// of stalling user-facing portfolio reads.
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &Client{c: client}
}

// Quote calls GET /quote?symbol=... and parses the decimal price.
func (c *Client) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req := c.c.R().
		SetQueryParam("symbol", symbol).
		SetResult(&quoteResponse{}).
		SetError(&quoteError{}).
		SetContext(ctx)

	resp, err := req.Get("/quote")
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		msg := "request failed"
		if qe, ok := resp.Error().(*quoteError); ok && qe.Error != "" {
			msg = qe.Error
		}
		return decimal.Zero, fmt.Errorf("%w: %s: %s (%s)", ErrUnavailable, symbol, msg, resp.Status())
	}

	result, ok := resp.Result().(*quoteResponse)
	if !ok || result.Price == "" {
		return decimal.Zero, fmt.Errorf("%w: %s: empty quote body", ErrUnavailable, symbol)
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: bad price %q", ErrUnavailable, symbol, result.Price)
	}
	return price, nil
}

// --- Static oracle ---

// Static serves quotes from an in-memory table. Used in tests and when no
// quote service is configured with a demo price set.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStatic creates an empty static oracle.
func NewStatic() *Static {
	return &Static{prices: make(map[string]decimal.Decimal)}
}

// SetPrice installs or updates a price.
func (s *Static) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// Delete removes a symbol, making subsequent quotes unavailable.
func (s *Static) Delete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
}

func (s *Static) Quote(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnavailable, symbol)
	}
	return price, nil
}
