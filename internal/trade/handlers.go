package trade

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/model"
)

// --- Request/Response types ---

// OpenAccountRequest is the JSON body for POST /accounts.
type OpenAccountRequest struct {
	UserID string `json:"user_id"`
}

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	UserID   string          `json:"user_id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"` // "BUY" or "SELL"
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"` // quote currency
}

// CreateAssetRequest is the JSON body for POST /assets.
type CreateAssetRequest struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Class          string          `json:"class"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Currency       string          `json:"currency"`
}

type quotePayload struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Source string `json:"source"`
}

// errorPayload carries a short machine-checkable reason plus a human
// message. Internals are never exposed.
type errorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// --- HTTP Handlers ---

// HandleOpenAccount handles POST /api/v1/accounts
func (s *Service) HandleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, "invalid_body", "invalid request body", http.StatusBadRequest)
		return
	}

	account, err := s.OpenAccount(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// HandleGetAccount handles GET /api/v1/accounts/{userID}
func (s *Service) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.Account(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleTrade handles POST /api/v1/trade: a single buy or sell executed at
// the caller-supplied price. The quote shown to the user is the UI's
// responsibility; the engine never fetches one on the trade path.
func (s *Service) HandleTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, "invalid_body", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeReason(w, "invalid_input", "user_id is required", http.StatusBadRequest)
		return
	}

	var (
		result *model.TradeResult
		err    error
	)
	switch model.Side(req.Side) {
	case model.SideBuy:
		result, err = s.Buy(r.Context(), req.UserID, req.Symbol, req.Quantity, req.Price)
	case model.SideSell:
		result, err = s.Sell(r.Context(), req.UserID, req.Symbol, req.Quantity, req.Price)
	default:
		writeReason(w, "invalid_input", "side must be BUY or SELL", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGetPortfolio handles GET /api/v1/portfolio/{userID}
func (s *Service) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.Portfolio(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if portfolio.Positions == nil {
		portfolio.Positions = []model.PositionValue{}
	}
	writeJSON(w, http.StatusOK, portfolio)
}

// HandleRecentTransactions handles GET /api/v1/transactions/{userID}?limit=N
func (s *Service) HandleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeReason(w, "invalid_input", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 500)
	}

	entries, err := s.RecentTransactions(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleListAssets handles GET /api/v1/assets
func (s *Service) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

// HandleCreateAsset handles POST /api/v1/assets
func (s *Service) HandleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeReason(w, "invalid_body", "invalid request body", http.StatusBadRequest)
		return
	}

	asset, err := s.catalog.Add(r.Context(), model.Asset{
		Symbol:         req.Symbol,
		Name:           req.Name,
		Class:          req.Class,
		ReferencePrice: req.ReferencePrice,
		Currency:       req.Currency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// HandleQuote handles GET /api/v1/assets/{symbol}/quote
func (s *Service) HandleQuote(w http.ResponseWriter, r *http.Request) {
	price, source, err := s.QuotePrice(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotePayload{
		Symbol: chi.URLParam(r, "symbol"),
		Price:  price.String(),
		Source: source,
	})
}

// --- Error mapping ---

// reasonFor maps taxonomy errors to machine-checkable reason codes and HTTP
// statuses. Anything unlisted is a storage/internal failure: the caller is
// told the operation did not take effect, nothing more.
func reasonFor(err error) (string, string, int) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input", err.Error(), http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownAsset):
		return "unknown_asset", "no such asset", http.StatusNotFound
	case errors.Is(err, model.ErrAccountNotFound):
		return "account_not_found", "no such account", http.StatusNotFound
	case errors.Is(err, model.ErrPositionNotFound):
		return "position_not_found", "no open position", http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientBalance):
		return "insufficient_balance", "not enough cash for this purchase", http.StatusConflict
	case errors.Is(err, model.ErrInsufficientHoldings):
		return "insufficient_holdings", "not enough holdings for this sale", http.StatusConflict
	case errors.Is(err, model.ErrAccountExists):
		return "account_exists", "account already exists", http.StatusConflict
	case errors.Is(err, model.ErrAssetExists):
		return "asset_exists", "asset already exists", http.StatusConflict
	case errors.Is(err, model.ErrCostBasisInconsistency):
		return "cost_basis_inconsistency", "trade aborted, nothing was written", http.StatusInternalServerError
	default:
		return "storage_failure", "operation did not take effect", http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	reason, message, status := reasonFor(err)
	writeReason(w, reason, message, status)
}

func writeReason(w http.ResponseWriter, reason, message string, status int) {
	writeJSON(w, status, errorPayload{Reason: reason, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
