package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradequest/engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision and
// scanned through text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			user_id      TEXT PRIMARY KEY,
			cash_balance NUMERIC NOT NULL CHECK (cash_balance >= 0),
			realized_pl  NUMERIC NOT NULL DEFAULT 0,
			trade_count  BIGINT  NOT NULL DEFAULT 0,
			xp           BIGINT  NOT NULL DEFAULT 0,
			level        INT     NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS assets (
			id              TEXT PRIMARY KEY,
			symbol          TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL,
			class           TEXT NOT NULL,
			reference_price NUMERIC NOT NULL,
			currency        TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS transactions (
			seq         BIGSERIAL PRIMARY KEY,
			id          TEXT NOT NULL UNIQUE,
			user_id     TEXT NOT NULL REFERENCES accounts(user_id),
			asset_id    TEXT NOT NULL REFERENCES assets(id),
			symbol      TEXT NOT NULL,
			side        TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
			quantity    NUMERIC NOT NULL CHECK (quantity > 0),
			unit_price  NUMERIC NOT NULL CHECK (unit_price > 0),
			executed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_asset
			ON transactions (user_id, asset_id, seq);
		CREATE TABLE IF NOT EXISTS positions (
			user_id      TEXT NOT NULL REFERENCES accounts(user_id),
			asset_id     TEXT NOT NULL REFERENCES assets(id),
			symbol       TEXT NOT NULL,
			quantity     NUMERIC NOT NULL CHECK (quantity > 0),
			average_cost NUMERIC NOT NULL,
			PRIMARY KEY (user_id, asset_id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, cash_balance, realized_pl, trade_count, xp, level, created_at)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5, $6, $7)`,
		a.UserID, a.CashBalance.String(), a.RealizedPL.String(),
		a.TradeCount, a.XP, a.Level, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrAccountExists
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	var a model.Account
	var balance, realized string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, cash_balance::TEXT, realized_pl::TEXT, trade_count, xp, level, created_at
		 FROM accounts WHERE user_id = $1`, userID).
		Scan(&a.UserID, &balance, &realized, &a.TradeCount, &a.XP, &a.Level, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", userID, err)
	}

	a.CashBalance, _ = decimal.NewFromString(balance)
	a.RealizedPL, _ = decimal.NewFromString(realized)
	return &a, nil
}

func (s *PostgresStore) UpdateAccountProgress(ctx context.Context, userID string, xp int64, level int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET xp = $2, level = $3 WHERE user_id = $1`, userID, xp, level)
	if err != nil {
		return fmt.Errorf("update progress %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, symbol, name, class, reference_price, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		a.ID, a.Symbol, a.Name, a.Class, a.ReferencePrice.String(), a.Currency, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.ErrAssetExists
	}
	return err
}

func (s *PostgresStore) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	var a model.Asset
	var refPrice string

	err := s.pool.QueryRow(ctx,
		`SELECT id, symbol, name, class, reference_price::TEXT, currency, created_at
		 FROM assets WHERE symbol = $1`, symbol).
		Scan(&a.ID, &a.Symbol, &a.Name, &a.Class, &refPrice, &a.Currency, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUnknownAsset
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", symbol, err)
	}

	a.ReferencePrice, _ = decimal.NewFromString(refPrice)
	return &a, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, symbol, name, class, reference_price::TEXT, currency, created_at
		 FROM assets ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		var refPrice string
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.Class, &refPrice, &a.Currency, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ReferencePrice, _ = decimal.NewFromString(refPrice)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (s *PostgresStore) GetTransactionsByUserAsset(ctx context.Context, userID, assetID string) ([]model.Transaction, error) {
	// seq ordering is the ledger insertion order: the deterministic FIFO
	// tie-break for lots with identical timestamps.
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, asset_id, symbol, side, quantity::TEXT, unit_price::TEXT, executed_at
		 FROM transactions WHERE user_id = $1 AND asset_id = $2 ORDER BY seq`, userID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, asset_id, symbol, side, quantity::TEXT, unit_price::TEXT, executed_at
		 FROM transactions WHERE user_id = $1 ORDER BY seq DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func (s *PostgresStore) GetPosition(ctx context.Context, userID, assetID string) (*model.Position, error) {
	var p model.Position
	var qty, avg string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, asset_id, symbol, quantity::TEXT, average_cost::TEXT
		 FROM positions WHERE user_id = $1 AND asset_id = $2`, userID, assetID).
		Scan(&p.UserID, &p.AssetID, &p.Symbol, &qty, &avg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s: %w", userID, assetID, err)
	}

	p.Quantity, _ = decimal.NewFromString(qty)
	p.AverageCost, _ = decimal.NewFromString(avg)
	return &p, nil
}

func (s *PostgresStore) GetUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, asset_id, symbol, quantity::TEXT, average_cost::TEXT
		 FROM positions WHERE user_id = $1 ORDER BY symbol`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var qty, avg string
		if err := rows.Scan(&p.UserID, &p.AssetID, &p.Symbol, &qty, &avg); err != nil {
			return nil, err
		}
		p.Quantity, _ = decimal.NewFromString(qty)
		p.AverageCost, _ = decimal.NewFromString(avg)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CommitTrade runs the whole mutation in one transaction. The account row is
// locked with FOR UPDATE first, so two writers sharing the database cannot
// interleave balance reads and writes even across processes.
func (s *PostgresStore) CommitTrade(ctx context.Context, commit *TradeCommit) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked string
	if err = tx.QueryRow(ctx,
		`SELECT user_id FROM accounts WHERE user_id = $1 FOR UPDATE`,
		commit.Account.UserID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrAccountNotFound
		}
		return fmt.Errorf("%w: lock account: %v", model.ErrStorage, err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE accounts
		 SET cash_balance = $2::NUMERIC, realized_pl = $3::NUMERIC, trade_count = $4
		 WHERE user_id = $1`,
		commit.Account.UserID, commit.Account.CashBalance.String(),
		commit.Account.RealizedPL.String(), commit.Account.TradeCount,
	); err != nil {
		return fmt.Errorf("%w: update account: %v", model.ErrStorage, err)
	}

	e := commit.Entry
	if _, err = tx.Exec(ctx,
		`INSERT INTO transactions (id, user_id, asset_id, symbol, side, quantity, unit_price, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8)`,
		e.ID, e.UserID, e.AssetID, e.Symbol, string(e.Side),
		e.Quantity.String(), e.UnitPrice.String(), e.ExecutedAt,
	); err != nil {
		return fmt.Errorf("%w: insert transaction: %v", model.ErrStorage, err)
	}

	if commit.RemovePosition {
		if _, err = tx.Exec(ctx,
			`DELETE FROM positions WHERE user_id = $1 AND asset_id = $2`,
			e.UserID, e.AssetID,
		); err != nil {
			return fmt.Errorf("%w: delete position: %v", model.ErrStorage, err)
		}
	} else {
		p := commit.Position
		if _, err = tx.Exec(ctx,
			`INSERT INTO positions (user_id, asset_id, symbol, quantity, average_cost)
			 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)
			 ON CONFLICT (user_id, asset_id)
			 DO UPDATE SET quantity = EXCLUDED.quantity, average_cost = EXCLUDED.average_cost`,
			p.UserID, p.AssetID, p.Symbol, p.Quantity.String(), p.AverageCost.String(),
		); err != nil {
			return fmt.Errorf("%w: upsert position: %v", model.ErrStorage, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

// scanTransactions reads pgx rows into Transaction slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTransactions(rows pgxRows) ([]model.Transaction, error) {
	var entries []model.Transaction
	for rows.Next() {
		var e model.Transaction
		var side, qty, price string

		if err := rows.Scan(&e.ID, &e.UserID, &e.AssetID, &e.Symbol, &side,
			&qty, &price, &e.ExecutedAt); err != nil {
			return nil, err
		}

		e.Side = model.Side(side)
		e.Quantity, _ = decimal.NewFromString(qty)
		e.UnitPrice, _ = decimal.NewFromString(price)

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
