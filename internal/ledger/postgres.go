package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance NUMERIC NOT NULL CHECK (balance >= 0)
	);
	CREATE TABLE IF NOT EXISTS holdings (
		user_id  TEXT NOT NULL REFERENCES accounts (user_id),
		asset_id TEXT NOT NULL,
		quantity NUMERIC NOT NULL CHECK (quantity >= 0),
		PRIMARY KEY (user_id, asset_id)
	);`

// PostgresLedger keeps accounts in Postgres. Mutations for the same user
// are linearized by a row lock on the account.
type PostgresLedger struct {
	pool     *pgxpool.Pool
	starting decimal.Decimal
}

func NewPostgresLedger(pool *pgxpool.Pool, startingBalance decimal.Decimal) *PostgresLedger {
	return &PostgresLedger{pool: pool, starting: startingBalance}
}

// Migrate creates the ledger tables when missing.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Account(ctx context.Context, userID string) (Account, bool, error) {
	var raw string
	err := l.pool.QueryRow(ctx, "SELECT balance::text FROM accounts WHERE user_id = $1", userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return Account{}, false, fmt.Errorf("%w: balance of %s: %v", ErrCorruptState, userID, err)
	}
	account := NewAccount(balance)
	if err := loadHoldings(ctx, l.pool, userID, &account); err != nil {
		return Account{}, false, err
	}
	return account, true, nil
}

func (l *PostgresLedger) Mutate(ctx context.Context, userID string, fn func(*Account) error) (Account, error) {
	// Transaction to ensure correct update on race conditions
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO accounts (user_id, balance) VALUES ($1, $2::numeric) ON CONFLICT (user_id) DO NOTHING",
		userID, l.starting.String())
	if err != nil {
		return Account{}, fmt.Errorf("ensure account %s: %w", userID, err)
	}

	var raw string
	err = tx.QueryRow(ctx, "SELECT balance::text FROM accounts WHERE user_id = $1 FOR UPDATE", userID).Scan(&raw)
	if err != nil {
		return Account{}, fmt.Errorf("lock account %s: %w", userID, err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return Account{}, fmt.Errorf("%w: balance of %s: %v", ErrCorruptState, userID, err)
	}

	account := NewAccount(balance)
	if err := loadHoldings(ctx, tx, userID, &account); err != nil {
		return Account{}, err
	}

	working := account.Clone()
	if err := fn(&working); err != nil {
		return Account{}, err
	}
	if err := working.Validate(); err != nil {
		return Account{}, err
	}

	if _, err := tx.Exec(ctx, "UPDATE accounts SET balance = $1::numeric WHERE user_id = $2", working.Balance.String(), userID); err != nil {
		return Account{}, fmt.Errorf("update balance of %s: %w", userID, err)
	}
	for assetID, qty := range working.Holdings {
		if prev, ok := account.Holdings[assetID]; ok && prev.Equal(qty) {
			continue
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO holdings (user_id, asset_id, quantity) VALUES ($1, $2, $3::numeric)
			ON CONFLICT (user_id, asset_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
			userID, assetID, qty.String())
		if err != nil {
			return Account{}, fmt.Errorf("update holding %s of %s: %w", assetID, userID, err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return Account{}, err
	}
	return working, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadHoldings(ctx context.Context, q querier, userID string, account *Account) error {
	rows, err := q.Query(ctx, "SELECT asset_id, quantity::text FROM holdings WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("query holdings of %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetID, raw string
		if err := rows.Scan(&assetID, &raw); err != nil {
			return err
		}
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("%w: holding %s of %s: %v", ErrCorruptState, assetID, userID, err)
		}
		if qty.IsNegative() {
			return fmt.Errorf("%w: negative holding %s of %s", ErrCorruptState, assetID, userID)
		}
		account.Holdings[assetID] = qty
	}
	return rows.Err()
}
