package txlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const logSchema = `
	CREATE TABLE IF NOT EXISTS transactions (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		asset_id   TEXT NOT NULL,
		quantity   NUMERIC NOT NULL,
		unit_price NUMERIC NOT NULL,
		usd_value  NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS transactions_user_created_idx ON transactions (user_id, created_at DESC);`

type PostgresLog struct {
	pool   *pgxpool.Pool
	logger logrus.FieldLogger
}

func NewPostgresLog(pool *pgxpool.Pool, logger logrus.FieldLogger) *PostgresLog {
	return &PostgresLog{pool: pool, logger: logger}
}

func (l *PostgresLog) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, logSchema); err != nil {
		return fmt.Errorf("migrate transaction log: %w", err)
	}
	return nil
}

func (l *PostgresLog) Append(ctx context.Context, record Record) error {
	const query = `
		INSERT INTO transactions (user_id, type, asset_id, quantity, unit_price, usd_value, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)`
	_, err := l.pool.Exec(ctx, query,
		record.UserID,
		string(record.Type),
		record.AssetID,
		record.Quantity.String(),
		record.UnitPrice.String(),
		record.USDValue.String(),
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (l *PostgresLog) ListFor(ctx context.Context, userID string) []Record {
	records, err := l.listFor(ctx, userID)
	if err != nil {
		l.logger.WithError(err).WithField("user_id", userID).Warn("transaction history unavailable")
		return []Record{}
	}
	return records
}

func (l *PostgresLog) listFor(ctx context.Context, userID string) ([]Record, error) {
	const query = `
		SELECT type, asset_id, quantity::text, unit_price::text, usd_value::text, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := l.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			typ, assetID         string
			qty, price, usdValue string
			createdAt            time.Time
		)
		if err := rows.Scan(&typ, &assetID, &qty, &price, &usdValue, &createdAt); err != nil {
			return nil, err
		}
		record := Record{
			UserID:    userID,
			Type:      Type(typ),
			AssetID:   assetID,
			Timestamp: createdAt,
		}
		if record.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if record.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if record.USDValue, err = decimal.NewFromString(usdValue); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
