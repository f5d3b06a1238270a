package txlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	Buy  Type = "buy"
	Sell Type = "sell"
)

// Record is one settled trade. Records are never mutated once appended.
type Record struct {
	UserID    string          `json:"user_id"`
	Type      Type            `json:"type"`
	AssetID   string          `json:"asset_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	USDValue  decimal.Decimal `json:"usd_value"`
	Timestamp time.Time       `json:"timestamp"`
}

// Log is the append-only trade history. ListFor is best-effort: an
// unreadable store yields an empty history instead of an error.
type Log interface {
	Append(ctx context.Context, record Record) error
	ListFor(ctx context.Context, userID string) []Record
}

// recordDoc is the persisted shape:
// {userId, type, coin, amount, price, usd, timestamp(ms)}.
type recordDoc struct {
	UserID    string      `json:"userId"`
	Type      Type        `json:"type"`
	Coin      string      `json:"coin"`
	Amount    json.Number `json:"amount"`
	Price     json.Number `json:"price"`
	USD       json.Number `json:"usd"`
	Timestamp int64       `json:"timestamp"`
}

func newRecordDoc(r Record) recordDoc {
	return recordDoc{
		UserID:    r.UserID,
		Type:      r.Type,
		Coin:      r.AssetID,
		Amount:    json.Number(r.Quantity.String()),
		Price:     json.Number(r.UnitPrice.String()),
		USD:       json.Number(r.USDValue.String()),
		Timestamp: r.Timestamp.UnixMilli(),
	}
}

func (d recordDoc) record() (Record, error) {
	if d.Type != Buy && d.Type != Sell {
		return Record{}, fmt.Errorf("unknown type %q", d.Type)
	}
	fields := []struct {
		name string
		raw  json.Number
	}{{"amount", d.Amount}, {"price", d.Price}, {"usd", d.USD}}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		if f.raw == "" {
			return Record{}, errors.New("missing " + f.name)
		}
		v, err := decimal.NewFromString(f.raw.String())
		if err != nil {
			return Record{}, fmt.Errorf("%s: %w", f.name, err)
		}
		values[i] = v
	}
	return Record{
		UserID:    d.UserID,
		Type:      d.Type,
		AssetID:   d.Coin,
		Quantity:  values[0],
		UnitPrice: values[1],
		USDValue:  values[2],
		Timestamp: time.UnixMilli(d.Timestamp).UTC(),
	}, nil
}
