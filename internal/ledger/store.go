package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/shopspring/decimal"
)

// Store persists the whole account mapping as a single snapshot.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// FileStore keeps the snapshot in a JSON document shaped as
// {"<userId>": {"balance": 1000, "holdings": {"bitcoin": 0.002}}}.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type accountDoc struct {
	Balance  json.Number            `json:"balance"`
	Holdings map[string]json.Number `json:"holdings"`
}

func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}

	var docs map[string]accountDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorruptState, s.path, err)
	}

	snapshot := make(Snapshot, len(docs))
	for userID, doc := range docs {
		account, err := doc.account()
		if err != nil {
			return nil, fmt.Errorf("%w: user %s: %v", ErrCorruptState, userID, err)
		}
		snapshot[userID] = account
	}
	return snapshot, nil
}

func (s *FileStore) Save(ctx context.Context, snapshot Snapshot) error {
	docs := make(map[string]accountDoc, len(snapshot))
	for userID, account := range snapshot {
		holdings := make(map[string]json.Number, len(account.Holdings))
		for assetID, qty := range account.Holdings {
			holdings[assetID] = json.Number(qty.String())
		}
		docs[userID] = accountDoc{
			Balance:  json.Number(account.Balance.String()),
			Holdings: holdings,
		}
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	// Readers see either the previous snapshot or the new one
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write ledger %s: %w", s.path, err)
	}
	return nil
}

func (d accountDoc) account() (Account, error) {
	if d.Balance == "" {
		return Account{}, errors.New("missing balance")
	}
	balance, err := decimal.NewFromString(d.Balance.String())
	if err != nil {
		return Account{}, fmt.Errorf("balance: %w", err)
	}

	account := NewAccount(balance)
	for assetID, raw := range d.Holdings {
		qty, err := decimal.NewFromString(raw.String())
		if err != nil {
			return Account{}, fmt.Errorf("holding %s: %w", assetID, err)
		}
		account.Holdings[assetID] = qty
	}
	if err := account.Validate(); err != nil {
		return Account{}, err
	}
	return account, nil
}
