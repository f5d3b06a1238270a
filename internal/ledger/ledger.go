package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger is the source of truth for account state. Mutate applies fn to the
// user's account (created with the starting balance when absent) and commits
// the result atomically; when fn returns an error nothing is written.
type Ledger interface {
	Account(ctx context.Context, userID string) (Account, bool, error)
	Mutate(ctx context.Context, userID string, fn func(*Account) error) (Account, error)
}

// SnapshotLedger serializes every load-modify-save cycle over a Store
// through a single writer.
type SnapshotLedger struct {
	store    Store
	starting decimal.Decimal
	mu       sync.Mutex
}

func NewSnapshotLedger(store Store, startingBalance decimal.Decimal) *SnapshotLedger {
	return &SnapshotLedger{store: store, starting: startingBalance}
}

func (l *SnapshotLedger) Account(ctx context.Context, userID string) (Account, bool, error) {
	snapshot, err := l.store.Load(ctx)
	if err != nil {
		return Account{}, false, err
	}
	account, ok := snapshot[userID]
	if !ok {
		return Account{}, false, nil
	}
	return account.Clone(), true, nil
}

func (l *SnapshotLedger) Mutate(ctx context.Context, userID string, fn func(*Account) error) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	snapshot, err := l.store.Load(ctx)
	if err != nil {
		return Account{}, err
	}

	account, ok := snapshot[userID]
	if !ok {
		account = NewAccount(l.starting)
	}
	working := account.Clone()
	if err := fn(&working); err != nil {
		return Account{}, err
	}
	if err := working.Validate(); err != nil {
		return Account{}, err
	}

	snapshot[userID] = working
	if err := l.store.Save(ctx, snapshot); err != nil {
		return Account{}, err
	}
	return working.Clone(), nil
}
