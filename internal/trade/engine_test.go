package trade

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/ledger"
	"github.com/JhonesBR/go-coinbot/internal/market"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *fakePrices) FetchPrices(ctx context.Context, assetIDs []string) (map[string]market.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]market.Price)
	for _, id := range assetIDs {
		if p, ok := f.prices[id]; ok {
			out[id] = market.Price{Current: p}
		}
	}
	return out, nil
}

func (f *fakePrices) set(assetID, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[assetID] = decimal.RequireFromString(price)
}

type failingLog struct{}

func (failingLog) Append(context.Context, txlog.Record) error     { return errors.New("disk full") }
func (failingLog) ListFor(context.Context, string) []txlog.Record { return []txlog.Record{} }

type fixture struct {
	engine   *Engine
	accounts *account.Service
	history  txlog.Log
	prices   *fakePrices
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()

	l := ledger.NewSnapshotLedger(ledger.NewFileStore(filepath.Join(dir, "user_info.json")), ledger.DefaultStartingBalance)
	accounts := account.NewService(l)
	history := txlog.NewFileLog(filepath.Join(dir, "transactions.json"), logger)
	prices := &fakePrices{prices: map[string]decimal.Decimal{
		"bitcoin":  decimal.NewFromInt(50000),
		"ethereum": decimal.NewFromInt(2500),
	}}

	engine := NewEngine(cfg, Deps{
		Catalog:  market.DefaultCatalog(),
		Prices:   prices,
		Accounts: accounts,
		History:  history,
		Logger:   logger,
	})
	return &fixture{engine: engine, accounts: accounts, history: history, prices: prices}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestEngine_BuyByUSDSettles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)
	assert.True(t, quote.Quantity.Equal(decimal.RequireFromString("0.002")), "quantity %s", quote.Quantity)
	assert.True(t, quote.USDValue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, Buy, quote.Direction)

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	require.Equal(t, Settled, result.Outcome)
	require.NotNil(t, result.Record)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(900)), "balance %s", balance)

	holdings, err := f.accounts.GetHoldings(ctx, "42")
	require.NoError(t, err)
	assert.True(t, holdings["bitcoin"].Equal(decimal.RequireFromString("0.002")))

	records := f.history.ListFor(ctx, "42")
	require.Len(t, records, 1)
	assert.Equal(t, txlog.Buy, records[0].Type)
	assert.True(t, records[0].USDValue.Equal(decimal.NewFromInt(100)))
	assert.True(t, records[0].UnitPrice.Equal(decimal.NewFromInt(50000)))
}

func TestEngine_BuyByQuantityUsesQuotedPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "ETH", BuyAmount{Quantity: dec("0.1")})
	require.NoError(t, err)
	assert.True(t, quote.USDValue.Equal(decimal.NewFromInt(250)))

	f.prices.set("ethereum", "3000")

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	require.Equal(t, Settled, result.Outcome)
	assert.True(t, result.Record.UnitPrice.Equal(decimal.NewFromInt(2500)), "settles at the quoted price")

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(750)))
}

func TestEngine_SellSettles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	_, err := f.accounts.AddHoldings(ctx, "42", "bitcoin", decimal.RequireFromString("0.002"))
	require.NoError(t, err)
	f.prices.set("bitcoin", "60000")

	quote, err := f.engine.QuoteSell(ctx, "42", "bitcoin", decimal.RequireFromString("0.002"))
	require.NoError(t, err)
	assert.True(t, quote.USDValue.Equal(decimal.NewFromInt(120)))

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	require.Equal(t, Settled, result.Outcome)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1120)))

	holdings, err := f.accounts.GetHoldings(ctx, "42")
	require.NoError(t, err)
	require.Contains(t, holdings, "bitcoin")
	assert.True(t, holdings["bitcoin"].IsZero())
}

func TestEngine_SellExceedingHoldings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	_, err := f.accounts.AddHoldings(ctx, "42", "bitcoin", decimal.RequireFromString("0.001"))
	require.NoError(t, err)

	_, err = f.engine.QuoteSell(ctx, "42", "bitcoin", decimal.RequireFromString("0.0011"))
	assert.ErrorIs(t, err, ErrInsufficientHoldings)

	_, err = f.engine.QuoteSell(ctx, "7", "bitcoin", decimal.RequireFromString("0.1"))
	assert.ErrorIs(t, err, ErrInsufficientHoldings)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))
	holdings, err := f.accounts.GetHoldings(ctx, "42")
	require.NoError(t, err)
	assert.True(t, holdings["bitcoin"].Equal(decimal.RequireFromString("0.001")))
}

func TestEngine_RevalidatesFundsAtConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	ok, err := f.accounts.SubtractBalance(ctx, "42", decimal.NewFromInt(950))
	require.NoError(t, err)
	require.True(t, ok)

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrInsufficientFunds)
	assert.Nil(t, result.Record)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
	holdings, err := f.accounts.GetHoldings(ctx, "42")
	require.NoError(t, err)
	assert.NotContains(t, holdings, "bitcoin")
	assert.Empty(t, f.history.ListFor(ctx, "42"))
}

func TestEngine_RevalidatesHoldingsAtConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	_, err := f.accounts.AddHoldings(ctx, "42", "bitcoin", decimal.RequireFromString("0.002"))
	require.NoError(t, err)

	quote, err := f.engine.QuoteSell(ctx, "42", "bitcoin", decimal.RequireFromString("0.002"))
	require.NoError(t, err)
	_, err = f.accounts.AddHoldings(ctx, "42", "bitcoin", decimal.RequireFromString("-0.0015"))
	require.NoError(t, err)

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrInsufficientHoldings)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1000)))
}

func TestEngine_QuoteExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{QuoteTTL: 20 * time.Millisecond})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	result, err := f.engine.Await(waitCtx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, Expired, result.Outcome)

	result, err = f.engine.Confirm(ctx, quote.ID, "42")
	assert.ErrorIs(t, err, ErrQuoteResolved)
	assert.Equal(t, Expired, result.Outcome)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "an expired quote never touches the ledger")
	assert.Empty(t, f.history.ListFor(ctx, "42"))
}

func TestEngine_ConfirmAfterDeadlineBeforeTimerFires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)
	f.engine.now = func() time.Time { return quote.ExpiresAt.Add(time.Millisecond) }

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	assert.ErrorIs(t, err, ErrQuoteResolved)
	assert.Equal(t, Expired, result.Outcome)
}

func TestEngine_IgnoresOtherUsersSignals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	_, err = f.engine.Confirm(ctx, quote.ID, "intruder")
	assert.ErrorIs(t, err, ErrNotQuoteOwner)
	_, err = f.engine.Cancel(ctx, quote.ID, "intruder")
	assert.ErrorIs(t, err, ErrNotQuoteOwner)

	result, err := f.engine.Get(quote.ID)
	require.NoError(t, err)
	assert.Equal(t, Pending, result.Outcome)

	result, err = f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, Settled, result.Outcome)
}

func TestEngine_FirstResolutionWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	const signals = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < signals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.engine.Confirm(ctx, quote.ID, "42")
			} else {
				_, err = f.engine.Cancel(ctx, quote.ID, "42")
			}
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrQuoteResolved)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)

	result, err := f.engine.Get(quote.ID)
	require.NoError(t, err)
	require.True(t, result.Outcome.Terminal())

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	switch result.Outcome {
	case Settled:
		assert.True(t, balance.Equal(decimal.NewFromInt(900)))
		assert.Len(t, f.history.ListFor(ctx, "42"), 1)
	case Cancelled:
		assert.True(t, balance.IsZero())
		assert.Empty(t, f.history.ListFor(ctx, "42"))
	default:
		t.Fatalf("unexpected outcome %s", result.Outcome)
	}
}

func TestEngine_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	result, err := f.engine.Cancel(ctx, quote.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, Cancelled, result.Outcome)

	result, err = f.engine.Confirm(ctx, quote.ID, "42")
	assert.ErrorIs(t, err, ErrQuoteResolved)
	assert.Equal(t, Cancelled, result.Outcome)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestEngine_ValidationHappensBeforeMarketData(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		quote   func(e *Engine) error
		wantErr error
	}{
		{
			name: "buy quantity beyond precision",
			quote: func(e *Engine) error {
				_, err := e.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{Quantity: dec("0.000000001")})
				return err
			},
			wantErr: ErrPrecisionExceeded,
		},
		{
			name: "sell quantity beyond precision",
			quote: func(e *Engine) error {
				_, err := e.QuoteSell(ctx, "42", "solana", decimal.RequireFromString("1.0000000001"))
				return err
			},
			wantErr: ErrPrecisionExceeded,
		},
		{
			name: "negative usd",
			quote: func(e *Engine) error {
				_, err := e.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("-5")})
				return err
			},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name: "zero sell quantity",
			quote: func(e *Engine) error {
				_, err := e.QuoteSell(ctx, "42", "bitcoin", decimal.Zero)
				return err
			},
			wantErr: ErrNonPositiveAmount,
		},
		{
			name: "both amounts",
			quote: func(e *Engine) error {
				_, err := e.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("5"), Quantity: dec("1")})
				return err
			},
			wantErr: ErrAmbiguousAmount,
		},
		{
			name: "no amount",
			quote: func(e *Engine) error {
				_, err := e.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{})
				return err
			},
			wantErr: ErrValidation,
		},
		{
			name: "unknown asset",
			quote: func(e *Engine) error {
				_, err := e.QuoteBuy(ctx, "42", "dogecoin", BuyAmount{USD: dec("5")})
				return err
			},
			wantErr: market.ErrAssetNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			err := tt.quote(f.engine)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.prices.calls)
		})
	}
}

func TestEngine_PrecisionErrorDetails(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.engine.QuoteBuy(context.Background(), "42", "bitcoin", BuyAmount{Quantity: dec("0.0000000012")})
	var precisionErr *PrecisionError
	require.ErrorAs(t, err, &precisionErr)
	assert.Equal(t, int32(8), precisionErr.Precision)
	assert.Equal(t, int32(10), precisionErr.Got)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEngine_AmountTooSmall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	_, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{Quantity: dec("0.00000001")})
	var tooSmall *AmountTooSmallError
	require.ErrorAs(t, err, &tooSmall)
	assert.ErrorIs(t, err, ErrAmountTooSmall)
	assert.True(t, tooSmall.MinQuantity.Equal(decimal.RequireFromString("0.0000002")), "min %s", tooSmall.MinQuantity)

	_, err = f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("0.009")})
	assert.ErrorIs(t, err, ErrAmountTooSmall)

	_, err = f.accounts.AddHoldings(ctx, "42", "bitcoin", decimal.RequireFromString("1"))
	require.NoError(t, err)
	_, err = f.engine.QuoteSell(ctx, "42", "bitcoin", decimal.RequireFromString("0.00000001"))
	assert.ErrorIs(t, err, ErrAmountTooSmall)
}

func TestEngine_MarketDataUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.prices.err = market.ErrUnavailable

	_, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	assert.ErrorIs(t, err, market.ErrUnavailable)

	_, err = f.engine.QuoteBuy(ctx, "42", "monero", BuyAmount{USD: dec("100")})
	assert.ErrorIs(t, err, market.ErrUnavailable)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestEngine_HistoryFailureDoesNotUndoSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.engine.history = failingLog{}

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	result, err := f.engine.Confirm(ctx, quote.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, Settled, result.Outcome)

	balance, err := f.accounts.GetBalance(ctx, "42")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(900)))
}

func TestEngine_ResolvedQuotesAreForgotten(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{Retention: 10 * time.Millisecond})

	quote, err := f.engine.QuoteBuy(ctx, "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, quote.ID, "42")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := f.engine.Get(quote.ID)
		return errors.Is(err, ErrQuoteNotFound)
	}, time.Second, 5*time.Millisecond)

	_, err = f.engine.Confirm(ctx, uuid.New(), "42")
	assert.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestEngine_AwaitHonoursContext(t *testing.T) {
	f := newFixture(t, Config{})

	quote, err := f.engine.QuoteBuy(context.Background(), "42", "bitcoin", BuyAmount{USD: dec("100")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	result, err := f.engine.Await(ctx, quote.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Pending, result.Outcome)
}
