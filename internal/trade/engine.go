package trade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/JhonesBR/go-coinbot/internal/account"
	"github.com/JhonesBR/go-coinbot/internal/events"
	"github.com/JhonesBR/go-coinbot/internal/market"
	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

const (
	DefaultQuoteTTL  = 30 * time.Second
	DefaultRetention = 5 * time.Minute
)

// MinimumUSD is the smallest trade value accepted.
var MinimumUSD = decimal.RequireFromString("0.01")

// Recorder observes the quote lifecycle.
type Recorder interface {
	QuoteCreated(direction string)
	QuoteResolved(direction, outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) QuoteCreated(string)                         {}
func (nopRecorder) QuoteResolved(string, string, time.Duration) {}

type Config struct {
	// QuoteTTL bounds the confirmation window of a quote.
	QuoteTTL time.Duration
	// Retention keeps resolved quotes queryable after they end.
	Retention time.Duration
}

type Deps struct {
	Catalog   *market.Catalog
	Prices    market.Source
	Accounts  *account.Service
	History   txlog.Log
	Publisher events.Publisher
	Recorder  Recorder
	Logger    logrus.FieldLogger
}

// Engine runs the two-phase settlement protocol: a quote is priced and
// held until its owner confirms or cancels it, or it expires. On
// confirmation the account is re-read and the trade committed atomically.
type Engine struct {
	cfg       Config
	catalog   *market.Catalog
	prices    market.Source
	accounts  *account.Service
	history   txlog.Log
	publisher events.Publisher
	recorder  Recorder
	logger    logrus.FieldLogger
	now       func() time.Time

	mu     sync.Mutex
	quotes map[uuid.UUID]*pendingQuote
}

type pendingQuote struct {
	mu       sync.Mutex
	result   Result
	settling bool
	timer    *time.Timer
	done     chan struct{}
}

func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultQuoteTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Engine{
		cfg:       cfg,
		catalog:   deps.Catalog,
		prices:    deps.Prices,
		accounts:  deps.Accounts,
		history:   deps.History,
		publisher: deps.Publisher,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		now:       time.Now,
		quotes:    make(map[uuid.UUID]*pendingQuote),
	}
}

// QuoteBuy prices a purchase sized either in USD or in asset units.
func (e *Engine) QuoteBuy(ctx context.Context, userID, assetQuery string, amount BuyAmount) (Quote, error) {
	asset, err := e.catalog.Lookup(assetQuery)
	if err != nil {
		return Quote{}, err
	}
	if (amount.USD == nil) == (amount.Quantity == nil) {
		return Quote{}, ErrAmbiguousAmount
	}

	if amount.Quantity != nil {
		if err := checkQuantity(asset, *amount.Quantity); err != nil {
			return Quote{}, err
		}
	} else if !amount.USD.IsPositive() {
		return Quote{}, ErrNonPositiveAmount
	}

	price, err := market.PriceOf(ctx, e.prices, asset.ID)
	if err != nil {
		return Quote{}, err
	}

	var qty, usd decimal.Decimal
	if amount.Quantity != nil {
		qty = *amount.Quantity
		usd = qty.Mul(price.Current)
	} else {
		usd = *amount.USD
		qty, _ = usd.QuoRem(price.Current, asset.Precision)
	}
	if err := checkMinimum(asset, price.Current, qty, usd); err != nil {
		return Quote{}, err
	}

	return e.open(userID, asset, Buy, qty, price.Current, usd), nil
}

// QuoteSell prices a sale of qty units, which must not exceed the current
// holdings.
func (e *Engine) QuoteSell(ctx context.Context, userID, assetQuery string, qty decimal.Decimal) (Quote, error) {
	asset, err := e.catalog.Lookup(assetQuery)
	if err != nil {
		return Quote{}, err
	}
	if err := checkQuantity(asset, qty); err != nil {
		return Quote{}, err
	}

	holdings, err := e.accounts.GetHoldings(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	if held := holdings[asset.ID]; held.LessThan(qty) {
		return Quote{}, fmt.Errorf("%w: you hold %s %s", ErrInsufficientHoldings, held, asset.Symbol)
	}

	price, err := market.PriceOf(ctx, e.prices, asset.ID)
	if err != nil {
		return Quote{}, err
	}
	usd := qty.Mul(price.Current)
	if err := checkMinimum(asset, price.Current, qty, usd); err != nil {
		return Quote{}, err
	}

	return e.open(userID, asset, Sell, qty, price.Current, usd), nil
}

// Confirm accepts the owner's confirmation and settles the quote against
// the account as it is now. A rejected settlement is a Result, not an
// error; errors report signals that were ignored.
func (e *Engine) Confirm(ctx context.Context, quoteID uuid.UUID, userID string) (Result, error) {
	p, err := e.lookup(quoteID)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	if p.result.Quote.UserID != userID {
		p.mu.Unlock()
		return Result{}, ErrNotQuoteOwner
	}
	if p.result.Outcome.Terminal() || p.settling {
		result := p.result
		p.mu.Unlock()
		return result, ErrQuoteResolved
	}
	if !e.now().Before(p.result.Quote.ExpiresAt) {
		e.finish(p, Result{Outcome: Expired, Quote: p.result.Quote})
		result := p.result
		p.mu.Unlock()
		return result, ErrQuoteResolved
	}
	p.settling = true
	p.timer.Stop()
	quote := p.result.Quote
	p.mu.Unlock()

	// Settlement is not interruptible once the confirmation is accepted.
	result := e.settle(context.WithoutCancel(ctx), quote)

	p.mu.Lock()
	e.finish(p, result)
	p.mu.Unlock()
	return result, nil
}

// Cancel resolves the quote without touching the ledger.
func (e *Engine) Cancel(ctx context.Context, quoteID uuid.UUID, userID string) (Result, error) {
	p, err := e.lookup(quoteID)
	if err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result.Quote.UserID != userID {
		return Result{}, ErrNotQuoteOwner
	}
	if p.result.Outcome.Terminal() || p.settling {
		return p.result, ErrQuoteResolved
	}
	p.timer.Stop()
	e.finish(p, Result{Outcome: Cancelled, Quote: p.result.Quote})
	return p.result, nil
}

// Get returns the current state of a quote.
func (e *Engine) Get(quoteID uuid.UUID) (Result, error) {
	p, err := e.lookup(quoteID)
	if err != nil {
		return Result{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, nil
}

// Await blocks until the quote reaches a terminal outcome or ctx ends.
func (e *Engine) Await(ctx context.Context, quoteID uuid.UUID) (Result, error) {
	p, err := e.lookup(quoteID)
	if err != nil {
		return Result{}, err
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.result, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, nil
}

func (e *Engine) open(userID string, asset market.Asset, dir Direction, qty, unitPrice, usd decimal.Decimal) Quote {
	now := e.now()
	quote := Quote{
		ID:        uuid.New(),
		UserID:    userID,
		Asset:     asset,
		Direction: dir,
		Quantity:  qty,
		UnitPrice: unitPrice,
		USDValue:  usd,
		CreatedAt: now,
		ExpiresAt: now.Add(e.cfg.QuoteTTL),
	}
	p := &pendingQuote{
		result: Result{Outcome: Pending, Quote: quote},
		done:   make(chan struct{}),
	}
	p.timer = time.AfterFunc(e.cfg.QuoteTTL, func() { e.expire(p) })

	e.mu.Lock()
	e.quotes[quote.ID] = p
	e.mu.Unlock()

	e.recorder.QuoteCreated(string(dir))
	e.logger.WithFields(logrus.Fields{
		"quote_id":  quote.ID,
		"user_id":   userID,
		"asset":     asset.ID,
		"direction": dir,
		"quantity":  qty.String(),
		"usd":       usd.StringFixed(2),
	}).Info("quote created")
	return quote
}

func (e *Engine) expire(p *pendingQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result.Outcome.Terminal() || p.settling {
		return
	}
	e.finish(p, Result{Outcome: Expired, Quote: p.result.Quote})
}

// finish records a terminal result. Callers hold p.mu.
func (e *Engine) finish(p *pendingQuote, result Result) {
	p.result = result
	p.settling = false
	close(p.done)

	quote := result.Quote
	e.recorder.QuoteResolved(string(quote.Direction), string(result.Outcome), e.now().Sub(quote.CreatedAt))
	entry := e.logger.WithFields(logrus.Fields{
		"quote_id": quote.ID,
		"user_id":  quote.UserID,
		"outcome":  result.Outcome,
	})
	if result.Err != nil {
		entry = entry.WithError(result.Err)
	}
	entry.Info("quote resolved")

	time.AfterFunc(e.cfg.Retention, func() {
		e.mu.Lock()
		delete(e.quotes, quote.ID)
		e.mu.Unlock()
	})
}

func (e *Engine) lookup(quoteID uuid.UUID) (*pendingQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.quotes[quoteID]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	return p, nil
}

func (e *Engine) settle(ctx context.Context, quote Quote) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = rejected(quote, fmt.Errorf("%w: %v", ErrTransient, r))
		}
	}()

	delta := account.Delta{UserID: quote.UserID, AssetID: quote.Asset.ID}
	switch quote.Direction {
	case Buy:
		delta.Balance = quote.USDValue.Neg()
		delta.Quantity = quote.Quantity
	case Sell:
		delta.Balance = quote.USDValue
		delta.Quantity = quote.Quantity.Neg()
	}

	if _, err := e.accounts.Settle(ctx, delta); err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrInsufficientHoldings) {
			return rejected(quote, err)
		}
		return rejected(quote, fmt.Errorf("%w: %v", ErrTransient, err))
	}

	record := txlog.Record{
		UserID:    quote.UserID,
		Type:      txlog.Type(quote.Direction),
		AssetID:   quote.Asset.ID,
		Quantity:  quote.Quantity,
		UnitPrice: quote.UnitPrice,
		USDValue:  quote.USDValue,
		Timestamp: e.now(),
	}
	log := e.logger.WithFields(logrus.Fields{"quote_id": quote.ID, "user_id": quote.UserID})
	if err := e.history.Append(ctx, record); err != nil {
		log.WithError(err).Error("settled trade missing from transaction log")
	}
	if err := e.publisher.PublishTrade(ctx, record); err != nil {
		log.WithError(err).Warn("failed to publish trade event")
	}
	return Result{Outcome: Settled, Quote: quote, Record: &record}
}

func rejected(quote Quote, err error) Result {
	reason := err.Error()
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		reason = "you don't have enough funds"
	case errors.Is(err, ErrInsufficientHoldings):
		reason = fmt.Sprintf("you don't have enough %s to sell", quote.Asset.Symbol)
	case errors.Is(err, ErrTransient):
		reason = ErrTransient.Error()
	}
	return Result{Outcome: Rejected, Quote: quote, Reason: reason, Err: err}
}

func checkQuantity(asset market.Asset, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrNonPositiveAmount
	}
	if got := fractionalDigits(qty); got > asset.Precision {
		return &PrecisionError{Asset: asset.Name, Precision: asset.Precision, Got: got}
	}
	return nil
}

func checkMinimum(asset market.Asset, unitPrice, qty, usd decimal.Decimal) error {
	if qty.IsPositive() && !usd.LessThan(MinimumUSD) {
		return nil
	}
	return &AmountTooSmallError{
		Symbol:      asset.Symbol,
		MinimumUSD:  MinimumUSD,
		UnitPrice:   unitPrice,
		MinQuantity: MinimumUSD.DivRound(unitPrice, asset.Precision+4).RoundCeil(asset.Precision),
	}
}
