package reward

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/JhonesBR/go-coinbot/internal/account"
)

const DefaultCooldown = 60 * time.Second

var DefaultAmount = decimal.NewFromInt(1)

// Recorder observes reward attempts.
type Recorder interface {
	RewardGranted(granted bool)
}

type nopRecorder struct{}

func (nopRecorder) RewardGranted(bool) {}

type Config struct {
	Amount   decimal.Decimal
	Cooldown time.Duration
}

// Grant is the result of a reward attempt. Balance is only set when
// Granted.
type Grant struct {
	Granted bool            `json:"granted"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// Service credits a small amount for chat activity, at most once per
// cooldown window per user.
type Service struct {
	cfg      Config
	accounts *account.Service
	cooldown Cooldown
	recorder Recorder
	logger   logrus.FieldLogger
}

func NewService(cfg Config, accounts *account.Service, cooldown Cooldown, recorder Recorder, logger logrus.FieldLogger) *Service {
	if !cfg.Amount.IsPositive() {
		cfg.Amount = DefaultAmount
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{cfg: cfg, accounts: accounts, cooldown: cooldown, recorder: recorder, logger: logger}
}

func (s *Service) Reward(ctx context.Context, userID string) (Grant, error) {
	ok, err := s.cooldown.Acquire(ctx, userID, s.cfg.Cooldown)
	if err != nil {
		return Grant{}, err
	}
	if !ok {
		s.recorder.RewardGranted(false)
		return Grant{Granted: false, Amount: decimal.Zero}, nil
	}

	balance, err := s.accounts.AddBalance(ctx, userID, s.cfg.Amount)
	if err != nil {
		// Let the next message retry the credit.
		if relErr := s.cooldown.Release(ctx, userID); relErr != nil {
			s.logger.WithError(relErr).WithField("user_id", userID).Warn("failed to release reward cooldown")
		}
		return Grant{}, err
	}

	s.recorder.RewardGranted(true)
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  s.cfg.Amount.String(),
	}).Debug("message reward granted")
	return Grant{Granted: true, Amount: s.cfg.Amount, Balance: balance}, nil
}
