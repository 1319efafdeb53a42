package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/events"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/utils"
	"github.com/Dan9191/card-ledger/internal/utils/email"
	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// maxDescriptionLen caps transfer descriptions, in runes.
const maxDescriptionLen = 255

// Notifier delivers customer notifications after a commit.
type Notifier interface {
	SendTransferReceived(n email.TransferNotice) error
}

// Service handles ledger business logic
type Service struct {
	store     repository.Store
	users     repository.UserStore
	log       *logrus.Logger
	config    *config.Config
	publisher events.Publisher
	notifier  Notifier

	newCardNumber func() (string, error)
	newBackOff    func() backoff.BackOff
	now           func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithNotifier sets the customer notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCardNumberGenerator replaces the random card number source.
func WithCardNumberGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newCardNumber = gen }
}

// NewService initializes a new service
func NewService(store repository.Store, users repository.UserStore, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:     store,
		users:     users,
		log:       log,
		config:    cfg,
		publisher: events.Noop{},
		now:       time.Now,
	}
	s.newCardNumber = func() (string, error) {
		return utils.GenerateCardNumber(cfg.CardBIN, utils.CardNumberLength)
	}
	s.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 20 * time.Millisecond
		b.MaxInterval = 500 * time.Millisecond
		return b
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withRetry runs fn with a per-attempt storage timeout. Transient failures are
// retried up to STORAGE_RETRIES attempts and then surface as CodeTransient;
// every other error is returned as is on the first attempt.
func withRetry[T any](ctx context.Context, s *Service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		opCtx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
		defer cancel()

		v, err := fn(opCtx)
		if err == nil {
			return v, nil
		}
		if isTransient(err) {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "attempt": attempt}).Warn("Transient storage failure")
			return v, err
		}
		return v, backoff.Permanent(err)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.config.StorageRetries))
	if err != nil && isTransient(err) {
		return res, errs.Wrap(errs.CodeTransient, errs.ErrTransient.Message, err)
	}
	return res, err
}

// withRetryErr is withRetry for operations without a result.
func withRetryErr(ctx context.Context, s *Service, op string, fn func(ctx context.Context) error) error {
	_, err := withRetry(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, repository.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// storeErr translates repository sentinels into domain errors. notFound is the
// message used when the record is missing.
func storeErr(err error, notFound string) error {
	var domain *errs.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domain):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return errs.Wrap(errs.CodeNotFound, notFound, err)
	case errors.Is(err, repository.ErrPhoneTaken):
		return errs.Wrap(errs.CodeConflict, "phone is already linked to another card", err)
	case errors.Is(err, repository.ErrCardNumberTaken):
		return errs.Wrap(errs.CodeConflict, "card number already exists", err)
	default:
		return errs.Wrap(errs.CodeInternal, "internal error", err)
	}
}

// Money columns are NUMERIC(20,2).
const (
	maxIntegerDigits = 18
	maxScale         = 2
	// maxCoefficientDigits bounds the parsed form before any arithmetic on it.
	maxCoefficientDigits = 40
)

// maxBalance is the largest balance a card row can hold.
var maxBalance = decimal.New(1, maxIntegerDigits).Sub(decimal.New(1, -maxScale))

// validateAmount enforces a positive amount with at most two decimal places
// that fits a money column. Only the exponent and coefficient length are
// inspected until the value is known to be small.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errs.New(errs.CodeInvalidAmount, "amount must be greater than zero")
	}
	exp := int64(amount.Exponent())
	digits := int64(amount.NumDigits())
	if exp > maxIntegerDigits || digits > maxCoefficientDigits || digits+exp > maxIntegerDigits {
		return errs.New(errs.CodeInvalidAmount, "amount is too large")
	}
	if exp < -maxCoefficientDigits {
		return errs.New(errs.CodeInvalidAmount, "amount must have at most two decimal places")
	}
	if exp < -maxScale && !amount.Equal(amount.Round(maxScale)) {
		return errs.New(errs.CodeInvalidAmount, "amount must have at most two decimal places")
	}
	return nil
}

// checkBalanceLimit rejects a credit that would overflow the balance column.
func checkBalanceLimit(balance decimal.Decimal) error {
	if balance.GreaterThan(maxBalance) {
		return errs.New(errs.CodeInvalidAmount, "resulting balance exceeds the card limit")
	}
	return nil
}

// publish sends an event; failures are logged because the state is committed.
func (s *Service) publish(ctx context.Context, e events.Event) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.StorageTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Error("Failed to publish event")
	}
}
