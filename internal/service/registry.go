package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/events"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateCard issues a new card for userID with an optional opening balance.
// The holder name is copied from the user record at call time.
func (s *Service) CreateCard(ctx context.Context, userID int64, initialBalance decimal.Decimal) (models.Card, error) {
	if initialBalance.IsNegative() {
		return models.Card{}, errs.New(errs.CodeInvalidAmount, "initial balance cannot be negative")
	}
	if !initialBalance.IsZero() {
		if err := validateAmount(initialBalance); err != nil {
			return models.Card{}, err
		}
	}

	user, err := withRetry(ctx, s, "get user", func(ctx context.Context) (models.User, error) {
		return s.users.GetUser(ctx, userID)
	})
	if err != nil {
		return models.Card{}, storeErr(err, "user not found")
	}

	for attempt := 1; attempt <= s.config.CardNumberAttempts; attempt++ {
		number, err := s.newCardNumber()
		if err != nil {
			return models.Card{}, errs.Wrap(errs.CodeInternal, "internal error", err)
		}
		if n, ok := utils.NormalizeCardNumber(number); !ok || n != number || !utils.ValidLuhn(number) {
			return models.Card{}, errs.Wrap(errs.CodeInternal, "internal error", fmt.Errorf("generated card number %q is malformed", number))
		}
		card := models.Card{
			UserID:     user.ID,
			CardNumber: number,
			CardHolder: user.HolderName(),
			Balance:    initialBalance,
		}
		err = withRetryErr(ctx, s, "create card", func(ctx context.Context) error {
			return s.store.InTx(ctx, func(tx repository.Tx) error {
				if err := tx.InsertCard(ctx, &card); err != nil {
					return err
				}
				if initialBalance.IsZero() {
					return nil
				}
				return tx.InsertAdjustment(ctx, &models.Adjustment{
					CardID: card.ID,
					Kind:   models.AdjustmentIssue,
					Amount: initialBalance,
				})
			})
		})
		if errors.Is(err, repository.ErrCardNumberTaken) {
			s.log.WithField("attempt", attempt).Warn("Card number collision, regenerating")
			continue
		}
		if err != nil {
			return models.Card{}, storeErr(err, "user not found")
		}

		s.log.WithFields(logrus.Fields{"card_id": card.ID, "user_id": user.ID}).Info("Card created")
		s.publish(ctx, events.NewEvent(events.CardCreated, strconv.FormatInt(card.ID, 10), card))
		return card, nil
	}
	return models.Card{}, errs.New(errs.CodeConflict, "could not allocate a unique card number, retry later")
}

// AddBalance credits a card. This is the administrative trust path: money
// enters the ledger without a source card and is recorded as an adjustment.
func (s *Service) AddBalance(ctx context.Context, cardNumber string, amount decimal.Decimal) (models.Card, error) {
	if err := validateAmount(amount); err != nil {
		return models.Card{}, err
	}
	card, err := s.getCardByNumber(ctx, cardNumber)
	if err != nil {
		return models.Card{}, err
	}

	var updated models.Card
	err = withRetryErr(ctx, s, "add balance", func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			cards, err := tx.LockCards(ctx, card.ID)
			if err != nil {
				return err
			}
			locked, ok := cards[card.ID]
			if !ok {
				return errs.New(errs.CodeNotFound, "card not found")
			}
			locked.Balance = locked.Balance.Add(amount)
			if err := checkBalanceLimit(locked.Balance); err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, locked.ID, locked.Balance); err != nil {
				return err
			}
			if err := tx.InsertAdjustment(ctx, &models.Adjustment{
				CardID: locked.ID,
				Kind:   models.AdjustmentCredit,
				Amount: amount,
			}); err != nil {
				return err
			}
			updated = locked
			return nil
		})
	})
	if err != nil {
		return models.Card{}, storeErr(err, "card not found")
	}

	s.log.WithFields(logrus.Fields{"card_id": updated.ID, "amount": amount.String()}).Info("Card credited")
	s.publish(ctx, events.NewEvent(events.CardCredited, strconv.FormatInt(updated.ID, 10), map[string]any{
		"card_id": updated.ID,
		"amount":  amount,
		"balance": updated.Balance,
	}))
	return updated, nil
}

// LinkPhone binds a phone number to a card. Re-linking the same phone is a
// no-op; a card keeps the first phone it was linked to.
func (s *Service) LinkPhone(ctx context.Context, cardID int64, phone string) (models.Card, error) {
	normalized, err := utils.NormalizePhone(phone)
	if err != nil {
		return models.Card{}, errs.Wrap(errs.CodeInvalidRequest, "invalid phone number", err)
	}

	var updated models.Card
	var changed bool
	err = withRetryErr(ctx, s, "link phone", func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			cards, err := tx.LockCards(ctx, cardID)
			if err != nil {
				return err
			}
			card, ok := cards[cardID]
			if !ok {
				return errs.New(errs.CodeNotFound, "card not found")
			}
			if card.HasPhone() {
				if *card.Phone == normalized {
					updated, changed = card, false
					return nil
				}
				return errs.New(errs.CodeConflict, "card already has a linked phone number")
			}
			if err := tx.SetPhone(ctx, cardID, normalized); err != nil {
				return err
			}
			card.Phone = &normalized
			updated, changed = card, true
			return nil
		})
	})
	if err != nil {
		return models.Card{}, storeErr(err, "card not found")
	}

	if changed {
		s.log.WithField("card_id", cardID).Info("Phone linked to card")
		s.publish(ctx, events.NewEvent(events.CardPhoneLinked, strconv.FormatInt(cardID, 10), map[string]any{
			"card_id": cardID,
		}))
	}
	return updated, nil
}

// DeleteCard removes a card for good. A remaining balance leaves the ledger as
// a write-off; transfer records that reference the card are kept.
func (s *Service) DeleteCard(ctx context.Context, cardID int64) error {
	var deleted models.Card
	err := withRetryErr(ctx, s, "delete card", func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			cards, err := tx.LockCards(ctx, cardID)
			if err != nil {
				return err
			}
			card, ok := cards[cardID]
			if !ok {
				return errs.New(errs.CodeNotFound, "card not found")
			}
			if !card.Balance.IsZero() {
				if err := tx.InsertAdjustment(ctx, &models.Adjustment{
					CardID: cardID,
					Kind:   models.AdjustmentWriteOff,
					Amount: card.Balance.Neg(),
				}); err != nil {
					return err
				}
			}
			deleted = card
			return tx.DeleteCard(ctx, cardID)
		})
	})
	if err != nil {
		return storeErr(err, "card not found")
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "written_off": deleted.Balance.String()}).Info("Card deleted")
	s.publish(ctx, events.NewEvent(events.CardDeleted, strconv.FormatInt(cardID, 10), map[string]any{
		"card_id":     cardID,
		"user_id":     deleted.UserID,
		"written_off": deleted.Balance,
	}))
	return nil
}

// GetCard returns a card by id.
func (s *Service) GetCard(ctx context.Context, cardID int64) (models.Card, error) {
	card, err := withRetry(ctx, s, "get card", func(ctx context.Context) (models.Card, error) {
		return s.store.GetCardByID(ctx, cardID)
	})
	return card, storeErr(err, "card not found")
}

func (s *Service) getCardByNumber(ctx context.Context, cardNumber string) (models.Card, error) {
	number, ok := utils.NormalizeCardNumber(cardNumber)
	if !ok || !utils.ValidLuhn(number) {
		return models.Card{}, errs.New(errs.CodeNotFound, "card not found")
	}
	card, err := withRetry(ctx, s, "get card", func(ctx context.Context) (models.Card, error) {
		return s.store.GetCardByNumber(ctx, number)
	})
	return card, storeErr(err, "card not found")
}
