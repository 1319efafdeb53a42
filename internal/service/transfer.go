package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/events"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/Dan9191/card-ledger/internal/utils/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransferInput is a validated transfer request.
type TransferInput struct {
	FromCardNumber string
	ToIdentifier   string
	Amount         decimal.Decimal
	Description    string
}

// Transfer moves Amount from the sender card to the card ToIdentifier resolves
// to. Both cards are locked in ascending id order, the sender balance is checked
// under the lock, and the debit, credit and transfer record commit together.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (models.Transfer, error) {
	if err := validateAmount(in.Amount); err != nil {
		return models.Transfer{}, err
	}
	sender, err := s.getCardByNumber(ctx, in.FromCardNumber)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return models.Transfer{}, errs.Wrap(errs.CodeNotFound, "sender card not found", err)
		}
		return models.Transfer{}, err
	}
	recipient, err := s.Resolve(ctx, in.ToIdentifier)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return models.Transfer{}, errs.Wrap(errs.CodeRecipientNotFound, "recipient card not found", err)
		}
		return models.Transfer{}, err
	}
	if sender.ID == recipient.ID {
		return models.Transfer{}, errs.ErrSelfTransfer
	}
	amount := in.Amount
	description := trimDescription(in.Description)

	var record models.Transfer
	var recipientBalance decimal.Decimal
	err = withRetryErr(ctx, s, "transfer", func(ctx context.Context) error {
		return s.store.InTx(ctx, func(tx repository.Tx) error {
			cards, err := tx.LockCards(ctx, sender.ID, recipient.ID)
			if err != nil {
				return err
			}
			from, ok := cards[sender.ID]
			if !ok {
				return errs.New(errs.CodeNotFound, "sender card not found")
			}
			to, ok := cards[recipient.ID]
			if !ok {
				return errs.New(errs.CodeRecipientNotFound, "recipient card not found")
			}
			if from.Balance.LessThan(amount) {
				return errs.New(errs.CodeInsufficientFunds, "insufficient funds")
			}

			if err := tx.SetBalance(ctx, from.ID, from.Balance.Sub(amount)); err != nil {
				return err
			}
			recipientBalance = to.Balance.Add(amount)
			if err := checkBalanceLimit(recipientBalance); err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, to.ID, recipientBalance); err != nil {
				return err
			}
			record = models.Transfer{
				FromCardID:     from.ID,
				ToCardID:       to.ID,
				FromCardNumber: from.CardNumber,
				ToCardNumber:   to.CardNumber,
				Amount:         amount,
				Description:    description,
			}
			return tx.InsertTransfer(ctx, &record)
		})
	})
	if err != nil {
		return models.Transfer{}, storeErr(err, "card not found")
	}

	s.log.WithFields(logrus.Fields{
		"transfer_id":  record.ID,
		"from_card_id": record.FromCardID,
		"to_card_id":   record.ToCardID,
		"amount":       amount.String(),
	}).Info("Transfer completed")
	s.publish(ctx, events.NewEvent(events.TransferCompleted, strconv.FormatInt(record.FromCardID, 10), record))
	if s.notifier != nil {
		go s.notifyRecipient(context.WithoutCancel(ctx), recipient.UserID, record, recipientBalance)
	}
	return record, nil
}

func (s *Service) notifyRecipient(ctx context.Context, userID int64, t models.Transfer, balance decimal.Decimal) {
	ctx, cancel := context.WithTimeout(ctx, s.config.StorageTimeout)
	defer cancel()
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("Skipping transfer notification")
		return
	}
	if user.Email == "" {
		return
	}
	err = s.notifier.SendTransferReceived(email.TransferNotice{
		To:             user.Email,
		Name:           strings.TrimSpace(user.FirstName + " " + user.LastName),
		Amount:         t.Amount,
		FromCardNumber: t.FromCardNumber,
		ToCardNumber:   t.ToCardNumber,
		Balance:        balance,
		Description:    t.Description,
		At:             t.CreatedAt,
	})
	if err != nil {
		s.log.WithError(err).WithField("transfer_id", t.ID).Warn("Transfer notification failed")
	}
}

func trimDescription(d string) string {
	d = strings.TrimSpace(d)
	if utf8.RuneCountInString(d) <= maxDescriptionLen {
		return d
	}
	return string([]rune(d)[:maxDescriptionLen])
}
