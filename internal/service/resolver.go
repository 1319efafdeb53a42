package service

import (
	"context"

	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/utils"
)

// Resolve maps a card number (formatting ignored) or a phone number to the
// card it identifies.
func (s *Service) Resolve(ctx context.Context, identifier string) (models.Card, error) {
	if number, ok := utils.NormalizeCardNumber(identifier); ok {
		if !utils.ValidLuhn(number) {
			return models.Card{}, errs.New(errs.CodeNotFound, "card not found")
		}
		card, err := withRetry(ctx, s, "resolve card number", func(ctx context.Context) (models.Card, error) {
			return s.store.GetCardByNumber(ctx, number)
		})
		return card, storeErr(err, "card not found")
	}

	phone, err := utils.NormalizePhone(identifier)
	if err != nil {
		return models.Card{}, errs.Wrap(errs.CodeNotFound, "card not found", err)
	}
	card, err := withRetry(ctx, s, "resolve phone", func(ctx context.Context) (models.Card, error) {
		return s.store.GetCardByPhone(ctx, phone)
	})
	return card, storeErr(err, "no card is linked to this phone number")
}
