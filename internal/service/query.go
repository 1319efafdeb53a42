package service

import (
	"context"

	"github.com/Dan9191/card-ledger/internal/models"
)

// ListByUser returns the cards owned by userID.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]models.Card, error) {
	cards, err := withRetry(ctx, s, "list cards by user", func(ctx context.Context) ([]models.Card, error) {
		return s.store.ListCardsByUser(ctx, userID)
	})
	return cards, storeErr(err, "cards not found")
}

// ListAll returns every card joined with its owner's name and email.
func (s *Service) ListAll(ctx context.Context) ([]models.CardWithOwner, error) {
	cards, err := withRetry(ctx, s, "list all cards", func(ctx context.Context) ([]models.CardWithOwner, error) {
		return s.store.ListCardsWithOwners(ctx)
	})
	return cards, storeErr(err, "cards not found")
}

// ListUsers returns customer accounts from the identity store.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := withRetry(ctx, s, "list users", func(ctx context.Context) ([]models.User, error) {
		return s.users.ListUsers(ctx)
	})
	return users, storeErr(err, "users not found")
}

// TransferHistory returns transfers sent or received by a card, newest first.
// Records outlive the card, so a deleted card still has a history.
func (s *Service) TransferHistory(ctx context.Context, cardID int64) ([]models.Transfer, error) {
	transfers, err := withRetry(ctx, s, "list transfers", func(ctx context.Context) ([]models.Transfer, error) {
		return s.store.ListTransfersByCard(ctx, cardID)
	})
	return transfers, storeErr(err, "card not found")
}

// Totals returns the aggregates the auditor reconciles.
func (s *Service) Totals(ctx context.Context) (models.LedgerTotals, error) {
	totals, err := withRetry(ctx, s, "totals", func(ctx context.Context) (models.LedgerTotals, error) {
		return s.store.Totals(ctx)
	})
	return totals, storeErr(err, "totals not available")
}
