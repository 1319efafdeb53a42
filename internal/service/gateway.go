package service

import (
	"context"
	"errors"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Gateway applies the authorization policy in front of the Service. Every
// method takes the principal the auth middleware verified for the request.
type Gateway struct {
	svc *Service
}

// NewGateway wraps svc with authorization checks.
func NewGateway(svc *Service) *Gateway {
	return &Gateway{svc: svc}
}

func forbidden(msg string) error {
	return errs.New(errs.CodeForbidden, msg)
}

func requireAdmin(p auth.Principal) error {
	if !p.IsAdmin {
		return forbidden("administrator rights required")
	}
	return nil
}

// ownsCard loads the card and checks that p may act on it.
func (g *Gateway) ownsCard(ctx context.Context, p auth.Principal, cardID int64) (models.Card, error) {
	card, err := g.svc.GetCard(ctx, cardID)
	if err != nil {
		return models.Card{}, err
	}
	if !p.IsAdmin && card.UserID != p.UserID {
		return models.Card{}, forbidden("card belongs to another user")
	}
	return card, nil
}

// CreateCard lets admins issue a card to any user. Other users may only open
// a card for themselves, with a zero balance.
func (g *Gateway) CreateCard(ctx context.Context, p auth.Principal, userID int64, initialBalance decimal.Decimal) (models.Card, error) {
	if !p.IsAdmin {
		if userID != p.UserID {
			return models.Card{}, forbidden("cannot create a card for another user")
		}
		if !initialBalance.IsZero() {
			return models.Card{}, forbidden("only administrators can set an initial balance")
		}
	}
	return g.svc.CreateCard(ctx, userID, initialBalance)
}

// AddBalance credits a card. Non-admins may only credit their own cards.
func (g *Gateway) AddBalance(ctx context.Context, p auth.Principal, cardNumber string, amount decimal.Decimal) (models.Card, error) {
	if !p.IsAdmin {
		card, err := g.svc.getCardByNumber(ctx, cardNumber)
		if err != nil {
			return models.Card{}, err
		}
		if card.UserID != p.UserID {
			return models.Card{}, forbidden("card belongs to another user")
		}
	}
	return g.svc.AddBalance(ctx, cardNumber, amount)
}

// Transfer requires the caller to own the sender card unless they are an admin.
func (g *Gateway) Transfer(ctx context.Context, p auth.Principal, in TransferInput) (models.Transfer, error) {
	if !p.IsAdmin {
		if err := validateAmount(in.Amount); err != nil {
			return models.Transfer{}, err
		}
		card, err := g.svc.getCardByNumber(ctx, in.FromCardNumber)
		if errors.Is(err, errs.ErrNotFound) {
			return models.Transfer{}, errs.Wrap(errs.CodeNotFound, "sender card not found", err)
		}
		if err != nil {
			return models.Transfer{}, err
		}
		if card.UserID != p.UserID {
			return models.Transfer{}, forbidden("sender card belongs to another user")
		}
	}
	return g.svc.Transfer(ctx, in)
}

// LinkPhone binds a phone to one of the caller's cards.
func (g *Gateway) LinkPhone(ctx context.Context, p auth.Principal, cardID int64, phone string) (models.Card, error) {
	if _, err := g.ownsCard(ctx, p, cardID); err != nil {
		return models.Card{}, err
	}
	return g.svc.LinkPhone(ctx, cardID, phone)
}

// DeleteCard is admin only.
func (g *Gateway) DeleteCard(ctx context.Context, p auth.Principal, cardID int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	return g.svc.DeleteCard(ctx, cardID)
}

// CardsByUser lists a user's cards for that user or an admin.
func (g *Gateway) CardsByUser(ctx context.Context, p auth.Principal, userID int64) ([]models.Card, error) {
	if !p.IsAdmin && userID != p.UserID {
		return nil, forbidden("cannot list another user's cards")
	}
	return g.svc.ListByUser(ctx, userID)
}

// AllCards is admin only.
func (g *Gateway) AllCards(ctx context.Context, p auth.Principal) ([]models.CardWithOwner, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return g.svc.ListAll(ctx)
}

// ListUsers is admin only.
func (g *Gateway) ListUsers(ctx context.Context, p auth.Principal) ([]models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return g.svc.ListUsers(ctx)
}

// TransferHistory lists a card's transfers. Admins can read the history of
// deleted cards; owners need the card to exist.
func (g *Gateway) TransferHistory(ctx context.Context, p auth.Principal, cardID int64) ([]models.Transfer, error) {
	if !p.IsAdmin {
		if _, err := g.ownsCard(ctx, p, cardID); err != nil {
			return nil, err
		}
	}
	return g.svc.TransferHistory(ctx, cardID)
}

// Statement returns a card with its transfer history for export.
func (g *Gateway) Statement(ctx context.Context, p auth.Principal, cardID int64) (models.Card, []models.Transfer, error) {
	card, err := g.ownsCard(ctx, p, cardID)
	if err != nil {
		return models.Card{}, nil, err
	}
	transfers, err := g.svc.TransferHistory(ctx, cardID)
	if err != nil {
		return models.Card{}, nil, err
	}
	return card, transfers, nil
}
