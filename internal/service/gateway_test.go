package service

import (
	"context"
	"testing"

	"github.com/Dan9191/card-ledger/internal/auth"
	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/shopspring/decimal"
)

var (
	anna  = auth.Principal{UserID: annaID, Email: "anna@example.com"}
	boris = auth.Principal{UserID: borisID, Email: "boris@example.com"}
	admin = auth.Principal{UserID: adminID, Email: "admin@example.com", IsAdmin: true}
)

func TestGatewayAdminOnly(t *testing.T) {
	s, _ := newTestService(t)
	g := NewGateway(s)
	card := mustCard(t, s, annaID, 10)
	ctx := context.Background()

	_, err := g.AllCards(ctx, anna)
	wantCode(t, err, errs.CodeForbidden)
	_, err = g.ListUsers(ctx, anna)
	wantCode(t, err, errs.CodeForbidden)
	wantCode(t, g.DeleteCard(ctx, anna, card.ID), errs.CodeForbidden)

	if _, err := g.AllCards(ctx, admin); err != nil {
		t.Fatalf("admin AllCards: %v", err)
	}
	if _, err := g.ListUsers(ctx, admin); err != nil {
		t.Fatalf("admin ListUsers: %v", err)
	}
	if err := g.DeleteCard(ctx, admin, card.ID); err != nil {
		t.Fatalf("admin DeleteCard: %v", err)
	}
}

func TestGatewayCreateCard(t *testing.T) {
	s, _ := newTestService(t)
	g := NewGateway(s)
	ctx := context.Background()

	_, err := g.CreateCard(ctx, anna, borisID, decimal.Zero)
	wantCode(t, err, errs.CodeForbidden)
	_, err = g.CreateCard(ctx, anna, annaID, dec(100))
	wantCode(t, err, errs.CodeForbidden)

	if _, err := g.CreateCard(ctx, anna, annaID, decimal.Zero); err != nil {
		t.Fatalf("self-service CreateCard: %v", err)
	}
	card, err := g.CreateCard(ctx, admin, borisID, dec(100))
	if err != nil {
		t.Fatalf("admin CreateCard: %v", err)
	}
	if card.UserID != borisID || !card.Balance.Equal(dec(100)) {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestGatewayOwnership(t *testing.T) {
	s, _ := newTestService(t)
	g := NewGateway(s)
	ctx := context.Background()
	a := mustCard(t, s, annaID, 100)
	b := mustCard(t, s, borisID, 100)

	_, err := g.AddBalance(ctx, boris, a.CardNumber, dec(5))
	wantCode(t, err, errs.CodeForbidden)
	if _, err := g.AddBalance(ctx, anna, a.CardNumber, dec(5)); err != nil {
		t.Fatalf("owner AddBalance: %v", err)
	}

	_, err = g.Transfer(ctx, boris, TransferInput{FromCardNumber: a.CardNumber, ToIdentifier: b.CardNumber, Amount: dec(5)})
	wantCode(t, err, errs.CodeForbidden)
	if _, err := g.Transfer(ctx, anna, TransferInput{FromCardNumber: a.CardNumber, ToIdentifier: b.CardNumber, Amount: dec(5)}); err != nil {
		t.Fatalf("owner Transfer: %v", err)
	}
	_, err = g.Transfer(ctx, anna, TransferInput{FromCardNumber: "4000001111111111", ToIdentifier: b.CardNumber, Amount: dec(5)})
	wantCode(t, err, errs.CodeNotFound)

	_, err = g.LinkPhone(ctx, boris, a.ID, "+79001234567")
	wantCode(t, err, errs.CodeForbidden)
	_, err = g.CardsByUser(ctx, boris, annaID)
	wantCode(t, err, errs.CodeForbidden)
	_, err = g.TransferHistory(ctx, boris, a.ID)
	wantCode(t, err, errs.CodeForbidden)
	_, _, err = g.Statement(ctx, boris, a.ID)
	wantCode(t, err, errs.CodeForbidden)

	cards, err := g.CardsByUser(ctx, anna, annaID)
	if err != nil || len(cards) != 1 {
		t.Fatalf("owner CardsByUser = %v, %v", cards, err)
	}
	card, transfers, err := g.Statement(ctx, anna, a.ID)
	if err != nil || card.ID != a.ID || len(transfers) != 1 {
		t.Fatalf("owner Statement = %+v %v %v", card, transfers, err)
	}
}

func TestGatewayAdminReadsDeletedCardHistory(t *testing.T) {
	s, _ := newTestService(t)
	g := NewGateway(s)
	ctx := context.Background()
	a := mustCard(t, s, annaID, 100)
	b := mustCard(t, s, borisID, 0)
	if _, err := s.Transfer(ctx, TransferInput{FromCardNumber: a.CardNumber, ToIdentifier: b.CardNumber, Amount: dec(40)}); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := g.DeleteCard(ctx, admin, a.ID); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}

	history, err := g.TransferHistory(ctx, admin, a.ID)
	if err != nil || len(history) != 1 {
		t.Fatalf("admin history = %v, %v", history, err)
	}
	_, err = g.TransferHistory(ctx, anna, a.ID)
	wantCode(t, err, errs.CodeNotFound)
}
