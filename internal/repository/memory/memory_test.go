package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/shopspring/decimal"
)

func insertCard(t *testing.T, s *Store, number string, balance int64) models.Card {
	t.Helper()
	card := models.Card{UserID: 1, CardNumber: number, CardHolder: "ANNA IVANOVA", Balance: decimal.NewFromInt(balance)}
	err := s.InTx(context.Background(), func(tx repository.Tx) error {
		return tx.InsertCard(context.Background(), &card)
	})
	if err != nil {
		t.Fatalf("insert card: %v", err)
	}
	return card
}

func TestInsertAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := insertCard(t, s, "4000000000000002", 10)

	got, err := s.GetCardByNumber(ctx, "4000000000000002")
	if err != nil {
		t.Fatalf("GetCardByNumber: %v", err)
	}
	if got.ID != c.ID || !got.Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("got %+v", got)
	}
	if _, err := s.GetCardByID(ctx, 999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDuplicateCardNumber(t *testing.T) {
	s := New()
	insertCard(t, s, "4000000000000002", 0)
	card := models.Card{UserID: 2, CardNumber: "4000000000000002"}
	err := s.InTx(context.Background(), func(tx repository.Tx) error {
		return tx.InsertCard(context.Background(), &card)
	})
	if !errors.Is(err, repository.ErrCardNumberTaken) {
		t.Fatalf("want ErrCardNumberTaken, got %v", err)
	}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := insertCard(t, s, "4000000000000002", 100)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockCards(ctx, c.ID); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, c.ID, decimal.Zero); err != nil {
			return err
		}
		if err := tx.InsertTransfer(ctx, &models.Transfer{FromCardID: c.ID, ToCardID: 2, Amount: decimal.NewFromInt(1)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	got, _ := s.GetCardByID(ctx, c.ID)
	if !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance changed after rollback: %s", got.Balance)
	}
	transfers, _ := s.ListTransfersByCard(ctx, c.ID)
	if len(transfers) != 0 {
		t.Fatalf("transfer leaked from rolled back tx: %+v", transfers)
	}
}

func TestLockCardsSeesOwnWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := insertCard(t, s, "4000000000000002", 100)

	err := s.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.SetBalance(ctx, c.ID, decimal.NewFromInt(7)); err != nil {
			return err
		}
		cards, err := tx.LockCards(ctx, c.ID)
		if err != nil {
			return err
		}
		if !cards[c.ID].Balance.Equal(decimal.NewFromInt(7)) {
			t.Errorf("tx should see its own write, got %s", cards[c.ID].Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func TestPhoneUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := insertCard(t, s, "4000000000000002", 0)
	b := insertCard(t, s, "4000000000000010", 0)

	link := func(id int64) error {
		return s.InTx(ctx, func(tx repository.Tx) error {
			return tx.SetPhone(ctx, id, "+79001234567")
		})
	}
	if err := link(a.ID); err != nil {
		t.Fatalf("link a: %v", err)
	}
	if err := link(b.ID); !errors.Is(err, repository.ErrPhoneTaken) {
		t.Fatalf("want ErrPhoneTaken, got %v", err)
	}
	got, err := s.GetCardByPhone(ctx, "+79001234567")
	if err != nil || got.ID != a.ID {
		t.Fatalf("phone should stay on card a, got %+v err=%v", got, err)
	}
}

func TestDeleteFreesNumberAndPhone(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := insertCard(t, s, "4000000000000002", 0)
	_ = s.InTx(ctx, func(tx repository.Tx) error { return tx.SetPhone(ctx, c.ID, "+79001234567") })

	err := s.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockCards(ctx, c.ID); err != nil {
			return err
		}
		return tx.DeleteCard(ctx, c.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCardByPhone(ctx, "+79001234567"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("phone index not cleared: %v", err)
	}
	insertCard(t, s, "4000000000000002", 0)
}

func TestDeleteDropsCardLock(t *testing.T) {
	s := New()
	ctx := context.Background()
	keep := insertCard(t, s, "4000000000000002", 0)
	gone := insertCard(t, s, "4000000000000010", 0)

	err := s.InTx(ctx, func(tx repository.Tx) error {
		_, err := tx.LockCards(ctx, keep.ID, gone.ID)
		return err
	})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if len(s.locks) != 2 {
		t.Fatalf("locks = %d, want 2", len(s.locks))
	}

	err = s.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockCards(ctx, gone.ID); err != nil {
			return err
		}
		return tx.DeleteCard(ctx, gone.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.locks[gone.ID]; ok {
		t.Fatal("lock entry for deleted card was kept")
	}
	if _, ok := s.locks[keep.ID]; !ok {
		t.Fatal("lock entry for live card was dropped")
	}

	err = s.InTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockCards(ctx, gone.ID)
		if err != nil {
			return err
		}
		if len(locked) != 0 {
			t.Errorf("deleted card still lockable: %+v", locked)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	if len(s.locks) != 1 {
		t.Fatalf("locks = %d after locking a missing card, want 1", len(s.locks))
	}
}

func TestListUsersSkipsAdmins(t *testing.T) {
	s := New()
	s.PutUser(models.User{ID: 2, Email: "b@example.com"})
	s.PutUser(models.User{ID: 1, Email: "a@example.com"})
	s.PutUser(models.User{ID: 3, Email: "root@example.com", IsAdmin: true})

	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].ID != 1 || users[1].ID != 2 {
		t.Fatalf("ListUsers = %+v", users)
	}
}
