package repository

import (
	"context"
	"errors"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCardNumberTaken indicates a card number collision on insert.
	ErrCardNumberTaken = errors.New("card number already exists")
	// ErrPhoneTaken indicates the phone is linked to another card.
	ErrPhoneTaken = errors.New("phone already linked to another card")
	// ErrTransient marks failures worth retrying: timeouts, lost connections,
	// serialization failures and deadlocks.
	ErrTransient = errors.New("transient storage failure")
)

// Store is the card ledger persistence boundary.
// Reads see committed state only; every mutation goes through InTx.
type Store interface {
	GetCardByID(ctx context.Context, id int64) (models.Card, error)
	GetCardByNumber(ctx context.Context, number string) (models.Card, error)
	GetCardByPhone(ctx context.Context, phone string) (models.Card, error)
	ListCardsByUser(ctx context.Context, userID int64) ([]models.Card, error)
	ListCardsWithOwners(ctx context.Context) ([]models.CardWithOwner, error)
	ListTransfersByCard(ctx context.Context, cardID int64) ([]models.Transfer, error)
	Totals(ctx context.Context) (models.LedgerTotals, error)

	// InTx runs fn in a single transaction. A non-nil error from fn rolls back
	// every write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of a transaction.
type Tx interface {
	// LockCards locks the given cards in ascending id order and returns them
	// keyed by id. Missing ids are absent from the map.
	LockCards(ctx context.Context, ids ...int64) (map[int64]models.Card, error)
	InsertCard(ctx context.Context, card *models.Card) error
	SetBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error
	SetPhone(ctx context.Context, cardID int64, phone string) error
	DeleteCard(ctx context.Context, cardID int64) error
	InsertTransfer(ctx context.Context, t *models.Transfer) error
	InsertAdjustment(ctx context.Context, a *models.Adjustment) error
}

// UserStore is the read-only view of the external identity store.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}
