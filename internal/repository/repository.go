package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Ensure Repository satisfies the store interfaces at compile time.
var (
	_ Store     = (*Repository)(nil)
	_ UserStore = (*Repository)(nil)
)

const cardColumns = `id, user_id, card_number, card_holder, balance, phone, created_at`

// Repository provides Postgres-backed card ledger storage
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetCardByID retrieves a card by id
func (r *Repository) GetCardByID(ctx context.Context, id int64) (models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM bank.cards WHERE id = $1`, id)
	return scanCard(row)
}

// GetCardByNumber retrieves a card by its canonical number
func (r *Repository) GetCardByNumber(ctx context.Context, number string) (models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM bank.cards WHERE card_number = $1`, number)
	return scanCard(row)
}

// GetCardByPhone retrieves the card linked to a phone
func (r *Repository) GetCardByPhone(ctx context.Context, phone string) (models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM bank.cards WHERE phone = $1`, phone)
	return scanCard(row)
}

// ListCardsByUser returns a user's cards, oldest first
func (r *Repository) ListCardsByUser(ctx context.Context, userID int64) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM bank.cards WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, wrapErr("failed to list cards", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list cards", err)
	}
	return cards, nil
}

// ListCardsWithOwners returns every card joined with its owner
func (r *Repository) ListCardsWithOwners(ctx context.Context) ([]models.CardWithOwner, error) {
	const query = `
		SELECT c.id, c.user_id, c.card_number, c.card_holder, c.balance, c.phone, c.created_at,
		       u.first_name, u.last_name, u.email
		FROM bank.cards c
		JOIN bank.users u ON c.user_id = u.id
		ORDER BY c.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapErr("failed to list cards", err)
	}
	defer rows.Close()

	cards := []models.CardWithOwner{}
	for rows.Next() {
		var c models.CardWithOwner
		var phone sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.CardNumber, &c.CardHolder, &c.Balance, &phone, &c.CreatedAt,
			&c.FirstName, &c.LastName, &c.Email); err != nil {
			return nil, wrapErr("failed to scan card", err)
		}
		c.Phone = nullToPtr(phone)
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list cards", err)
	}
	return cards, nil
}

// ListTransfersByCard returns transfers sent or received by a card, newest first
func (r *Repository) ListTransfersByCard(ctx context.Context, cardID int64) ([]models.Transfer, error) {
	const query = `
		SELECT id, from_card_id, to_card_id, from_card_number, to_card_number, amount, description, created_at
		FROM bank.transfers
		WHERE from_card_id = $1 OR to_card_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, wrapErr("failed to list transfers", err)
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.FromCardID, &t.ToCardID, &t.FromCardNumber, &t.ToCardNumber,
			&t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, wrapErr("failed to scan transfer", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list transfers", err)
	}
	return transfers, nil
}

// Totals aggregates balances and adjustments from a single snapshot
func (r *Repository) Totals(ctx context.Context) (models.LedgerTotals, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM bank.cards),
			(SELECT COALESCE(SUM(balance), 0) FROM bank.cards),
			(SELECT COALESCE(SUM(amount), 0) FROM bank.adjustments),
			(SELECT COUNT(*) FROM bank.cards WHERE balance < 0)`
	var t models.LedgerTotals
	err := r.db.QueryRowContext(ctx, query).Scan(&t.Cards, &t.BalanceSum, &t.AdjustmentSum, &t.NegativeBalances)
	if err != nil {
		return models.LedgerTotals{}, wrapErr("failed to compute totals", err)
	}
	return t, nil
}

// GetUser retrieves a user from the identity tables
func (r *Repository) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, is_admin FROM bank.users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, wrapErr("failed to find user", err)
	}
	return u, nil
}

// ListUsers returns customer (non-admin) users
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, first_name, last_name, is_admin FROM bank.users WHERE is_admin = FALSE ORDER BY id`)
	if err != nil {
		return nil, wrapErr("failed to list users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin); err != nil {
			return nil, wrapErr("failed to scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list users", err)
	}
	return users, nil
}

// InTx runs fn inside a READ COMMITTED transaction; row locks taken through
// LockCards provide the isolation transfers need.
func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("failed to begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	committed = true
	if err := sqlTx.Commit(); err != nil {
		return wrapErr("failed to commit transaction", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockCards(ctx context.Context, ids ...int64) (map[int64]models.Card, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM bank.cards WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, wrapErr("failed to lock cards", err)
	}
	defer rows.Close()

	cards := make(map[int64]models.Card, len(ids))
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards[card.ID] = card
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to lock cards", err)
	}
	return cards, nil
}

func (t *pgTx) InsertCard(ctx context.Context, card *models.Card) error {
	const query = `
		INSERT INTO bank.cards (user_id, card_number, card_holder, balance, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query, card.UserID, card.CardNumber, card.CardHolder, card.Balance).
		Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		return wrapErr("failed to create card", err)
	}
	return nil
}

func (t *pgTx) SetBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error {
	return t.execOne(ctx, "failed to update balance",
		`UPDATE bank.cards SET balance = $2 WHERE id = $1`, cardID, balance)
}

func (t *pgTx) SetPhone(ctx context.Context, cardID int64, phone string) error {
	return t.execOne(ctx, "failed to link phone",
		`UPDATE bank.cards SET phone = $2 WHERE id = $1`, cardID, phone)
}

func (t *pgTx) DeleteCard(ctx context.Context, cardID int64) error {
	return t.execOne(ctx, "failed to delete card", `DELETE FROM bank.cards WHERE id = $1`, cardID)
}

func (t *pgTx) InsertTransfer(ctx context.Context, tr *models.Transfer) error {
	const query = `
		INSERT INTO bank.transfers (from_card_id, to_card_id, from_card_number, to_card_number, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query, tr.FromCardID, tr.ToCardID, tr.FromCardNumber, tr.ToCardNumber,
		tr.Amount, tr.Description).Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return wrapErr("failed to record transfer", err)
	}
	return nil
}

func (t *pgTx) InsertAdjustment(ctx context.Context, a *models.Adjustment) error {
	const query = `
		INSERT INTO bank.adjustments (card_id, kind, amount, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := t.tx.QueryRowContext(ctx, query, a.CardID, string(a.Kind), a.Amount).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return wrapErr("failed to record adjustment", err)
	}
	return nil
}

func (t *pgTx) execOne(ctx context.Context, msg, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(msg, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(msg, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (models.Card, error) {
	var card models.Card
	var phone sql.NullString
	err := row.Scan(&card.ID, &card.UserID, &card.CardNumber, &card.CardHolder, &card.Balance, &phone, &card.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Card{}, ErrNotFound
	}
	if err != nil {
		return models.Card{}, wrapErr("failed to scan card", err)
	}
	card.Phone = nullToPtr(phone)
	return card, nil
}

func nullToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// wrapErr attaches context to err and tags it with the matching sentinel.
func wrapErr(msg string, err error) error {
	if kind := classify(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", msg, kind, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return ErrTransient
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch {
	case pqErr.Code == "23505" && pqErr.Constraint == "cards_card_number_key":
		return ErrCardNumberTaken
	case pqErr.Code == "23505" && pqErr.Constraint == "cards_phone_key":
		return ErrPhoneTaken
	case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "57014", pqErr.Code.Class() == "08":
		return ErrTransient
	}
	return nil
}
