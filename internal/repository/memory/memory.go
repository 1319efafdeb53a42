// Package memory is an in-process implementation of the ledger store.
//
// Cards carry their own mutex so transactions on disjoint cards run in
// parallel. Writes are staged on the transaction and applied under the store
// lock at commit, so readers never observe half of a transaction. It serves
// tests and single-process development; it is not shared between processes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	_ repository.Store     = (*Store)(nil)
	_ repository.UserStore = (*Store)(nil)
)

// Store holds cards, users and ledger records in memory.
type Store struct {
	mu          sync.RWMutex
	users       map[int64]models.User
	cards       map[int64]models.Card
	byNumber    map[string]int64
	byPhone     map[string]int64
	transfers   []models.Transfer
	adjustments []models.Adjustment
	locks       map[int64]*sync.Mutex

	nextCardID       int64
	nextTransferID   int64
	nextAdjustmentID int64

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[int64]models.User),
		cards:    make(map[int64]models.Card),
		byNumber: make(map[string]int64),
		byPhone:  make(map[string]int64),
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

// PutUser adds or replaces a user record. The identity store is external in
// production; tests and local runs seed it here.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

// ListUsers returns non-admin users ordered by id.
func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.User{}
	for _, u := range s.users {
		if !u.IsAdmin {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCardByID(_ context.Context, id int64) (models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok {
		return models.Card{}, repository.ErrNotFound
	}
	return copyCard(c), nil
}

func (s *Store) GetCardByNumber(_ context.Context, number string) (models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return models.Card{}, repository.ErrNotFound
	}
	return copyCard(s.cards[id]), nil
}

func (s *Store) GetCardByPhone(_ context.Context, phone string) (models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return models.Card{}, repository.ErrNotFound
	}
	return copyCard(s.cards[id]), nil
}

func (s *Store) ListCardsByUser(_ context.Context, userID int64) ([]models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Card{}
	for _, c := range s.cards {
		if c.UserID == userID {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListCardsWithOwners(_ context.Context) ([]models.CardWithOwner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.CardWithOwner{}
	for _, c := range s.cards {
		u, ok := s.users[c.UserID]
		if !ok {
			continue
		}
		out = append(out, models.CardWithOwner{
			Card:      copyCard(c),
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListTransfersByCard(_ context.Context, cardID int64) ([]models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Transfer{}
	for i := len(s.transfers) - 1; i >= 0; i-- {
		t := s.transfers[i]
		if t.FromCardID == cardID || t.ToCardID == cardID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Totals(_ context.Context) (models.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := models.LedgerTotals{Cards: len(s.cards), BalanceSum: decimal.Zero, AdjustmentSum: decimal.Zero}
	for _, c := range s.cards {
		t.BalanceSum = t.BalanceSum.Add(c.Balance)
		if c.Balance.IsNegative() {
			t.NegativeBalances++
		}
	}
	for _, a := range s.adjustments {
		t.AdjustmentSum = t.AdjustmentSum.Add(a.Amount)
	}
	return t, nil
}

// InTx stages fn's writes and applies them atomically if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	t := &tx{
		s:        s,
		held:     make(map[int64]*sync.Mutex),
		balances: make(map[int64]decimal.Decimal),
		phones:   make(map[int64]string),
		deleted:  make(map[int64]bool),
	}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) cardLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

type tx struct {
	s    *Store
	held map[int64]*sync.Mutex

	inserted    []*models.Card
	balances    map[int64]decimal.Decimal
	phones      map[int64]string
	deleted     map[int64]bool
	transfers   []*models.Transfer
	adjustments []*models.Adjustment
}

func (t *tx) LockCards(ctx context.Context, ids ...int64) (map[int64]models.Card, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		if _, ok := t.held[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l := t.s.cardLock(id)
		l.Lock()
		t.held[id] = l
	}

	out := make(map[int64]models.Card, len(ids))
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, id := range sorted {
		if t.deleted[id] {
			continue
		}
		c, ok := t.s.cards[id]
		if !ok {
			continue
		}
		c = copyCard(c)
		if b, ok := t.balances[id]; ok {
			c.Balance = b
		}
		if p, ok := t.phones[id]; ok {
			c.Phone = &p
		}
		out[id] = c
	}
	return out, nil
}

func (t *tx) InsertCard(_ context.Context, card *models.Card) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, taken := t.s.byNumber[card.CardNumber]; taken {
		return repository.ErrCardNumberTaken
	}
	for _, c := range t.inserted {
		if c.CardNumber == card.CardNumber {
			return repository.ErrCardNumberTaken
		}
	}
	t.s.nextCardID++
	card.ID = t.s.nextCardID
	card.CreatedAt = t.s.now().UTC()
	cp := copyCard(*card)
	t.inserted = append(t.inserted, &cp)
	return nil
}

func (t *tx) SetBalance(_ context.Context, cardID int64, balance decimal.Decimal) error {
	if !t.exists(cardID) {
		return repository.ErrNotFound
	}
	t.balances[cardID] = balance
	return nil
}

func (t *tx) SetPhone(_ context.Context, cardID int64, phone string) error {
	if !t.exists(cardID) {
		return repository.ErrNotFound
	}
	t.s.mu.RLock()
	owner, taken := t.s.byPhone[phone]
	t.s.mu.RUnlock()
	if taken && owner != cardID {
		return repository.ErrPhoneTaken
	}
	t.phones[cardID] = phone
	return nil
}

func (t *tx) DeleteCard(_ context.Context, cardID int64) error {
	if !t.exists(cardID) {
		return repository.ErrNotFound
	}
	t.deleted[cardID] = true
	return nil
}

func (t *tx) InsertTransfer(_ context.Context, tr *models.Transfer) error {
	t.s.mu.Lock()
	t.s.nextTransferID++
	tr.ID = t.s.nextTransferID
	tr.CreatedAt = t.s.now().UTC()
	t.s.mu.Unlock()
	cp := *tr
	t.transfers = append(t.transfers, &cp)
	return nil
}

func (t *tx) InsertAdjustment(_ context.Context, a *models.Adjustment) error {
	t.s.mu.Lock()
	t.s.nextAdjustmentID++
	a.ID = t.s.nextAdjustmentID
	a.CreatedAt = t.s.now().UTC()
	t.s.mu.Unlock()
	cp := *a
	t.adjustments = append(t.adjustments, &cp)
	return nil
}

// exists reports whether cardID is visible to this transaction. Cards inserted
// by the transaction itself are visible without a lock.
func (t *tx) exists(cardID int64) bool {
	if t.deleted[cardID] {
		return false
	}
	for _, c := range t.inserted {
		if c.ID == cardID {
			return true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.cards[cardID]
	return ok
}

// commit re-checks uniqueness against committed state, then applies every
// staged write under the store lock.
func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range t.inserted {
		if _, taken := s.byNumber[c.CardNumber]; taken {
			return repository.ErrCardNumberTaken
		}
	}
	for id, phone := range t.phones {
		if owner, taken := s.byPhone[phone]; taken && owner != id {
			return repository.ErrPhoneTaken
		}
	}

	for _, c := range t.inserted {
		s.cards[c.ID] = copyCard(*c)
		s.byNumber[c.CardNumber] = c.ID
	}
	for id, b := range t.balances {
		c, ok := s.cards[id]
		if !ok {
			continue
		}
		c.Balance = b
		s.cards[id] = c
	}
	for id, phone := range t.phones {
		c, ok := s.cards[id]
		if !ok {
			continue
		}
		if c.Phone != nil && *c.Phone != phone {
			delete(s.byPhone, *c.Phone)
		}
		p := phone
		c.Phone = &p
		s.cards[id] = c
		s.byPhone[phone] = id
	}
	for id := range t.deleted {
		c, ok := s.cards[id]
		if !ok {
			continue
		}
		delete(s.byNumber, c.CardNumber)
		if c.Phone != nil {
			delete(s.byPhone, *c.Phone)
		}
		delete(s.cards, id)
		// Waiters already hold the mutex pointer; ids are never reused.
		delete(s.locks, id)
	}
	for _, tr := range t.transfers {
		s.transfers = append(s.transfers, *tr)
	}
	for _, a := range t.adjustments {
		s.adjustments = append(s.adjustments, *a)
	}
	return nil
}

func (t *tx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
	// Locks taken on ids that name no card (unknown or rolled back) are dropped.
	t.s.mu.Lock()
	for id := range t.held {
		if _, ok := t.s.cards[id]; !ok {
			delete(t.s.locks, id)
		}
	}
	t.s.mu.Unlock()
	t.held = nil
}

func copyCard(c models.Card) models.Card {
	if c.Phone != nil {
		p := *c.Phone
		c.Phone = &p
	}
	return c
}
