package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is the immutable record of a completed card-to-card transfer.
// Card ids are kept without a foreign key so records outlive deleted cards.
type Transfer struct {
	ID             int64           `json:"id"`
	FromCardID     int64           `json:"from_card_id"`
	ToCardID       int64           `json:"to_card_id"`
	FromCardNumber string          `json:"from_card_number"`
	ToCardNumber   string          `json:"to_card_number"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AdjustmentKind names how money entered or left the ledger
type AdjustmentKind string

const (
	AdjustmentIssue    AdjustmentKind = "issue"
	AdjustmentCredit   AdjustmentKind = "credit"
	AdjustmentWriteOff AdjustmentKind = "write_off"
)

// Adjustment records money entering (positive) or leaving (negative) the closed
// set of cards. Transfers never produce adjustments.
type Adjustment struct {
	ID        int64           `json:"id"`
	CardID    int64           `json:"card_id"`
	Kind      AdjustmentKind  `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// LedgerTotals is the aggregate view the auditor checks.
type LedgerTotals struct {
	Cards            int
	BalanceSum       decimal.Decimal
	AdjustmentSum    decimal.Decimal
	NegativeBalances int
}
