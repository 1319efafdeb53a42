package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Clients read balances and amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Card represents a bank card and its balance
type Card struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	CardNumber string          `json:"card_number"`
	CardHolder string          `json:"card_holder"`
	Balance    decimal.Decimal `json:"balance"`
	Phone      *string         `json:"phone"`
	CreatedAt  time.Time       `json:"created_at"`
}

// HasPhone reports whether a phone number is linked to the card.
func (c Card) HasPhone() bool {
	return c.Phone != nil && *c.Phone != ""
}

// CardWithOwner is a card joined with its owner's public fields
type CardWithOwner struct {
	Card
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
