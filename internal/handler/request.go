package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/shopspring/decimal"
)

// POST /cards actions.
const (
	actionCreateCard = "create_card"
	actionAddBalance = "add_balance"
	actionTransfer   = "transfer"
	actionLinkPhone  = "link_phone"
	actionDeleteCard = "delete_card"
)

// GET /cards actions.
const (
	actionAllCards  = "all_cards"
	actionListUsers = "list_users"
)

type createCardRequest struct {
	Action         string           `json:"action"`
	UserID         int64            `json:"user_id"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

func (r *createCardRequest) validate() error {
	if r.UserID <= 0 {
		return invalid("user_id is required")
	}
	return nil
}

func (r *createCardRequest) initialBalance() decimal.Decimal {
	if r.InitialBalance == nil {
		return decimal.Zero
	}
	return *r.InitialBalance
}

type addBalanceRequest struct {
	Action     string           `json:"action"`
	CardNumber string           `json:"card_number"`
	Amount     *decimal.Decimal `json:"amount"`
}

func (r *addBalanceRequest) validate() error {
	if strings.TrimSpace(r.CardNumber) == "" {
		return invalid("card_number is required")
	}
	if r.Amount == nil {
		return invalid("amount is required")
	}
	return nil
}

type transferRequest struct {
	Action         string           `json:"action"`
	FromCardNumber string           `json:"from_card_number"`
	ToIdentifier   string           `json:"to_identifier"`
	ToCardNumber   string           `json:"to_card_number"`
	Amount         *decimal.Decimal `json:"amount"`
	Description    string           `json:"description"`
}

func (r *transferRequest) validate() error {
	if strings.TrimSpace(r.FromCardNumber) == "" {
		return invalid("from_card_number is required")
	}
	to, legacy := strings.TrimSpace(r.ToIdentifier), strings.TrimSpace(r.ToCardNumber)
	switch {
	case to == "" && legacy == "":
		return invalid("to_identifier is required")
	case to != "" && legacy != "" && to != legacy:
		return invalid("to_identifier and to_card_number disagree")
	}
	if r.Amount == nil {
		return invalid("amount is required")
	}
	return nil
}

// recipient returns to_identifier, falling back to the older to_card_number field.
func (r *transferRequest) recipient() string {
	if to := strings.TrimSpace(r.ToIdentifier); to != "" {
		return to
	}
	return strings.TrimSpace(r.ToCardNumber)
}

type linkPhoneRequest struct {
	Action string `json:"action"`
	CardID int64  `json:"card_id"`
	Phone  string `json:"phone"`
}

func (r *linkPhoneRequest) validate() error {
	if r.CardID <= 0 {
		return invalid("card_id is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return invalid("phone is required")
	}
	return nil
}

type deleteCardRequest struct {
	Action string `json:"action"`
	CardID int64  `json:"card_id"`
}

func (r *deleteCardRequest) validate() error {
	if r.CardID <= 0 {
		return invalid("card_id is required")
	}
	return nil
}

type validator interface {
	validate() error
}

func invalid(msg string) error {
	return errs.New(errs.CodeInvalidRequest, msg)
}

// readAction reads the body and returns it together with its action field.
func readAction(body io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", invalid("request body too large")
		}
		return nil, "", errs.Wrap(errs.CodeInvalidRequest, "could not read request body", err)
	}
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, "", errs.Wrap(errs.CodeInvalidRequest, "invalid JSON payload", err)
	}
	if envelope.Action == "" {
		return nil, "", invalid("action is required")
	}
	return data, envelope.Action, nil
}

// decodeStrict decodes data into v rejecting unknown fields and trailing data,
// then validates it.
func decodeStrict(data []byte, v validator) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.CodeInvalidRequest, fmt.Sprintf("invalid request: %s", cleanJSONError(err)), err)
	}
	if dec.More() {
		return invalid("invalid request: unexpected data after JSON object")
	}
	return v.validate()
}

func cleanJSONError(err error) string {
	return strings.TrimPrefix(err.Error(), "json: ")
}
