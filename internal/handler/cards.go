package handler

import (
	"net/http"
	"strconv"

	"github.com/Dan9191/card-ledger/internal/errs"
	"github.com/Dan9191/card-ledger/internal/service"
	"github.com/Dan9191/card-ledger/internal/statement"
	"github.com/gorilla/mux"
)

// PostCards dispatches the mutating card actions on the body's action field.
func (h *Handler) PostCards(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	data, action, err := readAction(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	ctx := r.Context()

	switch action {
	case actionCreateCard:
		var req createCardRequest
		if err := decodeStrict(data, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		card, err := h.gw.CreateCard(ctx, p, req.UserID, req.initialBalance())
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, card)

	case actionAddBalance:
		var req addBalanceRequest
		if err := decodeStrict(data, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		card, err := h.gw.AddBalance(ctx, p, req.CardNumber, *req.Amount)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, card)

	case actionTransfer:
		var req transferRequest
		if err := decodeStrict(data, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		transfer, err := h.gw.Transfer(ctx, p, service.TransferInput{
			FromCardNumber: req.FromCardNumber,
			ToIdentifier:   req.recipient(),
			Amount:         *req.Amount,
			Description:    req.Description,
		})
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, transfer)

	case actionLinkPhone:
		var req linkPhoneRequest
		if err := decodeStrict(data, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		card, err := h.gw.LinkPhone(ctx, p, req.CardID, req.Phone)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, card)

	case actionDeleteCard:
		var req deleteCardRequest
		if err := decodeStrict(data, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
		if err := h.gw.DeleteCard(ctx, p, req.CardID); err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		h.respondError(w, r, invalid("unknown action "+strconv.Quote(action)))
	}
}

// GetCards serves the read actions: all_cards, list_users and cards by user_id.
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	switch action := q.Get("action"); action {
	case actionAllCards:
		cards, err := h.gw.AllCards(r.Context(), p)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, cards)

	case actionListUsers:
		h.ListUsers(w, r)

	case "":
		raw := q.Get("user_id")
		if raw == "" {
			h.respondError(w, r, invalid("user_id or action is required"))
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			h.respondError(w, r, invalid("user_id must be a positive integer"))
			return
		}
		cards, err := h.gw.CardsByUser(r.Context(), p, userID)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.respondJSON(w, http.StatusOK, cards)

	default:
		h.respondError(w, r, invalid("unknown action "+strconv.Quote(action)))
	}
}

// ListUsers returns non-admin users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	users, err := h.gw.ListUsers(r.Context(), p)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}

// TransferHistory lists the transfers of the card in the path, newest first.
func (h *Handler) TransferHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, err := cardIDFromPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	transfers, err := h.gw.TransferHistory(r.Context(), p, cardID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, transfers)
}

// Statement renders the card's history as an XML statement.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	cardID, err := cardIDFromPath(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	card, transfers, err := h.gw.Statement(r.Context(), p, cardID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", statement.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="statement-`+strconv.FormatInt(card.ID, 10)+`.xml"`)
	w.WriteHeader(http.StatusOK)
	if err := statement.Write(w, card, transfers, h.now()); err != nil {
		h.log.WithError(err).WithField("card_id", card.ID).Error("Failed to write statement")
	}
}

func cardIDFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.New(errs.CodeInvalidRequest, "invalid card id")
	}
	return id, nil
}
