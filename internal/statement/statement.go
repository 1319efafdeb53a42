// Package statement renders a card's transfer history as an XML document.
package statement

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/Dan9191/card-ledger/internal/utils"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// ContentType is the media type of a rendered statement.
const ContentType = "application/xml; charset=utf-8"

// Build creates the statement document. Transfers are expected newest first,
// as the store returns them.
func Build(card models.Card, transfers []models.Transfer, generatedAt time.Time) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Statement")
	root.CreateAttr("generated", generatedAt.UTC().Format(time.RFC3339))

	c := root.CreateElement("Card")
	c.CreateAttr("id", strconv.FormatInt(card.ID, 10))
	c.CreateAttr("number", utils.MaskCardNumber(card.CardNumber))
	c.CreateAttr("holder", card.CardHolder)
	c.CreateAttr("balance", card.Balance.StringFixed(2))

	incoming, outgoing := decimal.Zero, decimal.Zero
	list := root.CreateElement("Transfers")
	list.CreateAttr("count", strconv.Itoa(len(transfers)))
	for _, t := range transfers {
		el := list.CreateElement("Transfer")
		el.CreateAttr("id", strconv.FormatInt(t.ID, 10))
		el.CreateAttr("date", t.CreatedAt.UTC().Format(time.RFC3339))
		el.CreateAttr("amount", t.Amount.StringFixed(2))
		if t.FromCardID == card.ID {
			el.CreateAttr("direction", "out")
			el.CreateAttr("counterparty", utils.MaskCardNumber(t.ToCardNumber))
			outgoing = outgoing.Add(t.Amount)
		} else {
			el.CreateAttr("direction", "in")
			el.CreateAttr("counterparty", utils.MaskCardNumber(t.FromCardNumber))
			incoming = incoming.Add(t.Amount)
		}
		if t.Description != "" {
			el.SetText(t.Description)
		}
	}

	totals := root.CreateElement("Totals")
	totals.CreateAttr("incoming", incoming.StringFixed(2))
	totals.CreateAttr("outgoing", outgoing.StringFixed(2))

	doc.Indent(2)
	return doc
}

// Write renders the statement to w.
func Write(w io.Writer, card models.Card, transfers []models.Transfer, generatedAt time.Time) error {
	if _, err := Build(card, transfers, generatedAt).WriteTo(w); err != nil {
		return fmt.Errorf("write statement: %w", err)
	}
	return nil
}
