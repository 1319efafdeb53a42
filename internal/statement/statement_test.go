package statement

import (
	"bytes"
	"testing"
	"time"

	"github.com/Dan9191/card-ledger/internal/models"
	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

func TestWriteStatement(t *testing.T) {
	card := models.Card{ID: 1, CardNumber: "4000001111111111", CardHolder: "ANNA IVANOVA", Balance: decimal.NewFromInt(700)}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	transfers := []models.Transfer{
		{ID: 2, FromCardID: 3, ToCardID: 1, FromCardNumber: "4000003333333333", ToCardNumber: card.CardNumber,
			Amount: decimal.NewFromInt(50), CreatedAt: at},
		{ID: 1, FromCardID: 1, ToCardID: 2, FromCardNumber: card.CardNumber, ToCardNumber: "4000002222222222",
			Amount: decimal.NewFromInt(300), Description: "rent & bills", CreatedAt: at.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	if err := Write(&buf, card, transfers, at); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(buf.Bytes()); err != nil {
		t.Fatalf("statement is not valid XML: %v\n%s", err, buf.String())
	}
	cardEl := doc.FindElement("//Card")
	if cardEl == nil || cardEl.SelectAttrValue("number", "") != "**** 1111" {
		t.Fatalf("card element missing or unmasked:\n%s", buf.String())
	}
	items := doc.FindElements("//Transfers/Transfer")
	if len(items) != 2 {
		t.Fatalf("got %d transfers", len(items))
	}
	if items[0].SelectAttrValue("direction", "") != "in" || items[1].SelectAttrValue("direction", "") != "out" {
		t.Fatal("directions not derived from the card's side of the transfer")
	}
	if items[1].Text() != "rent & bills" {
		t.Fatalf("description = %q", items[1].Text())
	}
	totals := doc.FindElement("//Totals")
	if totals.SelectAttrValue("incoming", "") != "50.00" || totals.SelectAttrValue("outgoing", "") != "300.00" {
		t.Fatalf("totals = %s/%s", totals.SelectAttrValue("incoming", ""), totals.SelectAttrValue("outgoing", ""))
	}
}
