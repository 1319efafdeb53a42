package email

import (
	"errors"
	"io"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func notice() TransferNotice {
	return TransferNotice{
		To:             "anna@example.com",
		Name:           "Anna",
		Amount:         decimal.NewFromInt(300),
		FromCardNumber: "4000001111111111",
		ToCardNumber:   "4000002222222222",
		Balance:        decimal.NewFromInt(800),
		Description:    "rent",
		At:             time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestBuildTransferReceived(t *testing.T) {
	e := BuildTransferReceived("bank@example.com", notice())
	body := string(e.Text)
	for _, want := range []string{"Dear Anna", "**** 2222", "**** 1111", "300.00 RUB", "800.00 RUB", "Message: rent"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if e.To[0] != "anna@example.com" || e.From != "bank@example.com" {
		t.Fatalf("addresses = %v from %s", e.To, e.From)
	}
}

func TestSendTransferReceivedUsesConfiguredServer(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := NewSender(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: "2525", SenderEmail: "bank@example.com"}, log)

	var gotAddr string
	s.send = func(_ *email.Email, addr string, _ smtp.Auth) error {
		gotAddr = addr
		return nil
	}
	if err := s.SendTransferReceived(notice()); err != nil {
		t.Fatalf("SendTransferReceived: %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Fatalf("addr = %q", gotAddr)
	}

	s.send = func(*email.Email, string, smtp.Auth) error { return errors.New("refused") }
	if err := s.SendTransferReceived(notice()); err == nil {
		t.Fatal("expected send error")
	}
}
