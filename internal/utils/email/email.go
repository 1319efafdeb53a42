package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/card-ledger/internal/config"
	"github.com/Dan9191/card-ledger/internal/utils"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransferNotice describes a transfer from the recipient's point of view
type TransferNotice struct {
	To             string
	Name           string
	Amount         decimal.Decimal
	FromCardNumber string
	ToCardNumber   string
	Balance        decimal.Decimal
	Description    string
	At             time.Time
}

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendTransferReceived tells a card owner that money arrived on their card
func (s *Sender) SendTransferReceived(n TransferNotice) error {
	e := BuildTransferReceived(s.cfg.SenderEmail, n)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send transfer notification to %s: %v", n.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", n.To, e.Subject)
	return nil
}

// BuildTransferReceived formats the notification without sending it
func BuildTransferReceived(from string, n TransferNotice) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{n.To}
	e.Subject = "Incoming Transfer Notification"

	body := fmt.Sprintf("Dear %s,\n\n", n.Name)
	body += fmt.Sprintf(
		"Your card %s has been credited with %s RUB from card %s.\n"+
			"Transaction time: %s\n"+
			"Current balance: %s RUB\n",
		utils.MaskCardNumber(n.ToCardNumber), n.Amount.StringFixed(2), utils.MaskCardNumber(n.FromCardNumber),
		n.At.Format("2006-01-02 15:04:05"), n.Balance.StringFixed(2),
	)
	if n.Description != "" {
		body += fmt.Sprintf("Message: %s\n", n.Description)
	}
	body += "\nBest regards,\nBank Service"
	e.Text = []byte(body)
	return e
}
