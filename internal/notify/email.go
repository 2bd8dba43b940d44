// Package notify delivers order confirmation emails. Delivery is strictly
// best-effort: callers run it post-commit and swallow every failure.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/go-faster/errors"

	"github.com/pasheon/boutique-backend/internal/domain/order"
)

var _ order.Notifier = (*EmailSender)(nil)

// SendFunc matches smtp.SendMail. Injectable so tests can capture the
// outgoing message without a live SMTP server.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender sends order confirmations over SMTP.
type EmailSender struct {
	addr string
	auth smtp.Auth
	from string
	send SendFunc
}

// NewEmailSender creates an EmailSender for the given SMTP endpoint.
// host is "host:port"; username/password select PLAIN auth, empty username
// disables auth (local relay).
func NewEmailSender(host, username, password, from string) *EmailSender {
	var auth smtp.Auth
	if username != "" {
		hostname := host
		if i := strings.IndexByte(host, ':'); i >= 0 {
			hostname = host[:i]
		}
		auth = smtp.PlainAuth("", username, password, hostname)
	}
	return &EmailSender{
		addr: host,
		auth: auth,
		from: from,
		send: smtp.SendMail,
	}
}

// OrderPlaced emails a human-readable confirmation to the customer.
func (s *EmailSender) OrderPlaced(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(s.from, o)
	if err := s.send(s.addr, s.auth, s.from, []string{o.Email}, msg); err != nil {
		return errors.Wrapf(err, "send confirmation for order %d", o.ID)
	}
	return nil
}

func buildMessage(from string, o *order.Order) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", o.Email)
	fmt.Fprintf(&b, "Subject: Order #%d confirmed\r\n", o.ID)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Hi %s,\r\n\r\nThanks for your order! Here is what you bought:\r\n\r\n", o.Name)
	for _, item := range o.Items {
		size := ""
		if item.Size != "" {
			size = " (" + item.Size + ")"
		}
		fmt.Fprintf(&b, "  - product %d%s x%d @ %s\r\n", item.ProductID, size, item.Quantity, item.Price.StringFixed(2))
	}
	fmt.Fprintf(&b, "\r\nTotal: %s\r\nPayment: %s\r\nShipping to: %s\r\n",
		o.TotalAmount.StringFixed(2), o.Payment, o.Address)

	return []byte(b.String())
}
