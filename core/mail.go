package core

import (
	"context"
	"net/mail"
	"strings"
)

type (
	EmailMessage struct {
		From        *mail.Address // transport default sender when nil
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// Send makes a single delivery attempt for msg.
		Send(ctx context.Context, msg *EmailMessage) error
	}
)

func (msg EmailMessage) HasRecipients() bool {
	return len(msg.To) > 0 || len(msg.Cc) > 0 || len(msg.Bcc) > 0
}

func (msg EmailMessage) HasContent() bool {
	return strings.TrimSpace(msg.TextContent) != "" || strings.TrimSpace(msg.HTMLContent) != ""
}

// JoinAddresses formats addrs for a mail header.
func JoinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// AddressList returns the bare addresses of addrs.
func AddressList(addrs []mail.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.Address)
	}
	return list
}
