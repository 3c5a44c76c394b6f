package alert

import (
	"context"
	"net/mail"

	"github.com/trezcool/alertify/core"
	"github.com/trezcool/alertify/core/user"
)

// Dispatcher makes one delivery attempt per recipient through the mail transport.
type Dispatcher struct {
	mailSvc core.EmailService
	from    mail.Address
}

func NewDispatcher(mailSvc core.EmailService, from mail.Address) *Dispatcher {
	return &Dispatcher{mailSvc: mailSvc, from: from}
}

// Send delivers one rendered alert to usr. Failures are returned as *DeliveryError.
func (d *Dispatcher) Send(ctx context.Context, alertID int, usr user.User, subject, text, htmlBody string) error {
	if !usr.HasEmail() {
		return &DeliveryError{AlertID: alertID, Recipient: usr, Err: ErrNoEmail}
	}
	from := d.from
	msg := &core.EmailMessage{
		From:        &from,
		To:          []mail.Address{usr.Address()},
		Subject:     subject,
		TextContent: text,
		HTMLContent: htmlBody,
	}
	if err := d.mailSvc.Send(ctx, msg); err != nil {
		return &DeliveryError{AlertID: alertID, Recipient: usr, Err: err}
	}
	return nil
}
