package emailsvc

import (
	"context"
	"crypto/tls"
	"net/mail"

	gomail "github.com/go-mail/mail/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/alertify/core"
)

// smtpSender is satisfied by *gomail.Dialer.
type smtpSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer     smtpSender
	from       mail.Address
	subjPrefix string
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(conf *core.Config) *smtpService {
	d := gomail.NewDialer(conf.Mail.SMTP.Host, conf.Mail.SMTP.Port, conf.Mail.SMTP.User, conf.Mail.SMTP.Password)
	d.StartTLSPolicy = gomail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         conf.Mail.SMTP.Host,
		InsecureSkipVerify: conf.Mail.SMTP.SkipTLSVerify,
	}
	return &smtpService{
		dialer:     d,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc *smtpService) prepare(msg core.EmailMessage) *gomail.Message {
	m := gomail.NewMessage()
	from := svc.from
	if msg.From != nil {
		from = *msg.From
	}
	m.SetAddressHeader("From", from.Address, from.Name)
	m.SetHeader("To", formatAddresses(m, msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", formatAddresses(m, msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", formatAddresses(m, msg.Bcc)...)
	}
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}
	return m
}

func formatAddresses(m *gomail.Message, addrs []mail.Address) []string {
	formatted := make([]string, 0, len(addrs))
	for _, a := range addrs {
		formatted = append(formatted, m.FormatAddress(a.Address, a.Name))
	}
	return formatted
}

func (svc *smtpService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return errors.New("email has no recipient or no content")
	}
	if err := svc.dialer.DialAndSend(svc.prepare(*msg)); err != nil {
		return errors.Wrap(err, "sending email")
	}
	return nil
}
