package emailsvc

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/trezcool/alertify/core"
)

// New returns the transport selected by conf.Mail.Backend.
// Debug mode always prints to the console.
func New(ctx context.Context, conf *core.Config, out *log.Logger) (core.EmailService, error) {
	if conf.Debug {
		return NewConsoleService(conf, out), nil
	}
	switch conf.Mail.Backend {
	case "", "console":
		return NewConsoleService(conf, out), nil
	case "sendgrid":
		return NewSendgridService(conf), nil
	case "smtp":
		return NewSMTPService(conf), nil
	case "ses":
		svc, err := NewSESService(ctx, conf)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, errors.Errorf("unknown mail backend %q", conf.Mail.Backend)
	}
}
