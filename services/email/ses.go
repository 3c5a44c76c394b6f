package emailsvc

import (
	"context"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/pkg/errors"

	"github.com/trezcool/alertify/core"
)

// sesAPI is the part of *ses.Client used to send emails.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type sesService struct {
	client     sesAPI
	from       mail.Address
	subjPrefix string
}

var _ core.EmailService = (*sesService)(nil)

// NewSESService loads the AWS credentials from the default chain.
func NewSESService(ctx context.Context, conf *core.Config) (*sesService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.Mail.SESRegion))
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return &sesService{
		client:     ses.NewFromConfig(cfg),
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
	}, nil
}

func (svc *sesService) prepare(msg core.EmailMessage) *ses.SendEmailInput {
	from := svc.from
	if msg.From != nil {
		from = *msg.From
	}
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")},
	}
	if msg.HTMLContent != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
	}
	return &ses.SendEmailInput{
		Source: aws.String(from.String()),
		Destination: &types.Destination{
			ToAddresses:  core.AddressList(msg.To),
			CcAddresses:  core.AddressList(msg.Cc),
			BccAddresses: core.AddressList(msg.Bcc),
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(svc.subjPrefix + msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
	}
}

func (svc *sesService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if !msg.HasRecipients() || !msg.HasContent() {
		return errors.New("email has no recipient or no content")
	}
	if _, err := svc.client.SendEmail(ctx, svc.prepare(*msg)); err != nil {
		return errors.Wrap(err, "sending email")
	}
	return nil
}
