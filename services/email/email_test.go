package emailsvc

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	gomail "github.com/go-mail/mail/v2"
	"github.com/sendgrid/rest"

	"github.com/trezcool/alertify/core"
)

var conf = &core.Config{
	AppName: "Alertify",
	Mail:    core.MailConfig{From: "Support <support@lms.test>", SendgridApiKey: "key"},
}

func newMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:          []mail.Address{{Name: "Ada Lovelace", Address: "ada@test.test"}},
		Subject:     "Course not completed yet",
		TextContent: "Hello Ada",
		HTMLContent: "<p>Hello Ada</p>",
	}
}

func TestConsoleServiceMock_Send(t *testing.T) {
	svc := NewConsoleServiceMock(conf)
	svc.Fail = func(msg core.EmailMessage) error {
		if msg.To[0].Address == "fail@test.test" {
			return errors.New("mailbox unavailable")
		}
		return nil
	}

	tests := []struct {
		name    string
		msg     *core.EmailMessage
		wantErr bool
	}{
		{name: "sent", msg: newMessage()},
		{name: "no recipients", msg: &core.EmailMessage{TextContent: "hi"}, wantErr: true},
		{name: "no content", msg: &core.EmailMessage{To: newMessage().To}, wantErr: true},
		{
			name:    "failing recipient",
			msg:     &core.EmailMessage{To: []mail.Address{{Address: "fail@test.test"}}, TextContent: "hi"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Send(context.Background(), tt.msg); (err != nil) != tt.wantErr {
				t.Errorf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if got := len(svc.SentMessages()); got != 1 {
		t.Errorf("len(SentMessages()) = %d, want 1", got)
	}
	svc.Reset()
	if got := len(svc.SentMessages()); got != 0 {
		t.Errorf("len(SentMessages()) after Reset() = %d, want 0", got)
	}
}

func TestConsoleService_format(t *testing.T) {
	svc := &consoleService{defaultFromEmail: conf.DefaultFromEmail(), subjPrefix: "[Alertify] "}
	body, err := svc.format(*newMessage())
	if err != nil {
		t.Fatalf("format() failed: %v", err)
	}
	for _, want := range []string{
		`From: "Support" <support@lms.test>`,
		"Subject: [Alertify] Course not completed yet",
		`To: "Ada Lovelace" <ada@test.test>`,
		"Hello Ada",
		"<p>Hello Ada</p>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("format() missing %q in:\n%s", want, body)
		}
	}
}

func TestSendgridService_Send(t *testing.T) {
	svc := NewSendgridService(conf)
	orig := sendgridAPIFunc
	defer func() { sendgridAPIFunc = orig }()

	tests := []struct {
		name    string
		status  int
		apiErr  error
		wantErr bool
	}{
		{name: "accepted", status: http.StatusAccepted},
		{name: "rejected", status: http.StatusBadRequest, wantErr: true},
		{name: "transport error", apiErr: errors.New("connection reset"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq rest.Request
			sendgridAPIFunc = func(ctx context.Context, req rest.Request) (*rest.Response, error) {
				gotReq = req
				if tt.apiErr != nil {
					return nil, tt.apiErr
				}
				return &rest.Response{StatusCode: tt.status}, nil
			}
			if err := svc.Send(context.Background(), newMessage()); (err != nil) != tt.wantErr {
				t.Errorf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotReq.Method != http.MethodPost || !strings.Contains(string(gotReq.Body), "ada@test.test") {
				t.Errorf("unexpected request: %s %s", gotReq.Method, gotReq.Body)
			}
		})
	}
}

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestSMTPService_Send(t *testing.T) {
	d := &fakeDialer{}
	svc := NewSMTPService(conf)
	svc.dialer = d

	if err := svc.Send(context.Background(), newMessage()); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	if len(d.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(d.sent))
	}
	if got := d.sent[0].GetHeader("Subject"); len(got) != 1 || got[0] != "[Alertify] Course not completed yet" {
		t.Errorf("Subject = %v", got)
	}

	d.err = errors.New("535 authentication failed")
	if err := svc.Send(context.Background(), newMessage()); err == nil {
		t.Error("Send() expected an error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Send(ctx, newMessage()); !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want %v", err, context.Canceled)
	}
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	return &ses.SendEmailOutput{}, nil
}

func TestSESService_Send(t *testing.T) {
	client := &fakeSES{}
	svc := &sesService{client: client, from: conf.DefaultFromEmail(), subjPrefix: "[Alertify] "}

	if err := svc.Send(context.Background(), newMessage()); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	in := client.input
	if got := in.Destination.ToAddresses; len(got) != 1 || got[0] != "ada@test.test" {
		t.Errorf("ToAddresses = %v", got)
	}
	if *in.Message.Body.Html.Data != "<p>Hello Ada</p>" || *in.Message.Body.Text.Data != "Hello Ada" {
		t.Errorf("unexpected body: %+v", in.Message.Body)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		debug   bool
		wantErr bool
	}{
		{name: "debug forces console", backend: "sendgrid", debug: true},
		{name: "console", backend: "console"},
		{name: "sendgrid", backend: "sendgrid"},
		{name: "smtp", backend: "smtp"},
		{name: "unknown", backend: "pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *conf
			c.Debug = tt.debug
			c.Mail.Backend = tt.backend
			svc, err := New(context.Background(), &c, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && svc == nil {
				t.Error("New() returned a nil service")
			}
		})
	}
}
