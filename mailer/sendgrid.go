// Package mailer delivers auth mail through SendGrid, or prints it to
// the log when no API key is configured.
package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	auth "github.com/savvyindians/go-lms-auth"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// SendGrid sends mail with the v3 mail send API
type SendGrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     auth.Logger
	host       string
}

var _ auth.Mailer = (*SendGrid)(nil)

// NewSendGrid creates the mailer. appName prefixes every subject.
func NewSendGrid(key, appName, fromEmail string, logger auth.Logger) *SendGrid {
	if logger == nil {
		logger = auth.NopLogger()
	}
	return &SendGrid{
		key:        key,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
		logger:     logger,
		host:       host,
	}
}

// WithHost points the mailer at another API host
func (s *SendGrid) WithHost(h string) *SendGrid {
	if h != "" {
		s.host = h
	}
	return s
}

func (s *SendGrid) prepare(msg auth.MailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}

	return m
}

// Send posts msg to SendGrid. Non 2xx answers are errors.
func (s *SendGrid) Send(ctx context.Context, msg auth.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, endpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		s.logger.Error("sending email", "to", msg.To, "error", err)
		return fmt.Errorf("sendgrid: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("sending email", "to", msg.To, "status", res.StatusCode, "body", res.Body)
		return fmt.Errorf("sendgrid: unexpected status %d", res.StatusCode)
	}

	s.logger.Debug("email sent", "to", msg.To, "subject", msg.Subject, "status", res.StatusCode)
	return nil
}
