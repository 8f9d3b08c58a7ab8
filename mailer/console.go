package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	auth "github.com/savvyindians/go-lms-auth"
)

// Console writes mail to the logger instead of sending it
type Console struct {
	from       string
	subjPrefix string
	logger     auth.Logger

	mu   sync.Mutex
	sent []auth.MailMessage
}

var _ auth.Mailer = (*Console)(nil)

func NewConsole(appName, fromEmail string, logger auth.Logger) *Console {
	if logger == nil {
		logger = auth.NopLogger()
	}
	return &Console{
		from:       fromEmail,
		subjPrefix: "[" + appName + "] ",
		logger:     logger,
	}
}

func (c *Console) Send(ctx context.Context, msg auth.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", c.from)
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", c.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", msg.To)
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.Text)

	c.logger.Info("console email", "to", msg.To, "message", body.String())

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()

	return nil
}

// Sent returns a copy of every message handled so far
func (c *Console) Sent() []auth.MailMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.MailMessage, len(c.sent))
	copy(out, c.sent)
	return out
}
