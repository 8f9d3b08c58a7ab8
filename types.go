package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package. Arguments
// after msg are key value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Mailer delivers outgoing email
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// MailMessage is a single outgoing email
type MailMessage struct {
	To       string
	ToName   string
	Subject  string
	Text     string
	HTML     string
	Category string
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] AUTH " + formatLogLine(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] AUTH " + formatLogLine(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] AUTH " + formatLogLine(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] AUTH " + formatLogLine(msg, args...))
}

func formatLogLine(msg string, args ...any) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		sb.WriteByte(' ')
		if i+1 < len(args) {
			sb.WriteString(fmt.Sprintf("%v=%v", args[i], args[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf("%v", args[i]))
		}
	}
	return sb.String()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything, handy in tests
func NopLogger() Logger { return nopLogger{} }

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
