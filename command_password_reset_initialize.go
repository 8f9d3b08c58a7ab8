package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// InitializePasswordResetMessage asks for a reset link to be mailed
type InitializePasswordResetMessage struct {
	Email string `json:"email"`
	// ResetURL builds the absolute link for a uid and token pair
	ResetURL   func(uid, token string) string         `json:"-"`
	OnResponse func(*InitializePasswordResetResponse) `json:"-"`
}

func (e InitializePasswordResetMessage) Type() string { return "user.password_reset.initialize" }

func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

// InitializePasswordResetResponse never tells the caller whether the
// email matched an account
type InitializePasswordResetResponse struct {
	Email string
}

// InitializePasswordResetHandler mails reset links to active users
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *ResetTokenGenerator
	mailer   Mailer
	logger   Logger
	activity ActivitySink
}

// NewInitializePasswordResetHandler creates the handler
func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *ResetTokenGenerator, mailer Mailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	event.Email = strings.TrimSpace(event.Email)
	if err := event.Validate(); err != nil {
		return NewValidationError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &InitializePasswordResetResponse{Email: event.Email}
	defer func() {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
	}()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if IsNotFound(err) {
			h.logger.Info("password reset requested for unknown email")
			return nil
		}
		return errStorage(err, "failed to retrieve user for password reset")
	}

	if !user.IsActive {
		h.logger.Info("password reset requested for inactive account", "user_id", user.ID.String())
		return nil
	}

	uid := EncodeUID(user.ID)
	token := h.tokens.Make(user)

	link := "/reset/" + uid + "/" + token + "/"
	if event.ResetURL != nil {
		link = event.ResetURL(uid, token)
	}

	msg := MailMessage{
		To:       user.Email,
		ToName:   user.FullName(),
		Subject:  "Password reset",
		Text:     passwordResetText(user, link),
		Category: "password_reset",
	}

	if h.mailer == nil {
		h.logger.Warn("no mailer configured, reset link not sent", "user_id", user.ID.String())
	} else if err := h.mailer.Send(ctx, msg); err != nil {
		// the response must not reveal which emails exist
		h.logger.Error("failed to send password reset email", "user_id", user.ID.String(), "error", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEventPasswordResetRequest, user.ID.String(), nil)

	return nil
}

func passwordResetText(user *User, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", user.FullName())
	b.WriteString("You're receiving this email because you requested a password reset for your user account.\n\n")
	b.WriteString("Please go to the following page and choose a new password:\n\n")
	b.WriteString(link + "\n\n")
	fmt.Fprintf(&b, "Your username, in case you've forgotten: %s\n\n", user.Username)
	b.WriteString("If you did not request this, you can ignore this email.\n")
	return b.String()
}
