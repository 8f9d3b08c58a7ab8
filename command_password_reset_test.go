package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordResetMailsActiveUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{
		Username:  "user_grace",
		Email:     "Grace@Example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Role:      auth.RoleLecturer,
		IsActive:  true,
	})
	tokens := auth.NewResetTokenGenerator(testSecret, time.Hour)

	var sent auth.MailMessage
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.AnythingOfType("auth.MailMessage")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(auth.MailMessage) }).
		Return(nil).Once()

	sink := &activityRecorder{}
	err := auth.NewInitializePasswordResetHandler(repo, tokens, mailer).
		WithLogger(auth.NopLogger()).
		WithActivitySink(sink).
		Execute(ctx, auth.InitializePasswordResetMessage{
			Email: "grace@example.com",
			ResetURL: func(uid, token string) string {
				return "https://lms.example.com/reset/" + uid + "/" + token + "/"
			},
		})
	require.NoError(t, err)
	mailer.AssertExpectations(t)

	assert.Equal(t, "Grace@Example.com", sent.To)
	assert.Equal(t, "Grace Hopper", sent.ToName)
	assert.Equal(t, "password_reset", sent.Category)

	prefix := "https://lms.example.com/reset/" + auth.EncodeUID(user.ID) + "/"
	var token string
	for _, field := range strings.Fields(sent.Text) {
		if strings.HasPrefix(field, prefix) {
			token = strings.TrimSuffix(strings.TrimPrefix(field, prefix), "/")
		}
	}
	require.NotEmpty(t, token, "mail must carry the reset link")
	assert.NoError(t, tokens.Check(user, token))
	assert.Contains(t, sent.Text, "user_grace")

	assert.Equal(t, auth.ActivityEventPasswordResetRequest, sink.last().EventType)
}

func TestInitializePasswordResetIsSilent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertUser(t, repo, &auth.User{Username: "user_off", Email: "off@example.com", Role: auth.RoleLecturer, IsActive: false})
	insertUser(t, repo, &auth.User{Username: "user_on", Email: "on@example.com", Role: auth.RoleLecturer, IsActive: true})

	tests := []struct {
		name  string
		email string
		mail  bool
		err   error
	}{
		{name: "unknown email", email: "nobody@example.com"},
		{name: "inactive account", email: "off@example.com"},
		{name: "mailer failure", email: "on@example.com", mail: true, err: errors.New("smtp down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MockMailer)
			if tt.mail {
				mailer.On("Send", mock.Anything, mock.Anything).Return(tt.err).Once()
			}

			var resp *auth.InitializePasswordResetResponse
			err := auth.NewInitializePasswordResetHandler(repo, auth.NewResetTokenGenerator(testSecret, 0), mailer).
				WithLogger(auth.NopLogger()).
				Execute(ctx, auth.InitializePasswordResetMessage{
					Email:      tt.email,
					OnResponse: func(r *auth.InitializePasswordResetResponse) { resp = r },
				})
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.email, resp.Email)
			mailer.AssertExpectations(t)
		})
	}
}

func TestInitializePasswordResetValidatesEmail(t *testing.T) {
	repo := newTestRepo(t)

	err := auth.NewInitializePasswordResetHandler(repo, auth.NewResetTokenGenerator(testSecret, 0), nil).
		WithLogger(auth.NopLogger()).
		Execute(context.Background(), auth.InitializePasswordResetMessage{Email: "nope"})
	assert.Equal(t, auth.TextCodeValidation, auth.TextCodeOf(err))
	assert.Contains(t, auth.ValidationFields(err), "email")
}

func TestFinalizePasswordReset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_reset", Email: "reset@example.com", Role: auth.RoleLecturer, IsActive: true})
	tokens := auth.NewResetTokenGenerator(testSecret, time.Hour)
	uid, token := auth.EncodeUID(user.ID), tokens.Make(user)

	revoker := new(MockSessionRevoker)
	revoker.On("RevokeAll", mock.Anything, user.ID).Return(nil).Once()

	sink := &activityRecorder{}
	handler := auth.NewFinalizePasswordResetHandler(repo, tokens, testHasher).
		WithLogger(auth.NopLogger()).
		WithSessionRevoker(revoker).
		WithActivitySink(sink)

	checked, err := handler.CheckToken(ctx, uid, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, checked.ID)

	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		UID:       uid,
		Token:     token,
		Password1: "brand-new-secret",
		Password2: "brand-new-secret",
	})
	require.NoError(t, err)
	revoker.AssertExpectations(t)
	assert.Equal(t, auth.ActivityEventPasswordResetSuccess, sink.last().EventType)

	_, err = auth.NewAuthenticator(repo, testHasher).WithLogger(auth.NopLogger()).
		Authenticate(ctx, "reset@example.com", "brand-new-secret", auth.LecturerLogin)
	require.NoError(t, err)

	// the same link can not be used twice
	err = handler.Execute(ctx, auth.FinalizePasswordResetMessage{
		UID:       uid,
		Token:     token,
		Password1: "another-new-secret",
		Password2: "another-new-secret",
	})
	assert.Equal(t, auth.TextCodeTokenMismatch, auth.TextCodeOf(err))
}

func TestFinalizePasswordResetRejectsBadInput(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_reset", Email: "reset@example.com", Role: auth.RoleLecturer, IsActive: true})
	tokens := auth.NewResetTokenGenerator(testSecret, time.Hour)
	uid, token := auth.EncodeUID(user.ID), tokens.Make(user)

	other := insertUser(t, repo, &auth.User{Username: "user_other", Email: "other@example.com"})
	handler := auth.NewFinalizePasswordResetHandler(repo, tokens, testHasher).WithLogger(auth.NopLogger())

	tests := []struct {
		name     string
		msg      auth.FinalizePasswordResetMessage
		wantCode string
	}{
		{
			name:     "bad uid",
			msg:      auth.FinalizePasswordResetMessage{UID: "zz", Token: token, Password1: "brand-new-secret", Password2: "brand-new-secret"},
			wantCode: auth.TextCodeTokenMismatch,
		},
		{
			name:     "token of another user",
			msg:      auth.FinalizePasswordResetMessage{UID: auth.EncodeUID(other.ID), Token: token, Password1: "brand-new-secret", Password2: "brand-new-secret"},
			wantCode: auth.TextCodeTokenMismatch,
		},
		{
			name:     "bad token",
			msg:      auth.FinalizePasswordResetMessage{UID: uid, Token: "1-abc", Password1: "brand-new-secret", Password2: "brand-new-secret"},
			wantCode: auth.TextCodeTokenMismatch,
		},
		{
			name:     "mismatched passwords",
			msg:      auth.FinalizePasswordResetMessage{UID: uid, Token: token, Password1: "brand-new-secret", Password2: "brand-new-secreT"},
			wantCode: auth.TextCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler.Execute(ctx, tt.msg)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, auth.TextCodeOf(err))
		})
	}

	// a failed attempt does not burn the token
	_, err := handler.CheckToken(ctx, uid, token)
	assert.NoError(t, err)
}
