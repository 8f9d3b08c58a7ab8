package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const testSecret = "a-test-secret-that-is-long-enough-for-hmac"

const testPassword = "correct-horse-battery"

// bcrypt at its minimum cost keeps the suite fast
var testHasher = auth.MustPasswordHasher(4)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := auth.OpenDB("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db))
	return db
}

func newTestRepo(t *testing.T) auth.RepositoryManager {
	t.Helper()

	repo := auth.NewRepositoryManager(newTestDB(t))
	require.NoError(t, repo.Validate())
	return repo
}

func seedProgram(t *testing.T, repo auth.RepositoryManager) *auth.Program {
	t.Helper()

	program, err := repo.Programs().Create(context.Background(), &auth.Program{Title: "Fullstack Bootcamp"})
	require.NoError(t, err)
	return program
}

func registrationForm(program *auth.Program, email, phone string) auth.RegisterParticipantMessage {
	return auth.RegisterParticipantMessage{
		FirstName:     "Alice",
		LastName:      "Wanjiru",
		Email:         email,
		Phone:         phone,
		City:          "Nairobi",
		Level:         auth.LevelBeginner,
		Program:       program.ID.String(),
		Password1:     testPassword,
		Password2:     testPassword,
		TermsAccepted: true,
	}
}

func registerParticipant(t *testing.T, repo auth.RepositoryManager, program *auth.Program, email, phone string) *auth.User {
	t.Helper()

	var user *auth.User
	form := registrationForm(program, email, phone)
	form.OnResponse = func(u *auth.User) { user = u }

	err := auth.NewRegisterParticipantHandler(repo, testHasher).
		WithLogger(auth.NopLogger()).
		Execute(context.Background(), form)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func createAccount(t *testing.T, repo auth.RepositoryManager, msg auth.CreateAccountMessage) *auth.User {
	t.Helper()

	var user *auth.User
	msg.OnResponse = func(u *auth.User) { user = u }

	err := auth.NewCreateAccountHandler(repo, testHasher).
		WithLogger(auth.NopLogger()).
		Execute(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg auth.MailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *activityRecorder) last() auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auth.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}
