package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func insertUser(t *testing.T, repo auth.RepositoryManager, user *auth.User) *auth.User {
	t.Helper()

	if user.Role == "" {
		user.Role = auth.RoleLecturer
	}
	if user.PasswordHash == "" {
		hash, err := testHasher.Hash(testPassword)
		require.NoError(t, err)
		user.PasswordHash = hash
	}

	var out *auth.User
	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = repo.Users().CreateTx(ctx, tx, user)
		return err
	})
	require.NoError(t, err)
	return out
}

func TestUsersCreateDefaults(t *testing.T) {
	repo := newTestRepo(t)

	user := insertUser(t, repo, &auth.User{Username: "user_grace", Email: "grace@example.com"})

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, auth.DefaultPicture, user.Picture)
	assert.False(t, user.DateJoined.IsZero())

	found, err := repo.Users().GetByUsername(context.Background(), "user_grace")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestUsersEmailIsCaseInsensitive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_bob", Email: "Bob@X.com"})

	found, err := repo.Users().GetByEmail(ctx, "bob@x.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "Bob@X.com", found.Email, "email is stored as entered")

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := repo.Users().EmailExistsTx(ctx, tx, "BOB@x.com", uuid.Nil)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.Users().EmailExistsTx(ctx, tx, "bob@x.com", user.ID)
		require.NoError(t, err)
		assert.False(t, taken)
		return nil
	})
	require.NoError(t, err)
}

func TestUsersCreateClassifiesDuplicates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertUser(t, repo, &auth.User{Username: "user_bob", Email: "bob@x.com"})

	tests := []struct {
		name     string
		user     *auth.User
		wantCode string
	}{
		{
			name:     "email differing only in case",
			user:     &auth.User{Username: "user_bob_1", Email: "BOB@X.COM", Role: auth.RoleLecturer},
			wantCode: auth.TextCodeEmailTaken,
		},
		{
			name:     "username",
			user:     &auth.User{Username: "user_bob", Email: "other@x.com", Role: auth.RoleLecturer},
			wantCode: auth.TextCodeUsernameCollision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				_, err := repo.Users().CreateTx(ctx, tx, tt.user)
				return err
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, auth.TextCodeOf(err))
		})
	}
}

func TestUsersNextUsername(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertUser(t, repo, &auth.User{Username: "user_a", Email: "first@x.com"})
	insertUser(t, repo, &auth.User{Username: "user_a_1", Email: "second@x.com"})

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		username, n, err := repo.Users().NextUsernameTx(ctx, tx, "user_a", 0)
		require.NoError(t, err)
		assert.Equal(t, "user_a_2", username)
		assert.Equal(t, 2, n)

		username, _, err = repo.Users().NextUsernameTx(ctx, tx, "user_b", 0)
		require.NoError(t, err)
		assert.Equal(t, "user_b", username)
		return nil
	})
	require.NoError(t, err)
}

func TestUsersFindByPhone(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_p", Email: "p@x.com", Phone: "+91 98765 12345"})

	for _, identifier := range []string{"+91 98765 12345", "+919876512345", "9876512345", "98765-12345"} {
		t.Run(identifier, func(t *testing.T) {
			matches, err := repo.Users().FindByPhone(ctx, auth.NewPhoneLookup(identifier))
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.Equal(t, user.ID, matches[0].ID)
		})
	}

	matches, err := repo.Users().FindByPhone(ctx, auth.NewPhoneLookup("1234567890"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	insertUser(t, repo, &auth.User{Username: "user_q", Email: "q@x.com", Phone: "0 98765 12345"})

	matches, err = repo.Users().FindByPhone(ctx, auth.NewPhoneLookup("9876512345"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestUsersLoginTracking(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_t", Email: "t@x.com"})

	require.NoError(t, repo.Users().TrackAttemptedLogin(ctx, user))
	require.NoError(t, repo.Users().TrackAttemptedLogin(ctx, user))

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LoginAttempts)
	assert.NotNil(t, stored.LoginAttemptAt)

	require.NoError(t, repo.Users().TrackSuccessfulLogin(ctx, stored))

	stored, err = repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LoginAttemptAt)
	assert.NotNil(t, stored.LastLogin)
}

func TestUsersSwapPassword(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_s", Email: "s@x.com"})

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		swapped, err := repo.Users().SwapPasswordTx(ctx, tx, user.ID, user.PasswordHash, "new-hash")
		require.NoError(t, err)
		assert.True(t, swapped)

		swapped, err = repo.Users().SwapPasswordTx(ctx, tx, user.ID, user.PasswordHash, "newer-hash")
		require.NoError(t, err)
		assert.False(t, swapped, "stale previous hash must not win")
		return nil
	})
	require.NoError(t, err)

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
}

func TestUsersSearchAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	insertUser(t, repo, &auth.User{Username: "user_grace", Email: "grace@x.com", FirstName: "Grace"})
	insertUser(t, repo, &auth.User{Username: "user_alan", Email: "alan@x.com", Role: auth.RoleAdministrator})

	found, err := repo.Users().Search(ctx, "GRACE", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "user_grace", found[0].Username)

	n, err := repo.Users().CountByRole(ctx, auth.RoleAdministrator)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
