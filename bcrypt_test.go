package auth_test

import (
	"testing"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewPasswordHasherRejectsBadCost(t *testing.T) {
	_, err := auth.NewPasswordHasher(bcrypt.MinCost - 1)
	assert.Error(t, err)

	_, err = auth.NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	assert.Panics(t, func() { auth.MustPasswordHasher(0) })
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := testHasher.Hash(tt.password)

			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrNoEmptyString)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			ok, needsRehash, err := testHasher.Verify(tt.password, hash)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.False(t, needsRehash)
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := testHasher.Hash("testPassword123!")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		wantOK   bool
		wantErr  error
	}{
		{
			name:     "Matching password",
			password: "testPassword123!",
			hash:     hash,
			wantOK:   true,
		},
		{
			name:     "Wrong password",
			password: "wrongPassword",
			hash:     hash,
			wantOK:   false,
		},
		{
			name:     "Unusable password",
			password: "anything",
			hash:     auth.UnusablePassword(),
			wantErr:  auth.ErrPasswordResetRequired,
		},
		{
			name:     "Empty hash",
			password: "anything",
			hash:     "",
			wantErr:  auth.ErrPasswordResetRequired,
		},
		{
			name:     "Unknown algorithm",
			password: "anything",
			hash:     "pbkdf2_sha256$260000$salt$hash",
			wantErr:  auth.ErrUnknownHashAlgorithm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _, err := testHasher.Verify(tt.password, tt.hash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestVerifyFlagsRehashOnCostChange(t *testing.T) {
	old := auth.MustPasswordHasher(5)
	hash, err := old.Hash("testPassword123!")
	require.NoError(t, err)

	ok, needsRehash, err := testHasher.Verify("testPassword123!", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, needsRehash)
}

func TestMakeRandomPassword(t *testing.T) {
	pwd := auth.MakeRandomPassword(16)
	assert.Len(t, pwd, 16)
	for _, r := range pwd {
		assert.Contains(t, auth.RandomPasswordChars, string(r))
	}

	assert.Len(t, auth.MakeRandomPassword(0), 10)
	assert.NotEqual(t, auth.MakeRandomPassword(16), auth.MakeRandomPassword(16))
}

func TestUnusablePassword(t *testing.T) {
	user := &auth.User{PasswordHash: auth.UnusablePassword()}
	assert.False(t, user.HasUsablePassword())

	hash, err := testHasher.Hash("testPassword123!")
	require.NoError(t, err)
	user.PasswordHash = hash
	assert.True(t, user.HasUsablePassword())
}
