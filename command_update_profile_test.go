package auth_test

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateProfile(t *testing.T) {
	repo := newTestRepo(t)
	avatars, storage, _ := newTestAvatars(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_up", Email: "up@example.com", Role: auth.RoleLecturer, IsActive: true})
	handler := auth.NewUpdateProfileHandler(repo, avatars).WithLogger(auth.NopLogger())

	var updated *auth.User
	err := handler.Execute(ctx, auth.UpdateProfileMessage{
		UserID:      user.ID,
		FirstName:   " Ada ",
		LastName:    "Lovelace",
		Email:       "Ada@Example.com",
		Phone:       "+254 700 123456",
		Gender:      auth.GenderFemale,
		PictureName: "ada.png",
		Picture:     bytes.NewReader(pngBytes(t, 50, 50)),
		OnResponse:  func(u *auth.User) { updated = u },
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Ada@Example.com", updated.Email)
	assert.NotEqual(t, auth.DefaultPicture, updated.Picture)

	first := updated.Picture
	ok, err := storage.Exists(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)

	// a new upload replaces the previous file
	err = handler.Execute(ctx, auth.UpdateProfileMessage{
		UserID:      user.ID,
		Email:       "ada@example.com",
		PictureName: "ada2.png",
		Picture:     bytes.NewReader(pngBytes(t, 40, 40)),
		OnResponse:  func(u *auth.User) { updated = u },
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, updated.Picture)

	ok, err = storage.Exists(ctx, first)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateProfileShrinksStoredPicture(t *testing.T) {
	repo := newTestRepo(t)
	avatars, storage, root := newTestAvatars(t)
	ctx := context.Background()

	key := auth.AvatarUploadDir + "/legacy.png"
	require.NoError(t, storage.Save(ctx, key, bytes.NewReader(pngBytes(t, 900, 600))))

	user := insertUser(t, repo, &auth.User{Username: "user_pic", Email: "pic@example.com", Picture: key, IsActive: true})
	handler := auth.NewUpdateProfileHandler(repo, avatars).WithLogger(auth.NopLogger())

	// no upload, the stored picture is still brought within bounds
	err := handler.Execute(ctx, auth.UpdateProfileMessage{
		UserID:    user.ID,
		FirstName: "Pic",
		Email:     "pic@example.com",
	})
	require.NoError(t, err)

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, key, stored.Picture)

	f, err := os.Open(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestUpdateProfileClearsOptionalFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{
		Username: "user_clear",
		Email:    "clear@example.com",
		Gender:   auth.GenderMale,
		Address:  "Nairobi",
		IsActive: true,
	})
	handler := auth.NewUpdateProfileHandler(repo, nil).WithLogger(auth.NopLogger())

	err := handler.Execute(ctx, auth.UpdateProfileMessage{UserID: user.ID, Email: "clear@example.com"})
	require.NoError(t, err)

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Empty(t, stored.Gender)
	assert.Empty(t, stored.Address)
}

func TestUpdateProfileRejects(t *testing.T) {
	repo := newTestRepo(t)
	avatars, _, _ := newTestAvatars(t)
	ctx := context.Background()

	user := insertUser(t, repo, &auth.User{Username: "user_up", Email: "up@example.com", Role: auth.RoleLecturer, IsActive: true})
	insertUser(t, repo, &auth.User{Username: "user_busy", Email: "busy@example.com"})

	handler := auth.NewUpdateProfileHandler(repo, avatars).WithLogger(auth.NopLogger())

	err := handler.Execute(ctx, auth.UpdateProfileMessage{UserID: user.ID, Email: "BUSY@example.com"})
	assert.Equal(t, auth.TextCodeEmailTaken, auth.TextCodeOf(err))

	err = handler.Execute(ctx, auth.UpdateProfileMessage{UserID: user.ID, Email: "up@example.com", Gender: "X"})
	assert.Contains(t, auth.ValidationFields(err), "gender")

	err = handler.Execute(ctx, auth.UpdateProfileMessage{
		UserID:      user.ID,
		Email:       "up@example.com",
		PictureName: "notes.txt",
		Picture:     bytes.NewReader([]byte("hello")),
	})
	assert.Contains(t, auth.ValidationFields(err), "picture")

	stored, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "up@example.com", stored.Email)
	assert.Equal(t, auth.DefaultPicture, stored.Picture)
}
