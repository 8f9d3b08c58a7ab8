package auth_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestAvatars(t *testing.T) (*auth.AvatarHandler, *auth.LocalStorage, string) {
	t.Helper()

	root := t.TempDir()
	storage := auth.NewLocalStorage(root, "/media")
	avatars := auth.NewAvatarHandler(storage, "/static").WithLogger(auth.NopLogger())
	avatars.NowFunc = func() time.Time { return time.Date(2026, time.May, 4, 0, 0, 0, 0, time.UTC) }
	return avatars, storage, root
}

func TestResizeToFit(t *testing.T) {
	tests := []struct {
		name        string
		w, h        int
		wantW       int
		wantH       int
		wantChanged bool
	}{
		{name: "small", w: 120, h: 80, wantW: 120, wantH: 80},
		{name: "exact", w: 300, h: 300, wantW: 300, wantH: 300},
		{name: "landscape", w: 900, h: 600, wantW: 300, wantH: 200, wantChanged: true},
		{name: "portrait", w: 400, h: 1200, wantW: 100, wantH: 300, wantChanged: true},
		{name: "sliver", w: 3000, h: 2, wantW: 300, wantH: 1, wantChanged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out, changed := auth.ResizeToFit(img, auth.MaxAvatarSide)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestAvatarStoreResizes(t *testing.T) {
	avatars, storage, root := newTestAvatars(t)
	ctx := context.Background()

	key, err := avatars.Store(ctx, "Me.PNG", bytes.NewReader(pngBytes(t, 600, 450)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, auth.AvatarUploadDir+"/26/05/04/"))
	assert.True(t, strings.HasSuffix(key, ".png"))

	f, err := os.Open(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 225, cfg.Height)

	user := &auth.User{Picture: key}
	assert.Equal(t, "/media/"+key, avatars.ResolveURL(ctx, user))

	avatars.Delete(ctx, key)
	ok, err := storage.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "/static/img/default-avatar.png", avatars.ResolveURL(ctx, user))
}

func TestAvatarStoreRejectsUnknownExtension(t *testing.T) {
	avatars, _, _ := newTestAvatars(t)

	_, err := avatars.Store(context.Background(), "me.bmp", bytes.NewReader([]byte("BM")))
	assert.ErrorIs(t, err, auth.ErrUnsupportedImage)
}

func TestAvatarCorruptImageIsKept(t *testing.T) {
	avatars, storage, _ := newTestAvatars(t)
	ctx := context.Background()

	key, err := avatars.Store(ctx, "me.jpg", strings.NewReader("definitely not a jpeg"))
	require.NoError(t, err, "processing failures never fail the upload")

	ok, err := storage.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAvatarResolveFallbacks(t *testing.T) {
	avatars, _, _ := newTestAvatars(t)
	ctx := context.Background()

	assert.Equal(t, avatars.DefaultURL(), avatars.ResolveURL(ctx, nil))
	assert.Equal(t, avatars.DefaultURL(), avatars.ResolveURL(ctx, &auth.User{Picture: auth.DefaultPicture}))
	assert.Equal(t, avatars.DefaultURL(), avatars.ResolveURL(ctx, &auth.User{Picture: "profile_pictures/missing.png"}))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	storage := auth.NewLocalStorage(t.TempDir(), "")
	ctx := context.Background()

	err := storage.Save(ctx, "../outside.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, auth.ErrInvalidStorageKey)

	_, err = storage.Exists(ctx, "")
	assert.ErrorIs(t, err, auth.ErrInvalidStorageKey)

	require.NoError(t, storage.Save(ctx, "a/b.txt", strings.NewReader("hello")))
	assert.Equal(t, "/media/a/b.txt", storage.URL("a/b.txt"))

	rc, err := storage.Open(ctx, "a/b.txt")
	require.NoError(t, err)
	defer rc.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}
