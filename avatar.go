package auth

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// MaxAvatarSide is the largest width or height kept for a profile picture
const MaxAvatarSide = 300

// AvatarUploadDir is the storage prefix for uploaded pictures
const AvatarUploadDir = "profile_pictures"

const defaultAvatarAsset = "img/default-avatar.png"

var avatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// AvatarHandler stores, resizes and resolves profile pictures. Image
// failures never fail the caller.
type AvatarHandler struct {
	storage   FileStorage
	staticURL string
	maxSide   int
	logger    Logger
	NowFunc   func() time.Time
}

// NewAvatarHandler creates a handler storing pictures in storage
func NewAvatarHandler(storage FileStorage, staticURL string) *AvatarHandler {
	if staticURL == "" {
		staticURL = "/static/"
	}
	if !strings.HasSuffix(staticURL, "/") {
		staticURL += "/"
	}
	return &AvatarHandler{
		storage:   storage,
		staticURL: staticURL,
		maxSide:   MaxAvatarSide,
		logger:    defLogger{},
		NowFunc:   time.Now,
	}
}

func (h *AvatarHandler) WithLogger(logger Logger) *AvatarHandler {
	h.logger = normalizeLogger(logger)
	return h
}

// DefaultURL is the static fallback picture
func (h *AvatarHandler) DefaultURL() string {
	return h.staticURL + defaultAvatarAsset
}

// ResolveURL returns the stored picture URL or the static fallback
func (h *AvatarHandler) ResolveURL(ctx context.Context, user *User) string {
	if user == nil || user.Picture == "" || h.storage == nil {
		return h.DefaultURL()
	}

	ok, err := h.storage.Exists(ctx, user.Picture)
	if err != nil || !ok {
		return h.DefaultURL()
	}

	return h.storage.URL(user.Picture)
}

// Store saves an uploaded picture and returns its storage key
func (h *AvatarHandler) Store(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !avatarExtensions[ext] {
		return "", ErrUnsupportedImage
	}

	key := path.Join(AvatarUploadDir, h.NowFunc().Format("06/01/02"), uuid.NewString()+ext)
	if err := h.storage.Save(ctx, key, r); err != nil {
		return "", errStorage(err, "failed to store profile picture")
	}

	h.ProcessOnSave(ctx, key)
	return key, nil
}

// Replace removes the previous picture once a new one is saved
func (h *AvatarHandler) Replace(ctx context.Context, previous, current string) {
	if previous == "" || previous == current || previous == DefaultPicture {
		return
	}
	h.Delete(ctx, previous)
}

// Delete removes a stored picture unless it is the shared default
func (h *AvatarHandler) Delete(ctx context.Context, key string) {
	if key == "" || key == DefaultPicture || h.storage == nil {
		return
	}
	if err := h.storage.Delete(ctx, key); err != nil {
		h.logger.Debug("failed to delete profile picture", "key", key, "error", err)
	}
}

// ProcessOnSave shrinks the stored picture in place to fit the bounds
func (h *AvatarHandler) ProcessOnSave(ctx context.Context, key string) {
	if err := h.process(ctx, key); err != nil {
		h.logger.Debug("profile picture not processed", "key", key, "error", err)
	}
}

func (h *AvatarHandler) process(ctx context.Context, key string) error {
	if key == "" || key == DefaultPicture || h.storage == nil {
		return nil
	}

	ok, err := h.storage.Exists(ctx, key)
	if err != nil || !ok {
		return err
	}

	rc, err := h.storage.Open(ctx, key)
	if err != nil {
		return err
	}
	img, format, err := image.Decode(rc)
	rc.Close()
	if err != nil {
		return err
	}

	resized, changed := ResizeToFit(img, h.maxSide)
	if !changed {
		return nil
	}

	var buf bytes.Buffer
	if err := encodeImage(&buf, resized, format); err != nil {
		return err
	}

	return h.storage.Save(ctx, key, &buf)
}

// ResizeToFit scales img down to fit a side by side box, keeping the
// aspect ratio. Smaller images are returned untouched.
func ResizeToFit(img image.Image, side int) (image.Image, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= side && h <= side {
		return img, false
	}

	nw, nh := side, side
	if w >= h {
		nh = h * side / w
	} else {
		nw = w * side / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst, true
}

func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return ErrUnsupportedImage
	}
}
