package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultResetTimeout is how long a password reset token stays valid
const DefaultResetTimeout = 72 * time.Hour

var resetTokenSalt = []byte("lms.auth.token_reset.PasswordResetTokenGenerator")

var tokenEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// ResetTokenGenerator makes password reset tokens bound to user state.
// Changing the password hash or signing in invalidates every token
// issued before.
type ResetTokenGenerator struct {
	secret  []byte
	timeout time.Duration
	NowFunc func() time.Time
}

// NewResetTokenGenerator creates a generator keyed with the server secret
func NewResetTokenGenerator(secret string, timeout time.Duration) *ResetTokenGenerator {
	if timeout <= 0 {
		timeout = DefaultResetTimeout
	}
	return &ResetTokenGenerator{
		secret:  []byte(secret),
		timeout: timeout,
		NowFunc: time.Now,
	}
}

// Make generates a password reset token for a given User
func (g *ResetTokenGenerator) Make(user *User) string {
	return g.makeWithTimestamp(user, secondsSinceEpoch(g.NowFunc()))
}

// Check validates token against the current state of user
func (g *ResetTokenGenerator) Check(user *User, token string) error {
	if user == nil || token == "" {
		return errTokenMismatch()
	}

	tsB36, _, found := strings.Cut(token, "-")
	if !found {
		return errTokenMismatch()
	}

	ts, err := strconv.ParseInt(tsB36, 36, 64)
	if err != nil || ts < 0 {
		return errTokenMismatch()
	}

	expected := g.makeWithTimestamp(user, ts)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return errTokenMismatch()
	}

	if secondsSinceEpoch(g.NowFunc())-ts > int64(g.timeout/time.Second) {
		return errTokenExpired()
	}

	return nil
}

func (g *ResetTokenGenerator) makeWithTimestamp(user *User, ts int64) string {
	return fmt.Sprintf("%s-%s", strconv.FormatInt(ts, 36), g.sign(hashValue(user, ts)))
}

func (g *ResetTokenGenerator) sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, resetTokenSalt...), g.secret...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func hashValue(user *User, ts int64) []byte {
	var val bytes.Buffer
	val.WriteString(user.ID.String())
	val.WriteByte('|')
	val.WriteString(user.PasswordHash)
	val.WriteByte('|')
	if user.LastLogin != nil {
		val.WriteString(strconv.FormatInt(user.LastLogin.UTC().Unix(), 10))
	}
	val.WriteByte('|')
	val.WriteString(strconv.FormatInt(ts, 10))
	return val.Bytes()
}

func secondsSinceEpoch(t time.Time) int64 {
	return int64(t.UTC().Sub(tokenEpoch) / time.Second)
}

// EncodeUID base64 encodes given User ID for reset links
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID reverses EncodeUID
func DecodeUID(uid string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return uuid.Nil, errTokenMismatch()
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return uuid.Nil, errTokenMismatch()
	}
	return id, nil
}
