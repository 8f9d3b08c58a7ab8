package auth

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost used for new hashes
const DefaultHashCost = 14

const unusablePasswordPrefix = "!"

// RandomPasswordChars has no I, O or digits that look like letters
const RandomPasswordChars = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (ok bool, needsRehash bool, err error)
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewPasswordHasher validates cost, a bad cost is a configuration error
func NewPasswordHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, goerrors.New("invalid bcrypt cost", goerrors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithMetadata(map[string]any{"cost": cost})
	}
	return &BcryptHasher{cost: cost}, nil
}

// MustPasswordHasher panics on a misconfigured cost
func MustPasswordHasher(cost int) *BcryptHasher {
	h, err := NewPasswordHasher(cost)
	if err != nil {
		panic(err)
	}
	return h
}

// Hash will generate a password hash
func (b *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	return string(h), err
}

// Verify compares password against hash. needsRehash is set when the
// stored hash was made with a different cost.
func (b *BcryptHasher) Verify(password, hash string) (bool, bool, error) {
	if hash == "" || strings.HasPrefix(hash, unusablePasswordPrefix) {
		return false, false, ErrPasswordResetRequired
	}

	if !isBcryptHash(hash) {
		return false, false, ErrUnknownHashAlgorithm
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false, nil
		}
		return false, false, err
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true, true, nil
	}

	return true, cost != b.cost, nil
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// UnusablePassword returns a hash that never verifies
func UnusablePassword() string {
	return unusablePasswordPrefix + MakeRandomPassword(40)
}

// MakeRandomPassword generates a password from RandomPasswordChars
func MakeRandomPassword(length int) string {
	if length <= 0 {
		length = 10
	}

	max := big.NewInt(int64(len(RandomPasswordChars)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		sb.WriteByte(RandomPasswordChars[n.Int64()])
	}
	return sb.String()
}
