package auth

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// MaxUsernameLength matches the users.username column
const MaxUsernameLength = 150

const usernamePrefix = "user_"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9.@+_-]+$`)

// ErrInvalidUsername is returned for non ASCII or empty usernames
var ErrInvalidUsername = errors.New("enter a valid username: letters, numbers and @/./+/-/_ only")

// ValidateUsername applies the ASCII username rules
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLength || !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// BaseUsername derives user_<local> from the lower cased email local
// part. Characters outside the username alphabet are dropped.
func BaseUsername(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")

	var sb strings.Builder
	for _, r := range local {
		if r < 128 && usernamePattern.MatchString(string(r)) {
			sb.WriteRune(r)
		}
	}

	folded := sb.String()
	if folded == "" {
		folded = "user"
	}

	base := usernamePrefix + folded
	// leave room for a _NNN suffix
	if len(base) > MaxUsernameLength-8 {
		base = base[:MaxUsernameLength-8]
	}
	return base
}

// CandidateUsername returns base for n == 0 and base_n otherwise
func CandidateUsername(base string, n int) string {
	if n <= 0 {
		return base
	}
	return base + "_" + strconv.Itoa(n)
}
