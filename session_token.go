package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SessionClaims is the signed cookie payload. The session id travels as
// the token id, the server still looks it up on every request.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role,omitempty"`
	Remember bool   `json:"rmb,omitempty"`
}

// SessionTokenSigner signs and parses session cookies
type SessionTokenSigner struct {
	signingKey []byte
	issuer     string
	logger     Logger
}

// NewSessionTokenSigner creates a signer keyed with the server secret
func NewSessionTokenSigner(signingKey []byte, issuer string, logger Logger) *SessionTokenSigner {
	return &SessionTokenSigner{
		signingKey: signingKey,
		issuer:     issuer,
		logger:     normalizeLogger(logger),
	}
}

// Sign creates the cookie value for session
func (s *SessionTokenSigner) Sign(session *Session) (string, error) {
	if session == nil {
		return "", errors.New("session must not be nil", errors.CategoryInternal)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Issuer:    s.issuer,
			Subject:   session.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Role:     string(session.Role),
		Remember: session.Remember,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// Parse validates the cookie value and returns its claims
func (s *SessionTokenSigner) Parse(value string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{jwt.WithLeeway(5 * time.Second)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(value, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("session token with unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, opts...)

	if err != nil {
		return nil, errSessionNotFound(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, errSessionNotFound(ErrSessionNotFound)
	}

	return claims, nil
}
