package auth_test

import (
	"testing"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/stretchr/testify/assert"
)

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		identifier string
		expected   auth.IdentifierKind
	}{
		{"alice@example.com", auth.IdentifierEmail},
		{"9876512345", auth.IdentifierPhone},
		{"+91 98765 12345", auth.IdentifierPhone},
		{"(020) 555-0100", auth.IdentifierPhone},
		{"user_alice", auth.IdentifierEmail},
		{"98765x12345", auth.IdentifierEmail},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.ClassifyIdentifier(tt.identifier))
		})
	}

	assert.Equal(t, "phone", auth.IdentifierPhone.String())
	assert.Equal(t, "email", auth.IdentifierEmail.String())
}

func TestNewPhoneLookup(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected auth.PhoneLookup
	}{
		{
			name: "international with spaces",
			raw:  "+91 98765 12345",
			expected: auth.PhoneLookup{
				Raw:     "+91 98765 12345",
				Cleaned: "+919876512345",
				Suffix:  "9876512345",
			},
		},
		{
			name: "national",
			raw:  "9876512345",
			expected: auth.PhoneLookup{
				Raw:     "9876512345",
				Cleaned: "9876512345",
				Suffix:  "9876512345",
			},
		},
		{
			name: "short",
			raw:  "(555) 01-00",
			expected: auth.PhoneLookup{
				Raw:     "(555) 01-00",
				Cleaned: "5550100",
				Suffix:  "5550100",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.NewPhoneLookup(tt.raw))
		})
	}
}

func TestBaseUsername(t *testing.T) {
	tests := []struct {
		email    string
		expected string
	}{
		{"Alice@Example.com", "user_alice"},
		{"a@x.com", "user_a"},
		{"john.doe+lms@mail.com", "user_john.doe+lms"},
		{"jöhn@mail.com", "user_jhn"},
		{"üï@mail.com", "user_user"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			base := auth.BaseUsername(tt.email)
			assert.Equal(t, tt.expected, base)
			assert.NoError(t, auth.ValidateUsername(base))
		})
	}
}

func TestCandidateUsername(t *testing.T) {
	assert.Equal(t, "user_a", auth.CandidateUsername("user_a", 0))
	assert.Equal(t, "user_a_1", auth.CandidateUsername("user_a", 1))
	assert.Equal(t, "user_a_12", auth.CandidateUsername("user_a", 12))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, auth.ValidateUsername("user_alice.b-c+d@e"))
	assert.ErrorIs(t, auth.ValidateUsername(""), auth.ErrInvalidUsername)
	assert.ErrorIs(t, auth.ValidateUsername("has space"), auth.ErrInvalidUsername)
	assert.ErrorIs(t, auth.ValidateUsername("jöhn"), auth.ErrInvalidUsername)
}
