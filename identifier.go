package auth

import (
	"regexp"
	"strings"
)

// IdentifierKind tells how a login identifier is resolved
type IdentifierKind int

const (
	IdentifierEmail IdentifierKind = iota
	IdentifierPhone
)

func (k IdentifierKind) String() string {
	if k == IdentifierPhone {
		return "phone"
	}
	return "email"
}

var (
	phoneIdentifierPattern = regexp.MustCompile(`^[\d\s+\-()]+$`)
	phonePunctuation       = regexp.MustCompile(`[\s\-()]`)
)

// phoneSuffixLength is the national number length matched by suffix
const phoneSuffixLength = 10

// ClassifyIdentifier treats anything made only of digits, spaces and
// + - ( ) as a phone number, everything else as an email
func ClassifyIdentifier(identifier string) IdentifierKind {
	if phoneIdentifierPattern.MatchString(identifier) {
		return IdentifierPhone
	}
	return IdentifierEmail
}

// PhoneLookup holds the three phone variants in match order
type PhoneLookup struct {
	// Raw is compared case insensitively with punctuation kept
	Raw string
	// Cleaned has whitespace, dashes and parentheses removed
	Cleaned string
	// Suffix is the last ten characters of Cleaned
	Suffix string
}

// NewPhoneLookup builds the lookup variants for a phone identifier
func NewPhoneLookup(raw string) PhoneLookup {
	cleaned := CleanPhone(raw)
	suffix := cleaned
	if len(suffix) > phoneSuffixLength {
		suffix = suffix[len(suffix)-phoneSuffixLength:]
	}
	return PhoneLookup{
		Raw:     raw,
		Cleaned: cleaned,
		Suffix:  suffix,
	}
}

// CleanPhone strips whitespace, dashes and parentheses
func CleanPhone(phone string) string {
	return phonePunctuation.ReplaceAllString(phone, "")
}

func normalizeIdentifier(identifier string) string {
	return strings.TrimSpace(identifier)
}
