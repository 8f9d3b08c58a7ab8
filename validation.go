package auth

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// MinPasswordLength matches the registration form help text
const MinPasswordLength = 8

// DefaultPhoneRegion is used to parse numbers without a country code
const DefaultPhoneRegion = "IN"

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("the two password fields didn't match")
		}
		return nil
	}
}

// ValidatePassword applies the password policy
func ValidatePassword(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	if len(s) < MinPasswordLength {
		return errors.New("this password is too short, it must contain at least 8 characters")
	}

	if strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		return errors.New("this password is entirely numeric")
	}

	return nil
}

// ValidatePhone returns a rule that accepts numbers phonenumbers can parse
func ValidatePhone(region string) validation.RuleFunc {
	if region == "" {
		region = DefaultPhoneRegion
	}
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}

		if _, err := phonenumbers.Parse(s, region); err != nil {
			return errors.New("enter a valid phone number")
		}

		return nil
	}
}

// ValidateUsernameRule adapts ValidateUsername to ozzo
func ValidateUsernameRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	return ValidateUsername(s)
}

func mustAccept(msg string) validation.RuleFunc {
	return func(value any) error {
		if b, _ := value.(bool); !b {
			return errors.New(msg)
		}
		return nil
	}
}

func levelValues() []any {
	return []any{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}
}

func relationshipValues() []any {
	return []any{
		RelationshipFather,
		RelationshipMother,
		RelationshipBrother,
		RelationshipSister,
		RelationshipGrandmother,
		RelationshipGrandfather,
		RelationshipOther,
	}
}

func roleValues() []any {
	roles := GetAllRoles()
	out := make([]any, 0, len(roles))
	for _, r := range roles {
		out = append(out, r)
	}
	return out
}
