package mailer

import (
	"regexp"
	"strings"
)

// MaxEmailLength is the practical RFC 5321 ceiling for an address.
const MaxEmailLength = 254

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// injectionChars are rejected anywhere in the address.
const injectionChars = `<>"'%;()&+`

// ValidationKind identifies which recipient check failed.
type ValidationKind int

const (
	EmailRequired ValidationKind = iota + 1
	InvalidFormat
	TooLong
	InvalidCharacters
)

func (k ValidationKind) String() string {
	switch k {
	case EmailRequired:
		return "email_required"
	case InvalidFormat:
		return "invalid_format"
	case TooLong:
		return "too_long"
	case InvalidCharacters:
		return "invalid_characters"
	default:
		return "unknown"
	}
}

// ValidationError is returned by Validate.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	return "invalid recipient: " + e.Kind.String()
}

// Is matches another *ValidationError of the same kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// Validate trims and lowercases raw and runs the recipient checks in order,
// returning the first failure.
func Validate(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case email == "":
		return "", &ValidationError{Kind: EmailRequired}
	case !emailShape.MatchString(email):
		return "", &ValidationError{Kind: InvalidFormat}
	case len(email) > MaxEmailLength:
		return "", &ValidationError{Kind: TooLong}
	case strings.ContainsAny(email, injectionChars):
		return "", &ValidationError{Kind: InvalidCharacters}
	}
	return email, nil
}

// Mask hides most of the local part of an address for logging:
// "jane@example.com" becomes "j***@example.com".
func Mask(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
