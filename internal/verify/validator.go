package verify

import (
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 16
)

// ValidateUsername performs the syntactic checks that must pass before any
// lookup is spent on a claim. Length is checked before the character set.
func ValidateUsername(username string) error {
	length := utf8.RuneCountInString(username)
	if length < minUsernameLength || length > maxUsernameLength {
		return &ReasonError{Username: username, Reason: ReasonInvalidLength}
	}

	for _, r := range strings.ToLower(username) {
		if !isUsernameRune(r) {
			return &ReasonError{Username: username, Reason: ReasonInvalidCharacters}
		}
	}

	return nil
}

func isUsernameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// NormalizeIdentifier strips hyphens and lowercases an identifier so that
// hyphenated and compact forms compare equal.
func NormalizeIdentifier(id string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(id), "-", ""))
}
