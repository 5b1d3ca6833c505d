package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNicknameLength = 32
	defaultNickname   = "Anonymous"
)

var (
	uuidRegex        = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	sessionCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	return uuidRegex.MatchString(s)
}

// IsValidSessionCode reports whether s looks like a share code. Callers
// uppercase first; codes are case-insensitive on the way in.
func IsValidSessionCode(s string) bool {
	return sessionCodeRegex.MatchString(s)
}

// SanitizeNickname trims and truncates a join nickname, substituting a
// default for empty input.
func SanitizeNickname(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultNickname
	}
	if utf8.RuneCountInString(s) > maxNicknameLength {
		runes := []rune(s)
		s = string(runes[:maxNicknameLength])
	}
	return s
}
