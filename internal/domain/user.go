// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxUsernameLen = 36
	MaxRoomIDLen   = 64

	DefaultUsername = "Anonymous"
)

// ConnID identifies one transport connection for its whole lifetime.
type ConnID string

// NormalizeUsername trims the name, falls back to DefaultUsername when blank
// and cuts it to MaxUsernameLen runes.
func NormalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return DefaultUsername
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		username = strings.TrimSpace(string([]rune(username)[:MaxUsernameLen]))
	}
	return username
}
