// Package sanitize makes untrusted text safe to draw on a terminal.
//
// File names are attacker controlled: a ransom note can be called
// "\x1b[2J\x1b[31mPWNED" and a watched directory can contain newlines in
// names. Everything the TUI renders from the file system goes through here.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

const DefaultMaxDisplayLength = 256

const ellipsis = "..."

// String sanitizes s and truncates it to maxLen runes, keeping the head.
func String(s string, maxLen int) string {
	sanitized := SanitizeForTerminal(s)
	if maxLen <= 0 || utf8.RuneCountInString(sanitized) <= maxLen {
		return sanitized
	}
	runes := []rune(sanitized)
	if maxLen > len(ellipsis) {
		return string(runes[:maxLen-len(ellipsis)]) + ellipsis
	}
	return string(runes[:maxLen])
}

// Path sanitizes a file path and truncates it to maxLen runes, keeping the
// tail: the file name is the part worth showing.
func Path(path string, maxLen int) string {
	sanitized := SanitizeForTerminal(path)
	if maxLen <= 0 || utf8.RuneCountInString(sanitized) <= maxLen {
		return sanitized
	}
	runes := []rune(sanitized)
	if maxLen > len(ellipsis) {
		return ellipsis + string(runes[len(runes)-(maxLen-len(ellipsis)):])
	}
	return string(runes[len(runes)-maxLen:])
}

// SanitizeForTerminal replaces control characters and escape sequences with
// visible placeholders. Invalid UTF-8 bytes become U+FFFD.
func SanitizeForTerminal(s string) string {
	if s == "" {
		return s
	}

	needsSanitization := !utf8.ValidString(s)
	for i := 0; i < len(s) && !needsSanitization; i++ {
		c := s[i]
		if c < 0x20 || c == 0x7F {
			needsSanitization = true
		}
	}
	if !needsSanitization {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]

		if c == 0x1B {
			i++
			if i < len(s) && s[i] == '[' {
				i++
				for i < len(s) && !isCSITerminator(s[i]) {
					i++
				}
				if i < len(s) {
					i++
				}
			}
			result.WriteString("[ESC]")
			continue
		}

		switch {
		case c == '\t', c == '\n':
			result.WriteByte(' ')
		case c == '\r':
			result.WriteString("[CR]")
		case c < 0x20:
			result.WriteString("[CTRL]")
		case c == 0x7F:
			result.WriteString("[DEL]")
		case c < utf8.RuneSelf:
			result.WriteByte(c)
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			result.WriteRune(r)
			i += size
			continue
		}
		i++
	}

	return result.String()
}

func isCSITerminator(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '@' || c == '`'
}
