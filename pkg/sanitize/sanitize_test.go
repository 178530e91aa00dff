package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "/home/user/Documents/report.docx", "/home/user/Documents/report.docx"},
		{"ANSI escape sequence", "\x1b[31mRed Text\x1b[0m", "[ESC]Red Text[ESC]"},
		{"tab character", "Hello\tWorld", "Hello World"},
		{"newline in file name", "note\n.txt", "note .txt"},
		{"carriage return", "Hello\rWorld", "Hello[CR]World"},
		{"control character", "Hello\x01World", "Hello[CTRL]World"},
		{"delete character", "Hello\x7FWorld", "Hello[DEL]World"},
		{"screen clearing file name", "\x1b[2J\x1b[H\x1b[31mPWNED\x1b[0m.locked", "[ESC][ESC][ESC]PWNED[ESC].locked"},
		{"trailing escape", "abc\x1b", "abc[ESC]"},
		{"unicode kept", "résumé_€.txt", "résumé_€.txt"},
		{"invalid utf8", "bad\xffname", "bad�name"},
		{"empty string", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeForTerminal(tc.input))
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"truncated", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 2, "he"},
		{"no limit", "hello", 0, "hello"},
		{"rune aware", "ééééé", 4, "é..."},
		{"sanitized first", "\x1b[31mred", 20, "[ESC]red"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, String(tc.input, tc.maxLen))
		})
	}
}

func TestPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"fits", "/data/a.txt", 20, "/data/a.txt"},
		{"keeps tail", "/home/user/Documents/secret.locked", 16, "...secret.locked"},
		{"tiny limit", "/data/abc", 3, "abc"},
		{"sanitized", "/data/\x1b[2Jx", 40, "/data/[ESC]x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Path(tc.input, tc.maxLen)
			assert.Equal(t, tc.expected, got)
			if tc.maxLen > 0 {
				assert.LessOrEqual(t, len([]rune(got)), tc.maxLen)
			}
		})
	}
}

func BenchmarkSanitizeForTerminal(b *testing.B) {
	input := "/home/user/Documents/quarterly_report_final_v2.docx"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SanitizeForTerminal(input)
	}
}

func BenchmarkSanitizeForTerminal_WithEscape(b *testing.B) {
	input := "\x1b[31mMalicious \x1b[2J name\x1b[0m.locked"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SanitizeForTerminal(input)
	}
}
